package main

import (
	"os"

	"github.com/cmdbridge/cmdbridge/cmd/cmdbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
