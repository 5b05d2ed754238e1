package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var execCapture bool

var execCmd = &cobra.Command{
	Use:   "exec <command line>...",
	Short: "Run editor command lines",
	Long: `Runs each argument as one editor command line.

Examples:
  cmdbridge exec 'echo "hello"'
  cmdbridge exec 'command Hi echo "hi"' 'Hi'
  cmdbridge exec --capture 'echo 1' 'messages'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, os.Stdout)
		if err != nil {
			return err
		}
		for _, line := range args {
			out, err := a.editor.Exec(ctx, line, execCapture)
			if err != nil {
				return err
			}
			if execCapture {
				fmt.Fprintf(cmd.OutOrStdout(), "%q\n", out)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().BoolVar(&execCapture, "capture", false, "capture each command's output and print it quoted")
}
