// Package cmd implements the cmdbridge command line: Lua scripts and
// command lines run against an in-memory reference editor.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
)

var (
	cfgFile    string
	logLevel   string
	logFormat  string
	jsonErrors bool
)

var rootCmd = &cobra.Command{
	Use:   "cmdbridge",
	Short: "Script an editor's command language from Lua",
	Long: `cmdbridge runs Lua scripts against an in-memory editor. Scripts call
editor commands through bridge.cmd, host functions through bridge.fn, and
hand Lua functions to the editor as mappings, user commands and
autocommands.

Settings come from defaults, then --config (TOML or YAML), then
CMDBRIDGE_* environment variables, then the script's bridge.setup{}.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and reports a failure on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (.toml, .yaml or .yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides settings")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text or json); overrides settings")
	rootCmd.PersistentFlags().BoolVar(&jsonErrors, "json-errors", false, "report errors as JSON on stderr")
}

func printError(err error) {
	if jsonErrors {
		data, mErr := json.Marshal(bridgeerrors.ToErrorDetail(err))
		if mErr == nil {
			fmt.Fprintln(os.Stderr, string(data))
			return
		}
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}
