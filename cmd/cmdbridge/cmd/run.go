package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var runFeed []string

var runCmd = &cobra.Command{
	Use:   "run <script.lua>",
	Short: "Run a Lua script",
	Long: `Runs a Lua script with the bridge global installed.

Examples:
  cmdbridge run init.lua
  cmdbridge run init.lua --feed n:gx     # then type "gx" in normal mode`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, os.Stdout)
		if err != nil {
			return err
		}
		if err := a.binding.DoFile(ctx, args[0]); err != nil {
			return err
		}
		return a.feed(ctx, runFeed)
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval <lua>...",
	Short: "Evaluate Lua chunks",
	Long: `Runs each argument as a Lua chunk, in order, in one state.

Examples:
  cmdbridge eval 'bridge.cmd.echo("hello")'
  cmdbridge eval 'print(bridge.fn.Strlen("abc"))'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, os.Stdout)
		if err != nil {
			return err
		}
		for _, src := range args {
			if err := a.binding.DoString(ctx, src); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(evalCmd)

	runCmd.Flags().StringArrayVar(&runFeed, "feed", nil, "keys to type after the script, as <mode>:<keys> (repeatable)")
}

// feed types each "<mode>:<keys>" entry into the editor.
func (a *app) feed(ctx context.Context, entries []string) error {
	for _, entry := range entries {
		mode, keys := splitFeed(entry)
		if err := a.editor.Feed(ctx, mode, keys); err != nil {
			return err
		}
	}
	return nil
}

// splitFeed splits "<mode>:<keys>"; without a mode the keys go to normal
// mode.
func splitFeed(entry string) (mode, keys string) {
	if mode, keys, ok := strings.Cut(entry, ":"); ok {
		return mode, keys
	}
	return "n", entry
}
