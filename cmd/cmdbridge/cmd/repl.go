package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const replHelp = `Lines starting with ":" are editor command lines; anything else is Lua.
  :echo "hi"                      run a command line
  bridge.cmd.echo("hi")           call a command from Lua
  .gc                             collect unreachable identities
  .ids                            list live identities
  .quit                           leave`

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive Lua and command-line prompt",
	Long:  "Starts an interactive prompt.\n\n" + replHelp,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			a, err := newApp(cmd.Context(), os.Stdout)
			if err != nil {
				return err
			}
			scanner := bufio.NewScanner(os.Stdin)
			return a.repl(cmd.Context(), scanner.Scan, scanner.Text, os.Stdout)
		}

		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("failed to enter raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, state) }()

		t := term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{os.Stdin, os.Stdout}, "cmdbridge> ")
		a, err := newApp(cmd.Context(), t)
		if err != nil {
			return err
		}
		fmt.Fprintln(t, replHelp)

		var line string
		next := func() bool {
			var err error
			line, err = t.ReadLine()
			return err == nil
		}
		return a.repl(cmd.Context(), next, func() string { return line }, t)
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

// repl evaluates lines until next reports false or a line asks to quit.
// text returns the line next just read.
func (a *app) repl(ctx context.Context, next func() bool, text func() string, out io.Writer) error {
	for next() {
		line := strings.TrimSpace(text())
		if line == "" {
			continue
		}
		quit, err := a.evalLine(ctx, line, out)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
	return nil
}

var errUnknownDirective = errors.New("unknown directive; try .gc, .ids or .quit")

func (a *app) evalLine(ctx context.Context, line string, out io.Writer) (quit bool, err error) {
	switch {
	case strings.HasPrefix(line, ":"):
		_, err = a.editor.Exec(ctx, line, false)
		return false, err
	case strings.HasPrefix(line, "."):
		switch line {
		case ".quit", ".q":
			return true, nil
		case ".gc":
			n, err := a.registry.Namespace(a.settings.Namespace).GC()
			if err != nil {
				return false, err
			}
			fmt.Fprintf(out, "reclaimed %d\n", n)
			return false, nil
		case ".ids":
			for _, name := range a.registry.Namespaces() {
				for _, id := range a.registry.Namespace(name).Identities() {
					fmt.Fprintf(out, "%-12s %s\n", name, id)
				}
			}
			return false, nil
		}
		return false, errUnknownDirective
	default:
		return false, a.binding.DoString(ctx, line)
	}
}
