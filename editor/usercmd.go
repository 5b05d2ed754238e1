package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/cmdbridge/cmdbridge/command"
)

// UserCommand is a command defined with "command".
type UserCommand struct {
	Name        string
	Replacement string

	// Nargs is "0", "1", "*", "?" or "+".
	Nargs string

	// Bang reports whether the command accepts a trailing "!".
	Bang bool

	// Attrs holds the other attributes, such as "complete" or "bar".
	Attrs map[string]string
}

// userCommandAttrs are the accepted "-attr" names, and whether they take a
// value.
var userCommandAttrs = map[string]bool{
	"bar": false, "buffer": false, "register": false, "keepscript": false,
	"complete": true, "range": true, "count": true, "addr": true, "desc": true,
}

func runCommand(_ context.Context, e *Editor, cmd *cmdline) error {
	uc := &UserCommand{Nargs: "0", Attrs: make(map[string]string)}

	rest := strings.TrimLeft(cmd.args, " \t")
	for strings.HasPrefix(rest, "-") {
		var tok string
		tok, rest = nextWord(rest)
		name, val, hasVal := strings.Cut(tok[1:], "=")
		switch name {
		case "nargs":
			switch val {
			case "0", "1", "*", "?", "+":
				uc.Nargs = val
			default:
				return execError(cmd.text, "E176", "invalid number of arguments: %s", tok)
			}
		case "bang":
			uc.Bang = true
		default:
			takesValue, known := userCommandAttrs[name]
			if !known || (takesValue && !hasVal && name != "range" && name != "count") {
				return execError(cmd.text, "E181", "invalid attribute: %s", tok)
			}
			uc.Attrs[name] = val
		}
	}

	name, repl := nextWord(rest)
	if name == "" {
		e.listUserCommands("")
		return nil
	}
	if err := checkUserCommandName(cmd.text, name); err != nil {
		return err
	}
	if repl == "" {
		e.listUserCommands(name)
		return nil
	}

	if _, exists := e.commands[name]; exists && !cmd.bang {
		return execError(cmd.text, "E174", "command already exists: add ! to replace it: %s", name)
	}
	uc.Name = name
	uc.Replacement = repl
	e.commands[name] = uc
	e.logger.Debug("user command defined", slog.String("name", name), slog.String("replacement", repl))
	return nil
}

func checkUserCommandName(line, name string) error {
	if name[0] < 'A' || name[0] > 'Z' {
		return execError(line, "E183", "user defined commands must start with an uppercase letter")
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !isDigit(c) && !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
			return execError(line, "E182", "invalid command name")
		}
	}
	return nil
}

func runDelcommand(_ context.Context, e *Editor, cmd *cmdline) error {
	name := strings.TrimSpace(cmd.args)
	if _, ok := e.commands[name]; !ok {
		return execError(cmd.text, "E184", "no such user-defined command: %s", name)
	}
	delete(e.commands, name)
	return nil
}

func (e *Editor) listUserCommands(prefix string) {
	found := false
	for _, uc := range e.UserCommands() {
		if !strings.HasPrefix(uc.Name, prefix) {
			continue
		}
		if !found {
			e.emit("    Name          Args Definition", false)
			found = true
		}
		bang := " "
		if uc.Bang {
			bang = "!"
		}
		e.emit(fmt.Sprintf("%s   %-13s %-4s %s", bang, uc.Name, uc.Nargs, uc.Replacement), false)
	}
	if !found {
		e.emit("No user-defined commands found", false)
	}
}

// UserCommands returns every user command, ordered by name.
func (e *Editor) UserCommands() []UserCommand {
	out := make([]UserCommand, 0, len(e.commands))
	for _, uc := range e.commands {
		c := *uc
		c.Attrs = make(map[string]string, len(uc.Attrs))
		for k, v := range uc.Attrs {
			c.Attrs[k] = v
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// lookupUserCommand resolves cmd.name to a user command. A unique prefix of
// a user command name is accepted. It returns nil when nothing matches.
func (e *Editor) lookupUserCommand(cmd *cmdline) (*UserCommand, error) {
	if uc, ok := e.commands[cmd.name]; ok {
		return uc, nil
	}
	if cmd.name[0] < 'A' || cmd.name[0] > 'Z' {
		return nil, nil
	}
	var matches []*UserCommand
	for name, uc := range e.commands {
		if strings.HasPrefix(name, cmd.name) {
			matches = append(matches, uc)
		}
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, execError(cmd.text, "E464", "ambiguous use of user-defined command")
	}
}

func (e *Editor) runUserCommand(ctx context.Context, uc *UserCommand, cmd *cmdline) error {
	args := strings.TrimSpace(cmd.args)
	if cmd.bang && !uc.Bang {
		return execError(cmd.text, "E477", "no ! allowed")
	}
	switch uc.Nargs {
	case "0":
		if args != "" {
			return execError(cmd.text, "E488", "trailing characters: %s", args)
		}
	case "1", "+":
		if args == "" {
			return execError(cmd.text, "E471", "argument required")
		}
	}

	bang := ""
	if cmd.bang {
		bang = "!"
	}
	qargs := `""`
	if args != "" {
		qargs = command.DoubleQuote(args)
	}
	replacer := strings.NewReplacer(
		"<args>", args,
		"<q-args>", qargs,
		"<f-args>", fArgs(uc.Nargs, args),
		"<bang>", bang,
		"<lt>", "<",
	)
	return e.execute(ctx, replacer.Replace(uc.Replacement))
}

// fArgs renders the arguments as a comma-separated list of string
// expressions, for passing them to a function.
func fArgs(nargs, args string) string {
	if args == "" {
		return ""
	}
	if nargs == "1" || nargs == "?" {
		return command.DoubleQuote(args)
	}
	parts := splitArgs(args)
	for i, p := range parts {
		parts[i] = command.DoubleQuote(p)
	}
	return strings.Join(parts, ",")
}
