package editor

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
)

// builtin is a command implemented by the editor itself.
type builtin struct {
	run  func(ctx context.Context, e *Editor, cmd *cmdline) error
	bang bool
}

// abbreviations maps the accepted short forms to builtin names.
var abbreviations = map[string]string{
	"e":     "edit",
	"ec":    "echo",
	"echom": "echomsg",
	"cal":   "call",
	"mes":   "messages",
	"sil":   "silent",
	"com":   "command",
	"delc":  "delcommand",
	"au":    "autocmd",
	"do":    "doautocmd",
	"no":    "noremap",
	"nn":    "nnoremap",
	"ino":   "inoremap",
	"nm":    "nmap",
	"nun":   "nunmap",
}

func builtins() map[string]builtin {
	b := map[string]builtin{
		"echo":       {run: runEcho},
		"echomsg":    {run: runEchomsg},
		"call":       {run: runCall},
		"messages":   {run: runMessages},
		"silent":     {run: runSilent, bang: true},
		"edit":       {run: runEdit, bang: true},
		"command":    {run: runCommand, bang: true},
		"delcommand": {run: runDelcommand},
		"autocmd":    {run: runAutocmd, bang: true},
		"doautocmd":  {run: runDoautocmd},
	}
	for name, mc := range mapCommands {
		b[name] = builtin{run: mapBuiltin(mc), bang: mc.mode == ""}
	}
	for name, mode := range unmapCommands {
		b[name] = builtin{run: unmapBuiltin(mode), bang: mode == ""}
	}
	return b
}

func (e *Editor) echoText(ctx context.Context, args string) (string, error) {
	values, err := e.evalList(ctx, args)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatValue(v)
	}
	return strings.Join(parts, " "), nil
}

func runEcho(ctx context.Context, e *Editor, cmd *cmdline) error {
	text, err := e.echoText(ctx, cmd.args)
	if err != nil {
		return err
	}
	e.emit(text, false)
	return nil
}

func runEchomsg(ctx context.Context, e *Editor, cmd *cmdline) error {
	text, err := e.echoText(ctx, cmd.args)
	if err != nil {
		return err
	}
	e.emit(text, true)
	return nil
}

func runCall(ctx context.Context, e *Editor, cmd *cmdline) error {
	_, err := e.evalCall(ctx, cmd.args)
	return err
}

func runMessages(_ context.Context, e *Editor, cmd *cmdline) error {
	switch strings.TrimSpace(cmd.args) {
	case "":
		for _, m := range e.Messages() {
			e.emit(m, false)
		}
		return nil
	case "clear":
		e.messages = nil
		return nil
	default:
		return execError(cmd.text, "E474", "invalid argument")
	}
}

// runSilent runs the rest of the line with output suppressed. With a bang,
// errors are discarded too.
func runSilent(ctx context.Context, e *Editor, cmd *cmdline) error {
	e.silent++
	err := e.execute(ctx, cmd.args)
	e.silent--
	if err != nil && cmd.bang {
		e.logger.Debug("error silenced", slog.String("command", cmd.args), slog.Any("error", err))
		return nil
	}
	return err
}

// editOptions are the "++opt" arguments edit understands, and whether they
// take a value.
var editOptions = map[string]bool{
	"enc": true, "encoding": true,
	"ff": true, "fileformat": true,
	"bad": true,
	"bin": false, "binary": false,
	"nobin": false, "nobinary": false,
	"edit": false,
}

func runEdit(ctx context.Context, e *Editor, cmd *cmdline) error {
	args := splitArgs(cmd.args)
	opts := make(map[string]string)

	i := 0
	for ; i < len(args) && strings.HasPrefix(args[i], "++"); i++ {
		name, val, hasVal := strings.Cut(args[i][2:], "=")
		takesValue, known := editOptions[name]
		if !known || takesValue != hasVal || (takesValue && val == "") {
			return execError(cmd.text, "E474", "invalid argument: %s", args[i])
		}
		opts[name] = val
	}

	var plus string
	hasPlus := false
	if i < len(args) && strings.HasPrefix(args[i], "+") {
		plus, hasPlus = args[i][1:], true
		i++
	}

	if len(args)-i > 1 {
		return execError(cmd.text, "E172", "only one file name allowed")
	}
	name := e.buffer.Name
	if i < len(args) {
		name = args[i]
	}
	if name == "" {
		return execError(cmd.text, "E32", "no file name")
	}

	e.buffer = Buffer{Name: name, Options: opts, Line: 1}
	for _, ev := range []string{"BufReadPost", "BufEnter"} {
		if _, err := e.Fire(ctx, ev, name); err != nil {
			return err
		}
	}

	if !hasPlus {
		return nil
	}
	if plus == "" {
		e.buffer.Line = -1
		return nil
	}
	if n, err := strconv.Atoi(plus); err == nil {
		e.buffer.Line = n
		return nil
	}
	return e.execute(ctx, plus)
}
