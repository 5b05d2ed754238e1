package editor

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// Autocmd is one autocommand.
type Autocmd struct {
	Event   string
	Pattern string
	Command string
	Once    bool
	Nested  bool
}

// Events are the autocommand events the editor knows.
var Events = []string{
	"BufAdd", "BufDelete", "BufEnter", "BufLeave", "BufNewFile",
	"BufReadPre", "BufReadPost", "BufWinEnter", "BufWritePre", "BufWritePost",
	"CmdlineEnter", "CmdlineLeave", "CursorHold", "FileType",
	"InsertEnter", "InsertLeave", "TextChanged", "User",
	"VimEnter", "VimLeave", "VimLeavePre", "WinEnter", "WinLeave",
}

var eventAliases = map[string]string{
	"bufread":   "BufReadPost",
	"bufwrite":  "BufWritePre",
	"bufcreate": "BufAdd",
}

// canonicalEvent resolves an event name case-insensitively.
func canonicalEvent(name string) (string, bool) {
	lower := strings.ToLower(name)
	if alias, ok := eventAliases[lower]; ok {
		return alias, true
	}
	for _, ev := range Events {
		if strings.ToLower(ev) == lower {
			return ev, true
		}
	}
	return "", false
}

// parseEvents resolves a comma-separated event list. "*" yields nil,
// meaning every event.
func parseEvents(line, list string) ([]string, error) {
	if list == "*" {
		return nil, nil
	}
	var events []string
	for _, name := range strings.Split(list, ",") {
		ev, ok := canonicalEvent(name)
		if !ok {
			return nil, execError(line, "E216", "no such event: %s", name)
		}
		events = append(events, ev)
	}
	return events, nil
}

func runAutocmd(_ context.Context, e *Editor, cmd *cmdline) error {
	eventList, rest := nextWord(cmd.args)
	if eventList == "" {
		if cmd.bang {
			e.autocmds = nil
			return nil
		}
		e.listAutocmds(nil, "")
		return nil
	}
	events, err := parseEvents(cmd.text, eventList)
	if err != nil {
		return err
	}

	pattern, rest := nextWord(rest)
	a := Autocmd{Pattern: pattern}
	for {
		var opt string
		switch {
		case strings.HasPrefix(rest, "++once"):
			a.Once, opt = true, "++once"
		case strings.HasPrefix(rest, "++nested"):
			a.Nested, opt = true, "++nested"
		case strings.HasPrefix(rest, "++"):
			tok, _ := nextWord(rest)
			return execError(cmd.text, "E475", "invalid argument: %s", tok)
		}
		if opt == "" {
			break
		}
		rest = strings.TrimLeft(rest[len(opt):], " \t")
	}
	a.Command = rest

	if cmd.bang {
		e.removeAutocmds(events, pattern)
	}
	if a.Command == "" {
		if !cmd.bang {
			e.listAutocmds(events, pattern)
		}
		return nil
	}
	if events == nil {
		return execError(cmd.text, "E216", "no such event: *")
	}
	for _, ev := range events {
		entry := a
		entry.Event = ev
		e.autocmds = append(e.autocmds, &entry)
		e.logger.Debug("autocommand defined",
			slog.String("event", ev), slog.String("pattern", pattern), slog.String("command", a.Command))
	}
	return nil
}

func matchesEvent(events []string, ev string) bool {
	if events == nil {
		return true
	}
	for _, e := range events {
		if e == ev {
			return true
		}
	}
	return false
}

func (e *Editor) removeAutocmds(events []string, pattern string) {
	kept := e.autocmds[:0:0]
	for _, a := range e.autocmds {
		if matchesEvent(events, a.Event) && (pattern == "" || a.Pattern == pattern) {
			continue
		}
		kept = append(kept, a)
	}
	e.autocmds = kept
}

func (e *Editor) removeAutocmd(target *Autocmd) bool {
	for i, a := range e.autocmds {
		if a == target {
			e.autocmds = append(e.autocmds[:i:i], e.autocmds[i+1:]...)
			return true
		}
	}
	return false
}

func (e *Editor) listAutocmds(events []string, pattern string) {
	e.emit("--- Autocommands ---", false)
	for _, a := range e.autocmds {
		if !matchesEvent(events, a.Event) || (pattern != "" && a.Pattern != pattern) {
			continue
		}
		e.emit(fmt.Sprintf("%-14s %-10s %s", a.Event, a.Pattern, a.Command), false)
	}
}

// Autocmds returns every autocommand in definition order.
func (e *Editor) Autocmds() []Autocmd {
	out := make([]Autocmd, len(e.autocmds))
	for i, a := range e.autocmds {
		out[i] = *a
	}
	return out
}

// Fire runs the autocommands for event whose pattern matches file and
// returns how many ran. "++once" autocommands are removed before they run.
func (e *Editor) Fire(ctx context.Context, event, file string) (int, error) {
	ev, ok := canonicalEvent(event)
	if !ok {
		return 0, execError("doautocmd "+event, "E216", "no such event: %s", event)
	}

	snapshot := append([]*Autocmd(nil), e.autocmds...)
	n := 0
	for _, a := range snapshot {
		if a.Event != ev || !matchPattern(a.Pattern, file) {
			continue
		}
		if a.Once {
			if !e.removeAutocmd(a) {
				continue
			}
		} else if !e.hasAutocmd(a) {
			continue
		}
		n++
		if err := e.execute(ctx, a.Command); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (e *Editor) hasAutocmd(target *Autocmd) bool {
	for _, a := range e.autocmds {
		if a == target {
			return true
		}
	}
	return false
}

// matchPattern matches a comma-separated list of file patterns. A pattern
// without a slash matches the file's base name.
func matchPattern(patterns, file string) bool {
	for _, pat := range strings.Split(patterns, ",") {
		if pat == "*" {
			return true
		}
		target := file
		if !strings.Contains(pat, "/") {
			target = path.Base(file)
		}
		if ok, err := path.Match(pat, target); err == nil && ok {
			return true
		}
	}
	return false
}

func runDoautocmd(ctx context.Context, e *Editor, cmd *cmdline) error {
	args := strings.TrimPrefix(strings.TrimLeft(cmd.args, " \t"), "<nomodeline>")
	event, rest := nextWord(args)
	if event == "" {
		return execError(cmd.text, "E471", "argument required")
	}
	file := e.buffer.Name
	if parts := splitArgs(rest); len(parts) > 0 {
		file = strings.Join(parts, " ")
	}

	n, err := e.Fire(ctx, event, file)
	if err != nil {
		return err
	}
	if n == 0 {
		e.emit(strings.TrimSpace("No matching autocommands: "+event+" "+file), false)
	}
	return nil
}
