package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Keymap is one key mapping.
type Keymap struct {
	// Mode is "n", "i", "v", "x", "o", "c", "!" (insert and command line)
	// or "" (normal, visual and operator-pending).
	Mode    string
	LHS     string
	RHS     string
	Noremap bool
	Silent  bool
	Buffer  bool
	Nowait  bool
	Expr    bool
	Unique  bool
}

type keymapKey struct {
	mode string
	lhs  string
}

type mapCommand struct {
	mode    string
	noremap bool
}

var mapCommands = map[string]mapCommand{
	"map": {mode: ""}, "noremap": {mode: "", noremap: true},
	"nmap": {mode: "n"}, "nnoremap": {mode: "n", noremap: true},
	"imap": {mode: "i"}, "inoremap": {mode: "i", noremap: true},
	"vmap": {mode: "v"}, "vnoremap": {mode: "v", noremap: true},
	"xmap": {mode: "x"}, "xnoremap": {mode: "x", noremap: true},
	"omap": {mode: "o"}, "onoremap": {mode: "o", noremap: true},
	"cmap": {mode: "c"}, "cnoremap": {mode: "c", noremap: true},
}

var unmapCommands = map[string]string{
	"unmap": "", "nunmap": "n", "iunmap": "i", "vunmap": "v",
	"xunmap": "x", "ounmap": "o", "cunmap": "c",
}

// parseMapArgs reads the modifiers, the lhs and the rhs of a mapping command.
func parseMapArgs(args string) (km Keymap, rhs string) {
	rest := args
	for {
		rest = strings.TrimLeft(rest, " \t")
		switch {
		case strings.HasPrefix(rest, "<buffer>"):
			km.Buffer = true
		case strings.HasPrefix(rest, "<silent>"):
			km.Silent = true
		case strings.HasPrefix(rest, "<nowait>"):
			km.Nowait = true
		case strings.HasPrefix(rest, "<expr>"):
			km.Expr = true
		case strings.HasPrefix(rest, "<unique>"):
			km.Unique = true
		default:
			km.LHS, rhs = splitLHS(rest)
			return km, rhs
		}
		rest = rest[strings.IndexByte(rest, '>')+1:]
	}
}

// splitLHS splits off the lhs, which ends at the first unescaped blank.
// "\ " and "\\" stand for a blank and a backslash.
func splitLHS(s string) (lhs, rest string) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && (s[i+1] == ' ' || s[i+1] == '\\'):
			i++
			b.WriteByte(s[i])
		case c == ' ' || c == '\t':
			return b.String(), strings.TrimLeft(s[i:], " \t")
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), ""
}

func mapBuiltin(mc mapCommand) func(ctx context.Context, e *Editor, cmd *cmdline) error {
	return func(_ context.Context, e *Editor, cmd *cmdline) error {
		mode := mc.mode
		if cmd.bang {
			mode = "!"
		}
		km, rhs := parseMapArgs(cmd.args)
		if km.LHS == "" || rhs == "" {
			e.listKeymaps(mode, km.LHS)
			return nil
		}

		key := keymapKey{mode: mode, lhs: km.LHS}
		if _, exists := e.keymaps[key]; exists && km.Unique {
			return execError(cmd.text, "E227", "mapping already exists for %s", km.LHS)
		}
		km.Mode = mode
		km.RHS = rhs
		km.Noremap = mc.noremap
		e.keymaps[key] = &km
		e.logger.Debug("mapping defined",
			slog.String("mode", mode), slog.String("lhs", km.LHS), slog.String("rhs", rhs))
		return nil
	}
}

func unmapBuiltin(unmapMode string) func(ctx context.Context, e *Editor, cmd *cmdline) error {
	return func(_ context.Context, e *Editor, cmd *cmdline) error {
		mode := unmapMode
		if cmd.bang {
			mode = "!"
		}
		km, _ := parseMapArgs(cmd.args)
		if km.LHS == "" {
			return execError(cmd.text, "E474", "invalid argument")
		}
		key := keymapKey{mode: mode, lhs: km.LHS}
		if _, ok := e.keymaps[key]; !ok {
			return execError(cmd.text, "E31", "no such mapping")
		}
		delete(e.keymaps, key)
		return nil
	}
}

func (e *Editor) listKeymaps(mode, prefix string) {
	found := false
	for _, km := range e.Keymaps() {
		if km.Mode != mode || !strings.HasPrefix(km.LHS, prefix) {
			continue
		}
		found = true
		flag := " "
		if km.Noremap {
			flag = "*"
		}
		e.emit(fmt.Sprintf("%-3s%-12s%s %s", km.Mode, km.LHS, flag, km.RHS), false)
	}
	if !found {
		e.emit("No mapping found", false)
	}
}

// Keymaps returns every mapping, ordered by mode then lhs.
func (e *Editor) Keymaps() []Keymap {
	out := make([]Keymap, 0, len(e.keymaps))
	for _, km := range e.keymaps {
		out = append(out, *km)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mode != out[j].Mode {
			return out[i].Mode < out[j].Mode
		}
		return out[i].LHS < out[j].LHS
	})
	return out
}

// Feed types keys in mode and runs the mapping they trigger. Command lines
// in the rhs (":...<CR>") are executed; other keys are recorded in Typed.
func (e *Editor) Feed(ctx context.Context, mode, keys string) error {
	km, ok := e.lookupKeymap(mode, keys)
	if !ok {
		return fmt.Errorf("%w for %q in mode %q", ErrNoMapping, keys, mode)
	}
	return e.runKeymap(ctx, km, 1)
}

func (e *Editor) lookupKeymap(mode, lhs string) (*Keymap, bool) {
	if km, ok := e.keymaps[keymapKey{mode: mode, lhs: lhs}]; ok {
		return km, true
	}
	var fallback string
	switch mode {
	case "n", "v", "x", "o":
		fallback = ""
	case "i", "c":
		fallback = "!"
	default:
		return nil, false
	}
	km, ok := e.keymaps[keymapKey{mode: fallback, lhs: lhs}]
	return km, ok
}

func (e *Editor) runKeymap(ctx context.Context, km *Keymap, depth int) error {
	if depth > maxMapDepth {
		return execError(km.LHS, "E223", "recursive mapping")
	}
	mode := km.Mode
	switch mode {
	case "":
		mode = "n"
	case "!":
		mode = "i"
	}
	keys := km.RHS
	if km.Expr {
		v, err := e.evalExpr(ctx, km.RHS)
		if err != nil {
			return err
		}
		keys = formatValue(v)
	}
	return e.typeKeys(ctx, mode, keys, km.Noremap, depth)
}

func (e *Editor) typeKeys(ctx context.Context, mode, keys string, noremap bool, depth int) error {
	rest := keys
	for rest != "" {
		if rest[0] == ':' {
			end, n := findCR(rest)
			if end < 0 {
				e.typed = append(e.typed, rest)
				return nil
			}
			if err := e.execute(ctx, rest[1:end]); err != nil {
				return err
			}
			rest = rest[end+n:]
			continue
		}

		chunk := rest
		if i := strings.IndexByte(rest, ':'); i >= 0 {
			chunk, rest = rest[:i], rest[i:]
		} else {
			rest = ""
		}
		if !noremap {
			if km, ok := e.lookupKeymap(mode, chunk); ok {
				if err := e.runKeymap(ctx, km, depth+1); err != nil {
					return err
				}
				continue
			}
		}
		e.typed = append(e.typed, chunk)
	}
	return nil
}

// findCR returns the position and length of the first key that ends a
// command line, or -1.
func findCR(s string) (int, int) {
	lower := strings.ToLower(s)
	best, size := -1, 0
	for _, tok := range []string{"<cr>", "<enter>", "<return>", "\r", "\n"} {
		if i := strings.Index(lower, tok); i >= 0 && (best < 0 || i < best) {
			best, size = i, len(tok)
		}
	}
	return best, size
}
