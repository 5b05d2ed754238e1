package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/cmdbridge/cmdbridge/command"
	"github.com/cmdbridge/cmdbridge/dispatch"
	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	// maxDepth bounds command lines executing command lines.
	maxDepth = 100

	// maxMapDepth bounds mappings expanding to mappings.
	maxMapDepth = 1000

	// maxMessages is the size of the message history.
	maxMessages = 200
)

// editorConfig holds configuration for the Editor.
type editorConfig struct {
	table  *dispatch.Table
	logger *slog.Logger
	output io.Writer
}

// Option configures an Editor.
type Option func(*editorConfig)

// WithTable sets the dispatch table holding the callable functions. Without
// it the Editor creates one with panic recovery and logging middleware.
func WithTable(t *dispatch.Table) Option {
	return func(c *editorConfig) {
		c.table = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *editorConfig) {
		c.logger = logger
	}
}

// WithOutput sets where messages go when no capture is active.
// The default discards them; they still reach the message history.
func WithOutput(w io.Writer) Option {
	return func(c *editorConfig) {
		c.output = w
	}
}

// Buffer describes the file being edited.
type Buffer struct {
	Name    string
	Options map[string]string
	Line    int
}

// Editor executes command lines against in-memory host state.
type Editor struct {
	table    *dispatch.Table
	logger   *slog.Logger
	out      io.Writer
	builtins map[string]builtin
	commands map[string]*UserCommand
	keymaps  map[keymapKey]*Keymap
	autocmds []*Autocmd
	buffer   Buffer
	messages []string
	captures [][]string
	typed    []string
	depth    int
	silent   int
}

var _ command.Executor = (*Editor)(nil)

// New creates an Editor.
func New(opts ...Option) (*Editor, error) {
	cfg := editorConfig{output: io.Discard}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "editor"))

	table := cfg.table
	if table == nil {
		var err error
		table, err = dispatch.NewTable(dispatch.WithMiddleware(
			dispatch.PanicRecoveryMiddleware(),
			dispatch.LoggingMiddleware(logger),
		))
		if err != nil {
			return nil, fmt.Errorf("failed to create dispatch table: %w", err)
		}
	}

	return &Editor{
		table:    table,
		logger:   logger,
		out:      cfg.output,
		builtins: builtins(),
		commands: make(map[string]*UserCommand),
		keymaps:  make(map[keymapKey]*Keymap),
	}, nil
}

// Table returns the dispatch table functions are called through.
func (e *Editor) Table() *dispatch.Table {
	return e.table
}

// Exec runs one command line. With capture set, the messages the command
// produced are returned, one per line, instead of being written out.
func (e *Editor) Exec(ctx context.Context, line string, capture bool) (string, error) {
	if !capture {
		return "", e.execute(ctx, line)
	}
	e.captures = append(e.captures, nil)
	err := e.execute(ctx, line)
	top := len(e.captures) - 1
	lines := e.captures[top]
	e.captures = e.captures[:top]
	return strings.Join(lines, "\n"), err
}

// Messages returns the message history, oldest first.
func (e *Editor) Messages() []string {
	return append([]string(nil), e.messages...)
}

// Buffer returns the file being edited.
func (e *Editor) Buffer() Buffer {
	b := e.buffer
	if b.Options != nil {
		opts := make(map[string]string, len(b.Options))
		for k, v := range b.Options {
			opts[k] = v
		}
		b.Options = opts
	}
	return b
}

// Typed returns the keys that mappings sent to the editor without a
// command line to run them, oldest first.
func (e *Editor) Typed() []string {
	return append([]string(nil), e.typed...)
}

// cmdline is a parsed command line.
type cmdline struct {
	text string
	name string
	bang bool
	args string
}

func parseCommandLine(line string) (*cmdline, error) {
	s := strings.TrimLeft(line, " \t:")
	cmd := &cmdline{text: line}
	if s == "" || s[0] == '"' {
		return cmd, nil
	}

	i := 0
	for i < len(s) && isNameChar(s, i) {
		i++
	}
	if i == 0 {
		return nil, execError(line, "E492", "not an editor command: %s", strings.TrimSpace(s))
	}
	cmd.name = s[:i]
	rest := s[i:]
	if strings.HasPrefix(rest, "!") {
		cmd.bang = true
		rest = rest[1:]
	}
	cmd.args = strings.TrimLeft(rest, " \t")
	return cmd, nil
}

// isNameChar reports whether s[i] continues a command name. Builtin names are
// letters only; user command names start upper-case and may hold digits.
func isNameChar(s string, i int) bool {
	c := rune(s[i])
	if unicode.IsLetter(c) && c < unicode.MaxASCII {
		return true
	}
	return i > 0 && unicode.IsDigit(c) && unicode.IsUpper(rune(s[0]))
}

func (e *Editor) execute(ctx context.Context, line string) error {
	if e.depth >= maxDepth {
		return execError(line, "E169", "command too recursive")
	}
	e.depth++
	defer func() { e.depth-- }()

	cmd, err := parseCommandLine(line)
	if err != nil {
		return err
	}
	if cmd.name == "" {
		return nil
	}
	e.logger.Debug("executing command", slog.String("command", strings.TrimSpace(line)), slog.Int("depth", e.depth))

	err = e.dispatch(ctx, cmd)
	if err == nil {
		return nil
	}
	var ee *bridgeerrors.ExecError
	if errors.As(err, &ee) {
		return err
	}
	return &bridgeerrors.ExecError{Command: strings.TrimSpace(line), Err: err}
}

func (e *Editor) dispatch(ctx context.Context, cmd *cmdline) error {
	if b, ok := e.lookupBuiltin(cmd.name); ok {
		if cmd.bang && !b.bang {
			return execError(cmd.text, "E477", "no ! allowed")
		}
		return b.run(ctx, e, cmd)
	}

	uc, err := e.lookupUserCommand(cmd)
	if err != nil {
		return err
	}
	if uc != nil {
		return e.runUserCommand(ctx, uc, cmd)
	}
	return e.notFound(cmd)
}

func (e *Editor) lookupBuiltin(name string) (builtin, bool) {
	if full, ok := abbreviations[name]; ok {
		name = full
	}
	b, ok := e.builtins[name]
	return b, ok
}

func (e *Editor) notFound(cmd *cmdline) error {
	line := strings.TrimSpace(strings.TrimLeft(cmd.text, " \t:"))
	if s := e.suggest(cmd.name); s != "" {
		return execError(cmd.text, "E492", "not an editor command: %s (did you mean %q?)", line, s)
	}
	return execError(cmd.text, "E492", "not an editor command: %s", line)
}

// suggest returns the known command closest to name, or "".
func (e *Editor) suggest(name string) string {
	candidates := make([]string, 0, len(e.builtins)+len(e.commands))
	for n := range e.builtins {
		candidates = append(candidates, n)
	}
	for n := range e.commands {
		candidates = append(candidates, n)
	}
	sort.Strings(candidates)

	if ranks := fuzzy.RankFindFold(name, candidates); len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDist := "", 3
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// emit writes one message. An active capture receives it even when
// silenced; otherwise it goes to the output unless silenced.
func (e *Editor) emit(text string, history bool) {
	if history {
		e.messages = append(e.messages, text)
		if len(e.messages) > maxMessages {
			e.messages = e.messages[len(e.messages)-maxMessages:]
		}
	}
	if n := len(e.captures); n > 0 {
		e.captures[n-1] = append(e.captures[n-1], text)
		return
	}
	if e.silent > 0 {
		return
	}
	fmt.Fprintln(e.out, text)
}

// nextWord splits off the first whitespace-separated word of s.
func nextWord(s string) (word, rest string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

// splitArgs splits s on whitespace not escaped by a backslash, removing the
// escaping backslashes.
func splitArgs(s string) []string {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
			inWord = true
		case r == '\\':
			escaped = true
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if escaped {
		cur.WriteRune('\\')
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args
}
