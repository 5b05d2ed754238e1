// Package log provides the slog handlers used by the cmdbridge command.
package log

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
)

// Handler is a slog.Handler writing one JSON RecordWire per line.
type Handler struct {
	opts   handlerConfig
	out    *output
	attrs  []AttrWire
	groups []string
}

// output is the writer shared by a handler and the handlers derived from it.
type output struct {
	mu sync.Mutex
	w  io.Writer
}

// HandlerOption configures the Handler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	level     slog.Leveler
	addSource bool
}

// defaultHandlerConfig returns the default configuration.
func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report. A *slog.LevelVar lets the
// level change after the handler is built.
func WithLevel(level slog.Leveler) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// NewHandler creates a Handler writing to w.
func NewHandler(w io.Writer, opts ...HandlerOption) *Handler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Handler{opts: cfg, out: &output{w: w}}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

// Handle writes r as one JSON line.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	wire := RecordWire{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
	}
	if h.opts.addSource && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := frames.Next()
		wire.Source = fmt.Sprintf("%s:%d", f.File, f.Line)
	}

	wire.Attrs = append(make([]AttrWire, 0, len(h.attrs)+r.NumAttrs()), h.attrs...)
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		wire.Attrs = appendAttrWire(wire.Attrs, prefix, a)
		return true
	})

	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("failed to marshal log record: %w", err)
	}
	data = append(data, '\n')

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err = h.out.w.Write(data)
	return err
}

// WithAttrs returns a Handler that includes the given attributes in every
// record, under the current group.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := h.clone()
	prefix := strings.Join(h.groups, ".")
	for _, a := range attrs {
		next.attrs = appendAttrWire(next.attrs, prefix, a)
	}
	return next
}

// WithGroup returns a Handler that qualifies later attributes with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.groups = append(next.groups, name)
	return next
}

func (h *Handler) clone() *Handler {
	return &Handler{
		opts:   h.opts,
		out:    h.out,
		attrs:  append([]AttrWire(nil), h.attrs...),
		groups: append([]string(nil), h.groups...),
	}
}

// ParseLevel parses "debug", "info", "warn" or "error".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// New returns a logger writing to w in format "text" (slog's text handler)
// or "json" (Handler).
func New(w io.Writer, format string, level slog.Leveler) (*slog.Logger, error) {
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
	case "json":
		return slog.New(NewHandler(w, WithLevel(level))), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
