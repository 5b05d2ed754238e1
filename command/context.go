package command

import (
	"context"
	"errors"

	"github.com/cmdbridge/cmdbridge/bridge"
)

// Context is the formatting context of one invocation. It carries the
// argument cursor and collects the emitted tokens.
type Context struct {
	context.Context

	// Args holds the arguments not yet taken by a handler.
	Args *Args

	proxy  *Proxy
	tokens  []string
	values  map[any]any
	resumes []func(collect bool) error
}

func newContext(ctx context.Context, p *Proxy, args []any) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		Context: ctx,
		Args:    NewArgs(args...),
		proxy:   p,
	}
}

// Name returns the command name being formatted, including a trailing "!"
// for the bang variant.
func (c *Context) Name() string {
	return c.proxy.Name()
}

// Proxy returns the proxy being invoked.
func (c *Context) Proxy() *Proxy {
	return c.proxy
}

// Tokens returns a copy of the tokens emitted so far.
func (c *Context) Tokens() []string {
	out := make([]string, len(c.tokens))
	copy(out, c.tokens)
	return out
}

// SetValue stores an invocation-scoped value, visible to later handlers
// and to the hooks.
func (c *Context) SetValue(key, value any) {
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = value
}

// GetValue retrieves a value stored with SetValue.
func (c *Context) GetValue(key any) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// DeferCollection holds back automatic collection in r until the invocation
// has executed. Handlers that register callables call it first, so an
// identity stays live until the command line referencing it has run.
func (c *Context) DeferCollection(r *bridge.Registry) {
	c.resumes = append(c.resumes, r.DeferCollection())
}

// finish ends the deferrals taken by handlers, newest first.
func (c *Context) finish(collect bool) error {
	var errs []error
	for i := len(c.resumes) - 1; i >= 0; i-- {
		if err := c.resumes[i](collect); err != nil {
			errs = append(errs, err)
		}
	}
	c.resumes = nil
	return errors.Join(errs...)
}

// EmitRaw appends tok unchanged.
func (c *Context) EmitRaw(tok string) {
	c.tokens = append(c.tokens, tok)
}

// EmitEscaped appends s with every character of chars backslash-escaped.
func (c *Context) EmitEscaped(s, chars string) {
	c.EmitRaw(EscapeChars(s, chars))
}

// EmitFilename appends s escaped as a file name.
func (c *Context) EmitFilename(s string) {
	c.EmitRaw(EscapeFilename(s))
}

// EmitSingleQuoted appends s wrapped in single quotes. It fails when s
// contains a single quote.
func (c *Context) EmitSingleQuoted(s string) error {
	tok, err := SingleQuote(s)
	if err != nil {
		return err
	}
	c.EmitRaw(tok)
	return nil
}

// EmitDoubleQuoted appends s wrapped in double quotes, with backslashes and
// double quotes escaped.
func (c *Context) EmitDoubleQuoted(s string) {
	c.EmitRaw(DoubleQuote(s))
}
