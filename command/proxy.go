package command

import (
	"context"
	"fmt"
	"strings"

	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
)

// Executor is the execution substrate: it runs one command line and, when
// capture is set, returns what the command printed.
type Executor interface {
	Exec(ctx context.Context, cmdline string, capture bool) (string, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, cmdline string, capture bool) (string, error)

// Exec implements Executor.
func (f ExecutorFunc) Exec(ctx context.Context, cmdline string, capture bool) (string, error) {
	return f(ctx, cmdline, capture)
}

// PreHook sees the assembled command line before execution and returns the
// line to execute.
type PreHook func(c *Context, cmdline string) (string, error)

// PostHook receives the execution result (the captured output, or nil when
// not capturing) and returns the invocation's result.
type PostHook func(c *Context, result any) (any, error)

// DefaultSeparator joins tokens on the command line.
const DefaultSeparator = " "

// Proxy formats and runs one command. Its fields may be changed at any time;
// changes apply to later invocations.
type Proxy struct {
	// Handlers run in order over the arguments.
	Handlers []Handler

	// Rest drains arguments left after Handlers. Nil makes leftover
	// arguments an error.
	Rest Handler

	// Sep joins the emitted tokens.
	Sep string

	// Pre runs before execution. Optional.
	Pre PreHook

	// Post runs after execution. Optional.
	Post PostHook

	name   string
	bang   bool
	exec   Executor
	owner  *Proxies
	banged *Proxy
}

// NewProxy creates a free-standing proxy for name running on exec, with no
// handlers and Default as catch-all. Proxies obtained from a Proxies table
// are usually more convenient.
func NewProxy(name string, exec Executor) *Proxy {
	bang := strings.HasSuffix(name, "!")
	return &Proxy{
		Rest: Default,
		Sep:  DefaultSeparator,
		name: strings.TrimSuffix(name, "!"),
		bang: bang,
		exec: exec,
	}
}

// Name returns the command name, with a trailing "!" for the bang variant.
func (p *Proxy) Name() string {
	if p.bang {
		return p.name + "!"
	}
	return p.name
}

// IsBang reports whether this is the "!" variant of the command.
func (p *Proxy) IsBang() bool {
	return p.bang
}

// Bang returns the proxy of the "!" variant. It has its own handlers and
// hooks. The bang variant of a bang proxy is the proxy itself.
func (p *Proxy) Bang() (*Proxy, error) {
	if p.bang {
		return p, nil
	}
	if p.owner != nil {
		return p.owner.Get(p.name + "!")
	}
	if p.banged == nil {
		p.banged = NewProxy(p.name+"!", p.exec)
	}
	return p.banged, nil
}

// Call formats args, runs the command and discards its output.
func (p *Proxy) Call(ctx context.Context, args ...any) (any, error) {
	return p.invoke(ctx, args, false)
}

// Output formats args, runs the command and returns its captured output,
// as shaped by the post hook.
func (p *Proxy) Output(ctx context.Context, args ...any) (any, error) {
	return p.invoke(ctx, args, true)
}

// Format runs the handler pipeline and returns the command line without
// executing it or running the hooks.
//
// Handlers still have their side effects: a callable argument given to a
// SubCommand handler is registered and keeps its identity, so the returned
// line can be executed later. An automatic collection that registration
// makes due is not run by Format; it stays pending until a later invocation
// registers a callable, or until GC.
func (p *Proxy) Format(ctx context.Context, args ...any) (string, error) {
	c := newContext(ctx, p, args)
	err := p.run(c)
	_ = c.finish(false)
	if err != nil {
		return "", err
	}
	return p.commandLine(c.tokens), nil
}

func (p *Proxy) invoke(ctx context.Context, args []any, capture bool) (result any, err error) {
	if p.exec == nil {
		return nil, bridgeerrors.NewConfigError(p.Name(), fmt.Errorf("no executor"))
	}
	c := newContext(ctx, p, args)
	defer func() {
		if cerr := c.finish(true); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err = p.run(c); err != nil {
		return nil, err
	}

	cmdline := p.commandLine(c.tokens)
	if p.Pre != nil {
		if cmdline, err = p.Pre(c, cmdline); err != nil {
			return nil, err
		}
	}

	out, err := p.exec.Exec(c, cmdline, capture)
	if err != nil {
		return nil, err
	}

	if capture {
		result = out
	}
	if p.Post != nil {
		return p.Post(c, result)
	}
	return result, nil
}

// run drives the handlers, then the catch-all.
func (p *Proxy) run(c *Context) error {
	for _, h := range p.Handlers {
		status, err := h(c)
		if err != nil {
			return err
		}
		if status == Exhausted {
			return nil
		}
	}

	for !c.Args.Empty() {
		if p.Rest == nil {
			return bridgeerrors.NewConfigError(p.Name(), bridgeerrors.ErrTooManyArguments)
		}
		before := c.Args.Len()
		status, err := p.Rest(c)
		if err != nil {
			return err
		}
		if status == Exhausted {
			return nil
		}
		if c.Args.Len() >= before {
			return bridgeerrors.NewConfigError(p.Name(),
				fmt.Errorf("catch-all handler left %d argument(s) untaken", c.Args.Len()))
		}
	}
	return nil
}

func (p *Proxy) commandLine(tokens []string) string {
	if len(tokens) == 0 {
		return p.Name()
	}
	return p.Name() + " " + strings.Join(tokens, p.Sep)
}
