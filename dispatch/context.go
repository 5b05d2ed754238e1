package dispatch

import (
	"context"
)

// CallContext wraps a standard context.Context with dispatch-specific
// helpers. It carries the name of the endpoint being invoked and how deeply
// the current invocation is nested inside other invocations.
type CallContext interface {
	context.Context

	// FunctionName returns the name of the endpoint being invoked.
	FunctionName() string

	// Depth returns 1 for a top-level invocation, 2 for an invocation made
	// from inside another endpoint, and so on.
	Depth() int
}

// callContext is the concrete implementation of CallContext.
type callContext struct {
	context.Context
	funcName string
	depth    int
}

// NewCallContext creates a top-level CallContext wrapping the given context.
func NewCallContext(ctx context.Context, funcName string) CallContext {
	return &callContext{Context: ctx, funcName: funcName, depth: 1}
}

// FunctionName returns the name of the endpoint being invoked.
func (c *callContext) FunctionName() string {
	return c.funcName
}

// Depth returns the nesting depth of the invocation.
func (c *callContext) Depth() int {
	return c.depth
}

// CallContextFrom derives the CallContext for invoking funcName. When ctx
// already belongs to an invocation (the endpoint re-entered the table), the
// new context is nested one level deeper.
func CallContextFrom(ctx context.Context, funcName string) CallContext {
	if parent := findCallContext(ctx); parent != nil {
		return &callContext{Context: ctx, funcName: funcName, depth: parent.Depth() + 1}
	}
	return NewCallContext(ctx, funcName)
}

type callContextKey struct{}

// Value makes the CallContext discoverable through contexts derived from it.
func (c *callContext) Value(key any) any {
	if _, ok := key.(callContextKey); ok {
		return c
	}
	return c.Context.Value(key)
}

func findCallContext(ctx context.Context) CallContext {
	cc, _ := ctx.Value(callContextKey{}).(CallContext)
	return cc
}
