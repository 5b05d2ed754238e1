package bridge

import (
	"context"
	"reflect"

	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
)

// Callable is anything the host can invoke through an identity.
//
// The dynamic type must be comparable, because callables key the namespace
// mapping. Pointer types always qualify; wrap plain functions with NewFunc.
type Callable interface {
	Call(ctx context.Context, args []any) (any, error)
}

// Releaser is implemented by callables that hold resources outside Go, such
// as a slot in a script engine's registry. Release is called once, when the
// callable's identity is reclaimed.
type Releaser interface {
	Release()
}

// Func adapts a Go function to Callable. Every NewFunc call yields a distinct
// callable, even for the same function value.
type Func struct {
	fn func(ctx context.Context, args []any) (any, error)
}

// NewFunc wraps fn as a Callable.
func NewFunc(fn func(ctx context.Context, args []any) (any, error)) *Func {
	return &Func{fn: fn}
}

// Call implements Callable.
func (f *Func) Call(ctx context.Context, args []any) (any, error) {
	return f.fn(ctx, args)
}

// checkCallable rejects values that cannot key the namespace mapping.
func checkCallable(c Callable) error {
	if c == nil {
		return bridgeerrors.NewValueError(nil, "callable is nil")
	}
	if f, ok := c.(*Func); ok && (f == nil || f.fn == nil) {
		return bridgeerrors.NewValueError(c, "callable has no function")
	}
	if !reflect.TypeOf(c).Comparable() {
		return bridgeerrors.NewValueError(c, "callable of type %T is not comparable; wrap it with bridge.NewFunc", c)
	}
	return nil
}
