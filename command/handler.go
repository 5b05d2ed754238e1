package command

import (
	"strings"

	"github.com/cmdbridge/cmdbridge/bridge"
	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
)

// Status reports what a handler did with the argument cursor.
type Status int

const (
	// Consumed means the handler took at least one argument.
	Consumed Status = iota

	// Skipped means the handler took nothing, or put back what it took.
	Skipped

	// Exhausted means the handler needed an argument and the cursor was
	// empty. The pipeline stops without failing the invocation.
	Exhausted
)

func (s Status) String() string {
	switch s {
	case Consumed:
		return "consumed"
	case Skipped:
		return "skipped"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Handler takes arguments from c.Args and emits tokens into c.
type Handler func(c *Context) (Status, error)

// DefaultEscape is the character class escaped by Default.
const DefaultEscape = ` \`

// Map returns a handler that takes one argument, converts it with fn and
// emits the result unchanged.
func Map(fn func(v any) (string, error)) Handler {
	return func(c *Context) (Status, error) {
		v, ok := c.Args.Take()
		if !ok {
			return Exhausted, nil
		}
		tok, err := fn(v)
		if err != nil {
			return Consumed, err
		}
		c.EmitRaw(tok)
		return Consumed, nil
	}
}

// stringHandler builds a handler taking one argument that must convert to a
// string and emitting it through emit.
func stringHandler(emit func(c *Context, s string) error) Handler {
	return func(c *Context) (Status, error) {
		v, ok := c.Args.Take()
		if !ok {
			return Exhausted, nil
		}
		s, err := ToString(v)
		if err != nil {
			return Consumed, err
		}
		return Consumed, emit(c, s)
	}
}

// Default takes one argument and emits it with spaces and backslashes
// escaped. It is the catch-all of a proxy nobody customized.
var Default = stringHandler(func(c *Context, s string) error {
	c.EmitEscaped(s, DefaultEscape)
	return nil
})

// Raw takes one argument and emits it unchanged.
var Raw = stringHandler(func(c *Context, s string) error {
	c.EmitRaw(s)
	return nil
})

// Filename takes one argument and emits it escaped as a file name.
var Filename = stringHandler(func(c *Context, s string) error {
	c.EmitFilename(s)
	return nil
})

// SingleQuoted takes one argument and emits it single-quoted.
var SingleQuoted = stringHandler(func(c *Context, s string) error {
	return c.EmitSingleQuoted(s)
})

// DoubleQuoted takes one argument and emits it double-quoted.
var DoubleQuoted = stringHandler(func(c *Context, s string) error {
	c.EmitDoubleQuoted(s)
	return nil
})

// Prefixed returns a handler that takes one string argument matching match
// and emits it verbatim. Anything else is put back and reported as Skipped,
// which ends a Repeat.
func Prefixed(match func(s string) bool) Handler {
	return func(c *Context) (Status, error) {
		v, ok := c.Args.Take()
		if !ok {
			return Exhausted, nil
		}
		s, isString := v.(string)
		if !isString || !match(s) {
			c.Args.Untake()
			return Skipped, nil
		}
		c.EmitRaw(s)
		return Consumed, nil
	}
}

// PlusOpt matches "+cmd" style arguments (but not "++opt").
var PlusOpt = Prefixed(func(s string) bool {
	return len(s) > 1 && s[0] == '+' && s[1] != '+'
})

// PlusPlusOpt matches "++opt" style arguments.
var PlusPlusOpt = Prefixed(func(s string) bool {
	return len(s) > 2 && strings.HasPrefix(s, "++")
})

// DashOpt matches "-opt" style arguments.
var DashOpt = Prefixed(func(s string) bool {
	return len(s) > 1 && s[0] == '-'
})

// Repeat runs h until it stops consuming. It reports Consumed when h
// consumed at least once and Skipped otherwise, so nested repeats terminate.
// Exhausted and errors from h are passed through.
func Repeat(h Handler) Handler {
	return func(c *Context) (Status, error) {
		result := Skipped
		for {
			status, err := h(c)
			if err != nil {
				return status, err
			}
			switch status {
			case Consumed:
				result = Consumed
			case Exhausted:
				return Exhausted, nil
			default:
				return result, nil
			}
		}
	}
}

// Optional runs h and turns Exhausted into Skipped, so the handlers after it
// still run when it finds nothing.
func Optional(h Handler) Handler {
	return func(c *Context) (Status, error) {
		status, err := h(c)
		if status == Exhausted {
			status = Skipped
		}
		return status, err
	}
}

// Literal returns a handler that emits tok without taking an argument.
func Literal(tok string) Handler {
	return func(c *Context) (Status, error) {
		c.EmitRaw(tok)
		return Skipped, nil
	}
}

// DefaultReference formats the command text invoking an identity.
func DefaultReference(id string) string {
	return "call " + id + "()"
}

// SubCommandOptions configures SubCommand.
type SubCommandOptions struct {
	// Namespace registers a trailing callable argument. Without it a
	// callable argument is a value error.
	Namespace *bridge.Namespace

	// Reference formats the command text invoking an identity.
	// Defaults to DefaultReference.
	Reference func(id string) string
}

// SubCommand returns a handler that emits the remaining arguments as a
// nested command. Every argument is emitted raw, except a trailing callable,
// which is registered in the namespace and replaced by a reference that
// invokes it with no arguments. An automatic collection the registration
// makes due runs only after the command has executed.
func SubCommand(opts SubCommandOptions) Handler {
	ref := opts.Reference
	if ref == nil {
		ref = DefaultReference
	}
	return func(c *Context) (Status, error) {
		if c.Args.Empty() {
			return Exhausted, nil
		}
		for {
			v, ok := c.Args.Take()
			if !ok {
				return Consumed, nil
			}
			if callable, isCallable := v.(bridge.Callable); isCallable {
				if !c.Args.Empty() {
					return Consumed, bridgeerrors.NewValueError(v, "a callable must be the last argument of a sub-command")
				}
				if opts.Namespace == nil {
					return Consumed, bridgeerrors.NewValueError(v, "no namespace configured to register the callable")
				}
				c.DeferCollection(opts.Namespace.Registry())
				id, err := opts.Namespace.Identity(callable)
				if err != nil {
					return Consumed, err
				}
				c.EmitRaw(ref(id))
				return Consumed, nil
			}
			s, err := ToString(v)
			if err != nil {
				return Consumed, err
			}
			c.EmitRaw(s)
		}
	}
}
