package dispatch

import (
	"context"
	"fmt"
	"sort"
)

// Endpoint is a host-invocable function. It receives positional arguments
// and returns a single value.
type Endpoint func(ctx context.Context, args []any) (any, error)

// Dispatcher is the capability the bridge needs from a host dispatch table:
// define and undefine endpoints under exact names, and invoke them.
type Dispatcher interface {
	Register(name string, ep Endpoint) error
	Unregister(name string) bool
	Invoke(ctx context.Context, name string, args []any) (any, error)
	Has(name string) bool
}

// Table is an in-memory Dispatcher. Middleware is applied to every endpoint
// when it is registered.
type Table struct {
	endpoints  map[string]Endpoint
	middleware []Middleware
}

// tableBuilder accumulates configuration during table construction.
type tableBuilder struct {
	endpoints  map[string]Endpoint
	order      []string
	middleware []Middleware
	errors     []error
}

// Option is a functional option for configuring a Table.
type Option func(*tableBuilder)

var _ Dispatcher = (*Table)(nil)

// NewTable creates a Table with the given options.
// Returns an error if any endpoint name is registered twice.
//
// Example usage:
//
//	table, err := NewTable(
//	    WithMiddleware(PanicRecoveryMiddleware(), LoggingMiddleware(logger)),
//	    WithEndpoint("Strftime", strftime),
//	)
func NewTable(opts ...Option) (*Table, error) {
	b := &tableBuilder{
		endpoints: make(map[string]Endpoint),
	}
	for _, opt := range opts {
		opt(b)
	}
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	t := &Table{
		endpoints:  make(map[string]Endpoint, len(b.endpoints)),
		middleware: b.middleware,
	}
	for _, name := range b.order {
		t.endpoints[name] = t.wrap(b.endpoints[name])
	}
	return t, nil
}

// Register defines an endpoint under name.
func (t *Table) Register(name string, ep Endpoint) error {
	if err := checkName(name, ep); err != nil {
		return err
	}
	if _, exists := t.endpoints[name]; exists {
		return fmt.Errorf("duplicate function name: %q", name)
	}
	t.endpoints[name] = t.wrap(ep)
	return nil
}

// Unregister undefines the endpoint under name and reports whether it existed.
func (t *Table) Unregister(name string) bool {
	if _, ok := t.endpoints[name]; !ok {
		return false
	}
	delete(t.endpoints, name)
	return true
}

// Invoke dispatches a call by name.
func (t *Table) Invoke(ctx context.Context, name string, args []any) (any, error) {
	ep, ok := t.endpoints[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return ep(CallContextFrom(ctx, name), args)
}

// Has returns true if an endpoint with the given name is registered.
func (t *Table) Has(name string) bool {
	_, ok := t.endpoints[name]
	return ok
}

// Names returns a sorted list of all registered endpoint names.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.endpoints))
	for name := range t.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered endpoints.
func (t *Table) Len() int {
	return len(t.endpoints)
}

// wrap applies middleware in reverse order so the first middleware wraps
// outermost.
func (t *Table) wrap(ep Endpoint) Endpoint {
	wrapped := ep
	for i := len(t.middleware) - 1; i >= 0; i-- {
		wrapped = t.middleware[i](wrapped)
	}
	return wrapped
}

func checkName(name string, ep Endpoint) error {
	if name == "" {
		return fmt.Errorf("function name cannot be empty")
	}
	if ep == nil {
		return fmt.Errorf("function %q has no endpoint", name)
	}
	return nil
}

// addEndpoint registers an endpoint with the given name during construction.
func (b *tableBuilder) addEndpoint(name string, ep Endpoint) error {
	if err := checkName(name, ep); err != nil {
		return err
	}
	if _, exists := b.endpoints[name]; exists {
		return fmt.Errorf("duplicate function name: %q", name)
	}
	b.endpoints[name] = ep
	b.order = append(b.order, name)
	return nil
}

// WithEndpoint registers an endpoint at construction time.
func WithEndpoint(name string, ep Endpoint) Option {
	return func(b *tableBuilder) {
		if err := b.addEndpoint(name, ep); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithMiddleware adds middleware to the table.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) Option {
	return func(b *tableBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
