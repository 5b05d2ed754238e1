package luabind

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Shopify/go-lua"

	"github.com/cmdbridge/cmdbridge/bridge"
	"github.com/cmdbridge/cmdbridge/command"
)

// Function is a Lua function held by Go. It is a bridge.Callable; calling
// it runs the function in the binding's Lua state.
//
// A Function stays valid while a namespace holds it or it is pinned.
// Functions converted for a single host call are released when the call
// returns, so Go code keeping one beyond that must Pin it.
type Function struct {
	bd     *Binding
	handle int
	pins   int
}

var (
	_ bridge.Callable = (*Function)(nil)
	_ bridge.Releaser = (*Function)(nil)
)

// Call runs the function with args and returns its first result.
func (f *Function) Call(ctx context.Context, args []any) (any, error) {
	l := f.bd.l
	l.Field(lua.RegistryIndex, functionsKey)
	l.RawGetInt(-1, f.handle)
	l.Remove(-2)
	if !l.IsFunction(-1) {
		l.Pop(1)
		return nil, fmt.Errorf("lua function %d has been released", f.handle)
	}
	for _, a := range args {
		f.bd.push(a)
	}
	if err := f.bd.run(ctx, len(args), 1); err != nil {
		return nil, err
	}
	v := f.bd.toGo(-1)
	l.Pop(1)
	return v, nil
}

// Release drops the Lua reference once no namespace holds the function and
// it is not pinned.
func (f *Function) Release() {
	if !f.held() {
		f.bd.release(f)
	}
}

// Pin keeps the function valid until a matching Unpin.
func (f *Function) Pin() {
	f.pins++
}

// Unpin undoes one Pin, releasing the function when nothing else holds it.
func (f *Function) Unpin() {
	if f.pins > 0 {
		f.pins--
	}
	f.Release()
}

func (f *Function) held() bool {
	if f.pins > 0 {
		return true
	}
	reg := f.bd.b.Registry
	for _, name := range reg.Namespaces() {
		if reg.Namespace(name).Has(f) {
			return true
		}
	}
	return false
}

// function returns the Function for the Lua function at index, reusing the
// one already handed out for the same function value.
func (bd *Binding) function(index int) *Function {
	l := bd.l
	index = l.AbsIndex(index)

	l.Field(lua.RegistryIndex, handlesKey)
	l.PushValue(index)
	l.RawGet(-2)
	handle, ok := l.ToInteger(-1)
	l.Pop(2)
	if ok {
		if f, live := bd.functions[handle]; live {
			return f
		}
	}

	bd.nextID++
	f := &Function{bd: bd, handle: bd.nextID}

	l.Field(lua.RegistryIndex, functionsKey)
	l.PushValue(index)
	l.RawSetInt(-2, f.handle)
	l.Pop(1)

	l.Field(lua.RegistryIndex, handlesKey)
	l.PushValue(index)
	l.PushInteger(f.handle)
	l.RawSet(-3)
	l.Pop(1)

	bd.functions[f.handle] = f
	bd.fresh = append(bd.fresh, f)
	return f
}

// mark returns the position sweep releases from.
func (bd *Binding) mark() int {
	return len(bd.fresh)
}

// sweep releases the functions converted since mark that nothing holds.
func (bd *Binding) sweep(mark int) {
	if mark > len(bd.fresh) {
		return
	}
	for _, f := range bd.fresh[mark:] {
		if !f.held() {
			bd.release(f)
		}
	}
	clear(bd.fresh[mark:])
	bd.fresh = bd.fresh[:mark]
}

// hold pins fns as the functions behind one hook slot of p, unpinning the
// ones the slot held before.
func (bd *Binding) hold(p *command.Proxy, slot string, fns []*Function) {
	key := hookKey{proxy: p, slot: slot}
	prev := bd.hooks[key]
	for _, f := range fns {
		f.Pin()
	}
	if len(fns) == 0 {
		delete(bd.hooks, key)
	} else {
		bd.hooks[key] = fns
	}
	for _, f := range prev {
		f.Unpin()
	}
}

// finish pushes result, or raises err, then sweeps from mark. It is the
// tail of every Go function that converts Lua arguments.
func (bd *Binding) finish(mark int, result any, err error) int {
	if err != nil {
		bd.sweep(mark)
		return bd.raise(err)
	}
	bd.push(result)
	bd.sweep(mark)
	return 1
}

func (bd *Binding) release(f *Function) {
	if _, live := bd.functions[f.handle]; !live {
		return
	}
	l := bd.l

	l.Field(lua.RegistryIndex, functionsKey)
	l.RawGetInt(-1, f.handle)
	l.Field(lua.RegistryIndex, handlesKey)
	l.PushValue(-2)
	l.PushNil()
	l.RawSet(-3)
	l.Pop(2)
	l.PushNil()
	l.RawSetInt(-2, f.handle)
	l.Pop(1)

	delete(bd.functions, f.handle)
	bd.logger.Debug("lua function released", slog.Int("handle", f.handle))
}
