package command

// Args is a cursor over the arguments of one invocation, in call order.
type Args struct {
	items []any
	pos   int
}

// NewArgs returns a cursor positioned before the first item.
func NewArgs(items ...any) *Args {
	return &Args{items: items}
}

// Len returns the number of arguments not yet taken.
func (a *Args) Len() int {
	return len(a.items) - a.pos
}

// Empty reports whether every argument has been taken.
func (a *Args) Empty() bool {
	return a.pos >= len(a.items)
}

// Peek returns the next argument without taking it. ok is false when the
// cursor is exhausted.
func (a *Args) Peek() (v any, ok bool) {
	if a.Empty() {
		return nil, false
	}
	return a.items[a.pos], true
}

// Take returns the next argument and advances the cursor. ok is false when
// the cursor is exhausted.
func (a *Args) Take() (v any, ok bool) {
	if a.Empty() {
		return nil, false
	}
	v = a.items[a.pos]
	a.pos++
	return v, true
}

// Untake puts the most recently taken argument back, unchanged.
// It panics when nothing has been taken.
func (a *Args) Untake() {
	if a.pos == 0 {
		panic("command: Untake called before Take")
	}
	a.pos--
}

// Remaining returns a copy of the arguments not yet taken.
func (a *Args) Remaining() []any {
	out := make([]any, a.Len())
	copy(out, a.items[a.pos:])
	return out
}
