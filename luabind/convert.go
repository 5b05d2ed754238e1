package luabind

import (
	"fmt"
	"math"
	"sort"

	"github.com/Shopify/go-lua"

	"github.com/cmdbridge/cmdbridge/bridge"
)

// toGo converts the Lua value at index. Integral numbers become int64 and
// other numbers float64. A table whose keys are exactly 1..n becomes []any;
// any other table becomes map[string]any. Functions become *Function.
func (bd *Binding) toGo(index int) any {
	l := bd.l
	switch l.TypeOf(index) {
	case lua.TypeNil, lua.TypeNone:
		return nil
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n)
		}
		return n
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s
	case lua.TypeTable:
		return bd.tableToGo(index)
	case lua.TypeFunction:
		return bd.function(index)
	default:
		s, _ := lua.ToStringMeta(l, index)
		l.Pop(1)
		return s
	}
}

func (bd *Binding) tableToGo(index int) any {
	l := bd.l
	index = l.AbsIndex(index)

	n := l.RawLength(index)
	count := 0
	l.PushNil()
	for l.Next(index) {
		count++
		l.Pop(1)
	}

	if count > 0 && count == n {
		list := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			l.RawGetInt(index, i)
			list = append(list, bd.toGo(-1))
			l.Pop(1)
		}
		return list
	}

	m := make(map[string]any, count)
	l.PushNil()
	for l.Next(index) {
		// ToString would turn a number key into a string in place and
		// break Next, so convert a copy.
		l.PushValue(-2)
		key, _ := l.ToString(-1)
		l.Pop(1)
		m[key] = bd.toGo(-1)
		l.Pop(1)
	}
	return m
}

// push pushes v converted to Lua. Callables become functions calling them.
func (bd *Binding) push(v any) {
	l := bd.l
	switch v := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(v)
	case int:
		l.PushInteger(v)
	case int64:
		l.PushNumber(float64(v))
	case int32:
		l.PushInteger(int(v))
	case uint:
		l.PushNumber(float64(v))
	case float64:
		l.PushNumber(v)
	case float32:
		l.PushNumber(float64(v))
	case string:
		l.PushString(v)
	case []string:
		l.NewTable()
		for i, s := range v {
			l.PushString(s)
			l.RawSetInt(-2, i+1)
		}
	case []any:
		l.NewTable()
		for i, e := range v {
			bd.push(e)
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		l.NewTable()
		for _, k := range keys {
			bd.push(v[k])
			l.SetField(-2, k)
		}
	case *Function:
		l.Field(lua.RegistryIndex, functionsKey)
		l.RawGetInt(-1, v.handle)
		l.Remove(-2)
	case bridge.Callable:
		l.PushGoFunction(bd.wrapCallable(v))
	case error:
		l.PushString(v.Error())
	default:
		l.PushString(fmt.Sprint(v))
	}
}

// args collects the arguments of a Go function from index first on.
func (bd *Binding) args(first int) []any {
	top := bd.l.Top()
	if top < first {
		return nil
	}
	out := make([]any, 0, top-first+1)
	for i := first; i <= top; i++ {
		out = append(out, bd.toGo(i))
	}
	return out
}

func (bd *Binding) wrapCallable(c bridge.Callable) lua.Function {
	return func(l *lua.State) int {
		mark := bd.mark()
		result, err := c.Call(bd.ctx(), bd.args(1))
		return bd.finish(mark, result, err)
	}
}
