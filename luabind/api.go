package luabind

import (
	"errors"
	"log/slog"

	"github.com/Shopify/go-lua"

	"github.com/cmdbridge/cmdbridge/bridge"
	"github.com/cmdbridge/cmdbridge/command"
	"github.com/cmdbridge/cmdbridge/config"
	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
	"github.com/cmdbridge/cmdbridge/log"
)

// errFixedSetting is reported by setup for settings that only take effect
// at start.
var errFixedSetting = errors.New("cannot be changed after start")

func (bd *Binding) installAPI(global string) {
	l := bd.l
	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "register", Function: bd.register},
		{Name: "gc", Function: bd.gc},
		{Name: "identities", Function: bd.identities},
		{Name: "setup", Function: bd.setup},
		{Name: "exec", Function: bd.exec},
	}, 0)

	l.NewTable()
	l.NewTable()
	l.PushGoFunction(bd.commandIndex)
	l.SetField(-2, "__index")
	l.SetMetaTable(-2)
	l.SetField(-2, "cmd")

	l.NewTable()
	l.NewTable()
	l.PushGoFunction(bd.functionIndex)
	l.SetField(-2, "__index")
	l.SetMetaTable(-2)
	l.SetField(-2, "fn")

	l.SetGlobal(global)
}

// commandIndex resolves bridge.cmd.<name> and caches the command table.
func (bd *Binding) commandIndex(l *lua.State) int {
	name := lua.CheckString(l, 2)
	p, err := bd.b.Proxies.Get(name)
	if err != nil {
		return bd.raise(err)
	}
	bd.pushCommand(p)
	l.PushValue(2)
	l.PushValue(-2)
	l.RawSet(1)
	return 1
}

// pushCommand pushes the table for p. Calling the table runs the command;
// output(...) captures its output; format(...) returns the command line
// without executing it, registering function arguments all the same; bang
// is the table of the "!" variant.
func (bd *Binding) pushCommand(p *command.Proxy) {
	l := bd.l
	l.NewTable()
	l.PushString(p.Name())
	l.SetField(-2, "name")

	l.PushGoFunction(func(l *lua.State) int {
		return bd.invoke(p, true)
	})
	l.SetField(-2, "output")

	l.PushGoFunction(func(l *lua.State) int {
		mark := bd.mark()
		cmdline, err := p.Format(bd.ctx(), bd.args(1)...)
		return bd.finish(mark, cmdline, err)
	})
	l.SetField(-2, "format")

	l.NewTable()
	l.PushGoFunction(func(l *lua.State) int {
		l.Remove(1)
		return bd.invoke(p, false)
	})
	l.SetField(-2, "__call")
	if !p.IsBang() {
		l.PushGoFunction(func(l *lua.State) int {
			if key, _ := l.ToString(2); key != "bang" {
				l.PushNil()
				return 1
			}
			bp, err := p.Bang()
			if err != nil {
				return bd.raise(err)
			}
			bd.pushCommand(bp)
			l.PushValue(2)
			l.PushValue(-2)
			l.RawSet(1)
			return 1
		})
		l.SetField(-2, "__index")
	}
	l.SetMetaTable(-2)
}

func (bd *Binding) invoke(p *command.Proxy, capture bool) int {
	mark := bd.mark()
	args := bd.args(1)
	var (
		result any
		err    error
	)
	if capture {
		result, err = p.Output(bd.ctx(), args...)
	} else {
		result, err = p.Call(bd.ctx(), args...)
	}
	return bd.finish(mark, result, err)
}

// functionIndex resolves bridge.fn.<name> to a function invoking the host
// function of that name.
func (bd *Binding) functionIndex(l *lua.State) int {
	name := lua.CheckString(l, 2)
	if bd.b.Functions == nil {
		return bd.raise(bridgeerrors.NewConfigError("functions", errors.New("no host functions bound")))
	}
	l.PushGoFunction(func(l *lua.State) int {
		mark := bd.mark()
		result, err := bd.b.Functions.Invoke(bd.ctx(), name, bd.args(1))
		return bd.finish(mark, result, err)
	})
	return 1
}

// namespaceArg returns the namespace named by the optional argument at
// index, or the binding's namespace.
func (bd *Binding) namespaceArg(index int) *bridge.Namespace {
	if name := lua.OptString(bd.l, index, ""); name != "" {
		return bd.b.Registry.Namespace(name)
	}
	return bd.ns
}

// register(fn [, namespace]) returns the identity of fn.
func (bd *Binding) register(l *lua.State) int {
	lua.CheckType(l, 1, lua.TypeFunction)
	f := bd.function(1)
	ns := bd.namespaceArg(2)

	id, err := ns.Identity(f)
	if id == "" {
		f.Release()
		return bd.raise(err)
	}
	if err != nil {
		bd.logger.Warn("automatic collection failed",
			slog.String("namespace", ns.Name()), slog.Any("error", err))
	}
	l.PushString(id)
	return 1
}

// gc([namespace]) collects and returns the number of reclaimed identities.
func (bd *Binding) gc(l *lua.State) int {
	n, err := bd.namespaceArg(1).GC()
	if err != nil {
		return bd.raise(err)
	}
	l.PushInteger(n)
	return 1
}

// identities([namespace]) lists the live identities.
func (bd *Binding) identities(l *lua.State) int {
	bd.push(bd.namespaceArg(1).Identities())
	return 1
}

// exec(cmdline [, capture]) runs a raw command line.
func (bd *Binding) exec(l *lua.State) int {
	cmdline := lua.CheckString(l, 1)
	capture := l.ToBoolean(2)
	out, err := bd.b.Proxies.Executor().Exec(bd.ctx(), cmdline, capture)
	if err != nil {
		return bd.raise(err)
	}
	if !capture {
		return 0
	}
	l.PushString(out)
	return 1
}

// setup{...} applies settings. Identity affixes, the namespace, the
// extension directory and the global name only take effect at start.
func (bd *Binding) setup(l *lua.State) int {
	lua.CheckType(l, 1, lua.TypeTable)
	if bd.b.Settings == nil {
		return bd.raise(bridgeerrors.NewConfigError("setup", errors.New("no settings bound")))
	}
	m, ok := bd.toGo(1).(map[string]any)
	if !ok {
		return bd.raise(bridgeerrors.NewValueError(bd.toGo(1), "setup expects a table of options"))
	}

	cur := bd.b.Settings
	next := *cur
	if err := config.FromMap(&next, m); err != nil {
		return bd.raise(err)
	}
	for field, changed := range map[string]bool{
		"prefix":        next.Prefix != cur.Prefix,
		"suffix":        next.Suffix != cur.Suffix,
		"namespace":     next.Namespace != cur.Namespace,
		"extension_dir": next.ExtensionDir != cur.ExtensionDir,
		"lua_global":    next.LuaGlobal != cur.LuaGlobal,
	} {
		if changed {
			return bd.raise(bridgeerrors.NewConfigError(field, errFixedSetting))
		}
	}

	level, err := log.ParseLevel(next.Log.Level)
	if err != nil {
		return bd.raise(bridgeerrors.NewConfigError("log.level", err))
	}
	*cur = next
	bd.b.Registry.SetThreshold(next.Threshold)
	bd.b.Proxies.SetSeparator(next.Separator)
	if bd.b.Level != nil {
		bd.b.Level.Set(level)
	}
	bd.logger.Debug("settings applied",
		slog.Int("threshold", next.Threshold),
		slog.String("log_level", next.Log.Level))
	return 0
}
