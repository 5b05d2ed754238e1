package luabind

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/cmdbridge/cmdbridge/command"
	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
	"github.com/cmdbridge/cmdbridge/extension"
)

// DirLoader returns an extension loader running <dir>/<name>.lua. The
// script must return a function; it is called with a table describing the
// proxy being created:
//
//	return function(cmd)
//	  cmd.handlers({ "repeat:dash_opt", "raw", "sub_command" })
//	  cmd.rest(nil)
//	  cmd.post(function(out) return out:upper() end)
//	end
//
// A missing script means the command has no extension.
func (bd *Binding) DirLoader(dir string) command.ExtensionLoader {
	return command.LoaderFunc(func(name string, p *command.Proxy) error {
		path := filepath.Join(dir, name+".lua")
		if _, err := os.Stat(path); err != nil {
			return err
		}

		l := bd.l
		top := l.Top()
		defer l.SetTop(top)

		if err := lua.LoadFile(l, path, ""); err != nil {
			return &ScriptError{Message: bd.errorMessage(err, top)}
		}
		if err := bd.run(bd.ctx(), 0, 1); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if !l.IsFunction(-1) {
			return bridgeerrors.NewValueError(path, "extension script must return a function")
		}
		bd.pushExtensionProxy(p)
		if err := bd.run(bd.ctx(), 1, 0); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		bd.logger.Debug("command extension loaded",
			slog.String("command", name), slog.String("path", path))
		return nil
	})
}

// pushExtensionProxy pushes the table an extension script configures p
// through.
func (bd *Binding) pushExtensionProxy(p *command.Proxy) {
	l := bd.l
	l.NewTable()
	l.PushString(p.Name())
	l.SetField(-2, "name")

	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "handlers", Function: func(l *lua.State) int {
			lua.CheckType(l, 1, lua.TypeTable)
			mark := bd.mark()
			specs, ok := bd.toGo(1).([]any)
			if !ok {
				// An empty table converts to a map.
				specs = nil
			}
			handlers := make([]command.Handler, 0, len(specs))
			var fns []*Function
			for _, spec := range specs {
				h, err := bd.handler(spec)
				if err != nil {
					bd.sweep(mark)
					return bd.raise(err)
				}
				if f, ok := spec.(*Function); ok {
					fns = append(fns, f)
				}
				handlers = append(handlers, h)
			}
			p.Handlers = handlers
			bd.hold(p, "handlers", fns)
			bd.sweep(mark)
			return 0
		}},
		{Name: "rest", Function: func(l *lua.State) int {
			if l.IsNoneOrNil(1) {
				p.Rest = nil
				bd.hold(p, "rest", nil)
				return 0
			}
			mark := bd.mark()
			spec := bd.toGo(1)
			h, err := bd.handler(spec)
			if err != nil {
				bd.sweep(mark)
				return bd.raise(err)
			}
			p.Rest = h
			var fns []*Function
			if f, ok := spec.(*Function); ok {
				fns = append(fns, f)
			}
			bd.hold(p, "rest", fns)
			bd.sweep(mark)
			return 0
		}},
		{Name: "sep", Function: func(l *lua.State) int {
			p.Sep = lua.CheckString(l, 1)
			return 0
		}},
		{Name: "pre", Function: func(l *lua.State) int {
			lua.CheckType(l, 1, lua.TypeFunction)
			f := bd.function(1)
			bd.hold(p, "pre", []*Function{f})
			p.Pre = func(c *command.Context, cmdline string) (string, error) {
				out, err := f.Call(c, []any{cmdline})
				if err != nil || out == nil {
					return cmdline, err
				}
				return command.ToString(out)
			}
			return 0
		}},
		{Name: "post", Function: func(l *lua.State) int {
			lua.CheckType(l, 1, lua.TypeFunction)
			f := bd.function(1)
			bd.hold(p, "post", []*Function{f})
			p.Post = func(c *command.Context, result any) (any, error) {
				return f.Call(c, []any{result})
			}
			return 0
		}},
	}, 0)
}

var namedHandlers = map[string]command.Handler{
	"default":       command.Default,
	"raw":           command.Raw,
	"filename":      command.Filename,
	"single_quoted": command.SingleQuoted,
	"double_quoted": command.DoubleQuoted,
	"plus_opt":      command.PlusOpt,
	"plus_plus_opt": command.PlusPlusOpt,
	"dash_opt":      command.DashOpt,
	"map_modifier":  extension.MapModifier,
}

// handler builds a handler from a script's description: a handler name,
// "repeat:<spec>", "optional:<spec>", "literal:<token>", or a function
// mapping one argument to its token.
func (bd *Binding) handler(spec any) (command.Handler, error) {
	switch spec := spec.(type) {
	case *Function:
		return command.Map(func(v any) (string, error) {
			out, err := spec.Call(bd.ctx(), []any{v})
			if err != nil {
				return "", err
			}
			return command.ToString(out)
		}), nil
	case string:
		return bd.namedHandler(spec)
	default:
		return nil, bridgeerrors.NewValueError(spec, "handler must be a name or a function")
	}
}

func (bd *Binding) namedHandler(spec string) (command.Handler, error) {
	if kind, arg, ok := strings.Cut(spec, ":"); ok {
		switch kind {
		case "literal":
			return command.Literal(arg), nil
		case "repeat", "optional":
			inner, err := bd.namedHandler(arg)
			if err != nil {
				return nil, err
			}
			if kind == "repeat" {
				return command.Repeat(inner), nil
			}
			return command.Optional(inner), nil
		}
		return nil, bridgeerrors.NewValueError(spec, "unknown handler modifier %q", kind)
	}

	switch spec {
	case "sub_command":
		return command.SubCommand(command.SubCommandOptions{Namespace: bd.ns}), nil
	case "map_sub_command":
		return command.SubCommand(command.SubCommandOptions{Namespace: bd.ns, Reference: extension.MapReference}), nil
	}
	if h, ok := namedHandlers[spec]; ok {
		return h, nil
	}
	return nil, bridgeerrors.NewValueError(spec, "unknown handler")
}
