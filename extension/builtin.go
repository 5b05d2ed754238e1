// Package extension provides the built-in command extensions: parameter
// pipelines for the commands whose argument syntax the default catch-all
// gets wrong.
package extension

import (
	"github.com/cmdbridge/cmdbridge/bridge"
	"github.com/cmdbridge/cmdbridge/command"
)

// MapModifiers are the special arguments accepted before a mapping's lhs.
var MapModifiers = []string{"<buffer>", "<silent>", "<nowait>", "<expr>", "<unique>"}

// MapCommands are the mapping commands that take an rhs.
var MapCommands = []string{
	"map", "nmap", "imap", "vmap", "xmap", "omap", "cmap",
	"noremap", "nnoremap", "inoremap", "vnoremap", "xnoremap", "onoremap", "cnoremap",
}

// UnmapCommands are the mapping removal commands.
var UnmapCommands = []string{"unmap", "nunmap", "iunmap", "vunmap", "xunmap", "ounmap", "cunmap"}

// MapModifier matches one mapping modifier such as "<silent>".
var MapModifier = command.Prefixed(func(s string) bool {
	for _, m := range MapModifiers {
		if s == m {
			return true
		}
	}
	return false
})

// MapReference formats the rhs that invokes an identity from a mapping.
func MapReference(id string) string {
	return ":call " + id + "()<CR>"
}

// Builtin returns the built-in extensions. Callables passed as the trailing
// argument of a nested command are registered in ns.
func Builtin(ns *bridge.Namespace) command.Extensions {
	exts := command.Extensions{
		"echo":    Echo,
		"edit":    Edit,
		"autocmd": Autocmd(ns),
		"command": UserCommand(ns),
	}
	exts["autocmd!"] = exts["autocmd"]
	exts["command!"] = exts["command"]
	exts["edit!"] = exts["edit"]

	mapping := Mapping(ns)
	for _, name := range MapCommands {
		exts[name] = mapping
	}
	for _, name := range UnmapCommands {
		exts[name] = Unmap
	}
	return exts
}

// Echo quotes every argument as a string expression.
func Echo(p *command.Proxy) error {
	p.Handlers = []command.Handler{command.DoubleQuoted}
	p.Rest = command.DoubleQuoted
	return nil
}

// Edit accepts "++opt" arguments, then "+cmd" arguments, then one file name.
func Edit(p *command.Proxy) error {
	p.Handlers = []command.Handler{
		command.Repeat(command.PlusPlusOpt),
		command.Repeat(command.PlusOpt),
		command.Filename,
	}
	p.Rest = nil
	return nil
}

// Autocmd takes an event list, a pattern, "++once"/"++nested" options and a
// nested command that may end in a callable.
func Autocmd(ns *bridge.Namespace) command.ExtensionFunc {
	return func(p *command.Proxy) error {
		p.Handlers = []command.Handler{
			command.Raw,
			command.Raw,
			command.Repeat(command.PlusPlusOpt),
			command.SubCommand(command.SubCommandOptions{Namespace: ns}),
		}
		p.Rest = nil
		return nil
	}
}

// UserCommand takes "-attr" options, the new command's name and its
// replacement text, which may end in a callable.
func UserCommand(ns *bridge.Namespace) command.ExtensionFunc {
	return func(p *command.Proxy) error {
		p.Handlers = []command.Handler{
			command.Repeat(command.DashOpt),
			command.Raw,
			command.SubCommand(command.SubCommandOptions{Namespace: ns}),
		}
		p.Rest = nil
		return nil
	}
}

// Mapping takes modifiers, the lhs and an rhs that may end in a callable.
func Mapping(ns *bridge.Namespace) command.ExtensionFunc {
	return func(p *command.Proxy) error {
		p.Handlers = []command.Handler{
			command.Repeat(MapModifier),
			command.Default,
			command.SubCommand(command.SubCommandOptions{
				Namespace: ns,
				Reference: MapReference,
			}),
		}
		p.Rest = nil
		return nil
	}
}

// Unmap takes modifiers and the lhs.
func Unmap(p *command.Proxy) error {
	p.Handlers = []command.Handler{command.Repeat(MapModifier), command.Default}
	p.Rest = nil
	return nil
}
