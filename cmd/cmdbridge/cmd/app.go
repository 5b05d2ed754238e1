package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Shopify/go-lua"

	"github.com/cmdbridge/cmdbridge/bridge"
	"github.com/cmdbridge/cmdbridge/command"
	"github.com/cmdbridge/cmdbridge/config"
	"github.com/cmdbridge/cmdbridge/editor"
	"github.com/cmdbridge/cmdbridge/extension"
	"github.com/cmdbridge/cmdbridge/log"
	"github.com/cmdbridge/cmdbridge/luabind"
)

// app is the wired stack every subcommand runs on.
type app struct {
	settings *config.Settings
	logger   *slog.Logger
	editor   *editor.Editor
	registry *bridge.Registry
	proxies  *command.Proxies
	binding  *luabind.Binding
}

// newApp loads settings and wires the editor, the registry, the command
// proxies and the Lua binding. Editor output goes to out, logs to stderr.
func newApp(ctx context.Context, out io.Writer) (*app, error) {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		settings.Log.Level = logLevel
	}
	if logFormat != "" {
		settings.Log.Format = logFormat
	}
	if err := config.Validate(settings); err != nil {
		return nil, err
	}

	level := new(slog.LevelVar)
	parsed, err := log.ParseLevel(settings.Log.Level)
	if err != nil {
		return nil, err
	}
	level.Set(parsed)
	logger, err := log.New(os.Stderr, settings.Log.Format, level)
	if err != nil {
		return nil, err
	}

	ed, err := editor.New(editor.WithOutput(out), editor.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	opts := append(settings.RegistryOptions(),
		bridge.WithDispatcher(ed.Table()),
		bridge.WithLogger(logger))
	reg, err := bridge.NewRegistry(opts...)
	if err != nil {
		return nil, err
	}
	ns := reg.Namespace(settings.Namespace)
	ns.SetReachability(editor.Reachability(ed))

	var bd *luabind.Binding
	loaders := command.Loaders{extension.Builtin(ns)}
	if settings.ExtensionDir != "" {
		loaders = append(loaders, command.LoaderFunc(func(name string, p *command.Proxy) error {
			return bd.DirLoader(settings.ExtensionDir).LoadExtension(name, p)
		}))
	}
	proxies := command.NewProxies(ed,
		command.WithLoader(loaders),
		command.WithSeparator(settings.Separator),
		command.WithLogger(logger))

	l := lua.NewState()
	lua.OpenLibraries(l)
	bd, err = luabind.Open(l, luabind.Bindings{
		Registry:  reg,
		Proxies:   proxies,
		Functions: ed.Table(),
		Settings:  settings,
		Level:     level,
	},
		luabind.WithGlobal(settings.LuaGlobal),
		luabind.WithNamespace(settings.Namespace),
		luabind.WithContext(ctx),
		luabind.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open lua binding: %w", err)
	}

	logger.Debug("cmdbridge ready",
		slog.String("namespace", settings.Namespace),
		slog.String("extension_dir", settings.ExtensionDir))

	return &app{
		settings: settings,
		logger:   logger,
		editor:   ed,
		registry: reg,
		proxies:  proxies,
		binding:  bd,
	}, nil
}
