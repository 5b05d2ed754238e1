// Package luabind exposes the bridge and the command proxies to Lua scripts
// through a global table (by default "bridge"):
//
//	bridge.cmd.nnoremap("<silent>", "gx", function() print("hi") end)
//	bridge.cmd.autocmd.bang("BufReadPost")
//	local text = bridge.cmd.messages.output()
//	local n = bridge.fn.Strlen("abc")
//	local id = bridge.register(function() end)
//	local reclaimed = bridge.gc()
//	bridge.setup({ threshold = 50, log = { level = "debug" } })
//	bridge.exec("echo 'raw'")
//
// Lua functions passed to Go become bridge callables; calling them from the
// host runs them back in the Lua state. A Binding is tied to one lua.State
// and, like it, is not safe for concurrent use.
package luabind

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/cmdbridge/cmdbridge/bridge"
	"github.com/cmdbridge/cmdbridge/command"
	"github.com/cmdbridge/cmdbridge/config"
	"github.com/cmdbridge/cmdbridge/dispatch"
	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
)

// Registry keys of the tables holding the Lua functions handed to Go.
const (
	functionsKey = "cmdbridge.functions" // handle -> function
	handlesKey   = "cmdbridge.handles"   // function -> handle
)

// DefaultGlobal is the name of the global table.
const DefaultGlobal = "bridge"

// Bindings are the Go objects a script can reach.
type Bindings struct {
	// Registry hands out identities for Lua functions. Required.
	Registry *bridge.Registry

	// Proxies backs bridge.cmd. Required.
	Proxies *command.Proxies

	// Functions backs bridge.fn. Optional.
	Functions dispatch.Dispatcher

	// Settings is updated by bridge.setup. Optional; without it setup
	// fails.
	Settings *config.Settings

	// Level is set from the "log.level" setting. Optional.
	Level *slog.LevelVar
}

// bindingConfig holds configuration for Open.
type bindingConfig struct {
	global    string
	namespace string
	ctx       context.Context
	logger    *slog.Logger
}

// Option configures a Binding.
type Option func(*bindingConfig)

// WithGlobal sets the name of the global table.
func WithGlobal(name string) Option {
	return func(c *bindingConfig) {
		c.global = name
	}
}

// WithNamespace sets the namespace Lua functions are registered in when a
// script does not name one.
func WithNamespace(name string) Option {
	return func(c *bindingConfig) {
		c.namespace = name
	}
}

// WithContext sets the context of calls a script makes outside of any
// host invocation.
func WithContext(ctx context.Context) Option {
	return func(c *bindingConfig) {
		c.ctx = ctx
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *bindingConfig) {
		c.logger = logger
	}
}

// Binding connects one lua.State to the bridge.
type Binding struct {
	l         *lua.State
	b         Bindings
	ns        *bridge.Namespace
	logger    *slog.Logger
	ctxs      []context.Context
	functions map[int]*Function
	fresh     []*Function
	hooks     map[hookKey][]*Function
	nextID    int
	raised    *raisedError
}

// hookKey names one hook slot of an extended proxy.
type hookKey struct {
	proxy *command.Proxy
	slot  string
}

// raisedError remembers the Go error behind the last Lua error raised by a
// Go function, so it can be returned intact when the script does not catch
// it.
type raisedError struct {
	message string
	err     error
}

// ScriptError is a Lua error that did not originate in Go.
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string {
	return "lua: " + e.Message
}

// ToErrorDetail implements errors.DetailedError.
func (e *ScriptError) ToErrorDetail() *bridgeerrors.ErrorDetail {
	return &bridgeerrors.ErrorDetail{Message: e.Message, Type: "script"}
}

// Open installs the global table into l.
func Open(l *lua.State, b Bindings, opts ...Option) (*Binding, error) {
	cfg := bindingConfig{
		global:    DefaultGlobal,
		namespace: "default",
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if b.Registry == nil {
		return nil, bridgeerrors.NewConfigError("registry", errors.New("a registry is required"))
	}
	if b.Proxies == nil {
		return nil, bridgeerrors.NewConfigError("proxies", errors.New("a proxies table is required"))
	}
	if cfg.global == "" {
		return nil, bridgeerrors.NewConfigError("lua_global", errors.New("global name is empty"))
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	bd := &Binding{
		l:         l,
		b:         b,
		ns:        b.Registry.Namespace(cfg.namespace),
		logger:    logger.With(slog.String("component", "luabind")),
		ctxs:      []context.Context{cfg.ctx},
		functions: make(map[int]*Function),
		hooks:     make(map[hookKey][]*Function),
	}

	l.NewTable()
	l.SetField(lua.RegistryIndex, functionsKey)
	l.NewTable()
	l.SetField(lua.RegistryIndex, handlesKey)

	bd.installAPI(cfg.global)
	return bd, nil
}

// Namespace returns the namespace scripts register in by default.
func (bd *Binding) Namespace() *bridge.Namespace {
	return bd.ns
}

// Live returns the number of Lua functions currently held by Go.
func (bd *Binding) Live() int {
	return len(bd.functions)
}

// DoString runs a chunk of Lua source.
func (bd *Binding) DoString(ctx context.Context, src string) error {
	top := bd.l.Top()
	if err := lua.LoadString(bd.l, src); err != nil {
		return &ScriptError{Message: bd.errorMessage(err, top)}
	}
	return bd.run(ctx, 0, 0)
}

// DoFile runs a Lua file.
func (bd *Binding) DoFile(ctx context.Context, path string) error {
	top := bd.l.Top()
	if err := lua.LoadFile(bd.l, path, ""); err != nil {
		return &ScriptError{Message: bd.errorMessage(err, top)}
	}
	return bd.run(ctx, 0, 0)
}

// run calls the function below nargs arguments on the stack with ctx as
// the context of the calls it makes.
//
// The outermost run defers automatic collection until the script returns,
// so an identity a script registers survives until the script has had the
// chance to install the command referencing it. It also releases the
// functions converted during the run that nothing holds.
func (bd *Binding) run(ctx context.Context, nargs, nresults int) error {
	outermost := len(bd.ctxs) == 1
	bd.ctxs = append(bd.ctxs, ctx)
	defer func() { bd.ctxs = bd.ctxs[:len(bd.ctxs)-1] }()
	if !outermost {
		return bd.protectedCall(nargs, nresults)
	}

	mark := bd.mark()
	resume := bd.b.Registry.DeferCollection()
	err := bd.protectedCall(nargs, nresults)
	bd.sweep(mark)
	if cerr := resume(true); cerr != nil {
		if err != nil {
			bd.logger.Warn("automatic collection failed", slog.Any("error", cerr))
			return err
		}
		return cerr
	}
	return err
}

func (bd *Binding) ctx() context.Context {
	return bd.ctxs[len(bd.ctxs)-1]
}

func (bd *Binding) protectedCall(nargs, nresults int) error {
	base := bd.l.Top() - nargs - 1
	outer := bd.raised
	bd.raised = nil
	defer func() { bd.raised = outer }()

	if err := bd.l.ProtectedCall(nargs, nresults, 0); err != nil {
		msg := bd.errorMessage(err, base)
		if r := bd.raised; r != nil && strings.Contains(msg, r.message) {
			return r.err
		}
		return &ScriptError{Message: msg}
	}
	return nil
}

// errorMessage returns the message of a failed call or load, preferring the
// error value left on the stack, and resets the stack to top.
func (bd *Binding) errorMessage(err error, top int) string {
	msg := err.Error()
	if bd.l.Top() > top {
		if s, ok := bd.l.ToString(-1); ok && s != "" {
			msg = s
		}
	}
	bd.l.SetTop(top)
	return msg
}

// raise turns err into a Lua error. It does not return.
func (bd *Binding) raise(err error) int {
	detail := bridgeerrors.ToErrorDetail(err)
	msg := fmt.Sprintf("[%s] %s", detail.Type, detail.Message)
	bd.raised = &raisedError{message: msg, err: err}
	lua.Errorf(bd.l, "%s", msg)
	return 0
}
