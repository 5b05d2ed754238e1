package command

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
)

// ErrNoExtension is returned by an ExtensionLoader that has nothing for a
// command. It is the normal case and is never reported.
var ErrNoExtension = errors.New("no extension for command")

// ExtensionLoader customizes a proxy the first time its command is used.
type ExtensionLoader interface {
	LoadExtension(name string, p *Proxy) error
}

// ExtensionFunc customizes a proxy.
type ExtensionFunc func(p *Proxy) error

// LoaderFunc adapts a function to ExtensionLoader.
type LoaderFunc func(name string, p *Proxy) error

// LoadExtension implements ExtensionLoader.
func (f LoaderFunc) LoadExtension(name string, p *Proxy) error {
	return f(name, p)
}

// Extensions is an ExtensionLoader backed by a map from command name
// (with a trailing "!" for bang variants) to ExtensionFunc.
type Extensions map[string]ExtensionFunc

// LoadExtension implements ExtensionLoader.
func (e Extensions) LoadExtension(name string, p *Proxy) error {
	fn, ok := e[name]
	if !ok {
		return ErrNoExtension
	}
	return fn(p)
}

// Loaders applies every loader in order, so later loaders can refine what
// earlier ones set up. Absence in one loader is skipped; the first real
// failure stops the chain.
type Loaders []ExtensionLoader

// LoadExtension implements ExtensionLoader.
func (ls Loaders) LoadExtension(name string, p *Proxy) error {
	found := false
	for _, l := range ls {
		err := l.LoadExtension(name, p)
		switch {
		case err == nil:
			found = true
		case isAbsent(err):
		default:
			return err
		}
	}
	if !found {
		return ErrNoExtension
	}
	return nil
}

func isAbsent(err error) bool {
	return errors.Is(err, ErrNoExtension) || errors.Is(err, fs.ErrNotExist)
}

// proxiesConfig holds configuration for Proxies.
type proxiesConfig struct {
	loader    ExtensionLoader
	separator string
	logger    *slog.Logger
}

// ProxiesOption configures a Proxies table.
type ProxiesOption func(*proxiesConfig)

// WithLoader sets the extension loader consulted on first access.
func WithLoader(l ExtensionLoader) ProxiesOption {
	return func(c *proxiesConfig) {
		c.loader = l
	}
}

// WithSeparator sets the separator of newly created proxies.
func WithSeparator(sep string) ProxiesOption {
	return func(c *proxiesConfig) {
		c.separator = sep
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ProxiesOption {
	return func(c *proxiesConfig) {
		c.logger = logger
	}
}

// Proxies creates proxies lazily, one per command name, and keeps them for
// the life of the table. It is not safe for concurrent use.
type Proxies struct {
	exec    Executor
	config  proxiesConfig
	logger  *slog.Logger
	proxies map[string]*Proxy
}

// NewProxies creates a table whose proxies run on exec.
func NewProxies(exec Executor, opts ...ProxiesOption) *Proxies {
	cfg := proxiesConfig{separator: DefaultSeparator}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxies{
		exec:    exec,
		config:  cfg,
		logger:  logger.With(slog.String("component", "command")),
		proxies: make(map[string]*Proxy),
	}
}

// Get returns the proxy for name, creating it on first access. Creation
// runs the extension loader. A loader reporting absence is fine; any other
// loader failure is returned and the proxy is not kept, so the next access
// tries again.
func (ps *Proxies) Get(name string) (*Proxy, error) {
	if p, ok := ps.proxies[name]; ok {
		return p, nil
	}
	if err := checkCommandName(name); err != nil {
		return nil, err
	}

	p := NewProxy(name, ps.exec)
	p.Sep = ps.config.separator
	p.owner = ps

	if ps.config.loader != nil {
		if err := ps.config.loader.LoadExtension(name, p); err != nil && !isAbsent(err) {
			ps.logger.Warn("command extension failed to load",
				slog.String("command", name), slog.Any("error", err))
			return nil, fmt.Errorf("failed to load extension for %q: %w", name, err)
		}
	}

	ps.proxies[name] = p
	return p, nil
}

// MustGet is like Get but panics on error. It is meant for static setup.
func (ps *Proxies) MustGet(name string) *Proxy {
	p, err := ps.Get(name)
	if err != nil {
		panic(err)
	}
	return p
}

// Names returns the sorted names of the proxies created so far.
func (ps *Proxies) Names() []string {
	names := make([]string, 0, len(ps.proxies))
	for name := range ps.proxies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetSeparator changes the separator of proxies created from now on.
// Existing proxies keep theirs.
func (ps *Proxies) SetSeparator(sep string) {
	ps.config.separator = sep
}

// Executor returns the execution substrate proxies run on.
func (ps *Proxies) Executor() Executor {
	return ps.exec
}

func checkCommandName(name string) error {
	base := strings.TrimSuffix(name, "!")
	if base == "" {
		return bridgeerrors.NewValueError(name, "command name is empty")
	}
	for _, r := range base {
		if unicode.IsSpace(r) || r == '!' || r == '|' || r == '"' {
			return bridgeerrors.NewValueError(name, "command name contains %q", r)
		}
	}
	return nil
}
