package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/cmdbridge/cmdbridge/dispatch"
	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
	"github.com/google/uuid"
)

const (
	// DefaultThreshold is the number of registrations between automatic
	// collections.
	DefaultThreshold = 20

	// DefaultPrefix starts every identity. Host function names must begin
	// with an upper-case letter, user-chosen names rarely contain the
	// run token, so identities do not collide with them.
	DefaultPrefix = "BridgeFn_"

	// DefaultSuffix ends every identity.
	DefaultSuffix = "_"
)

var (
	prefixPattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9_]*$`)
	affixPattern  = regexp.MustCompile(`^[A-Za-z0-9_]*$`)
)

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	dispatcher dispatch.Dispatcher
	threshold  int
	prefix     string
	suffix     string
	runToken   string
	logger     *slog.Logger
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		threshold: DefaultThreshold,
		prefix:    DefaultPrefix,
		suffix:    DefaultSuffix,
	}
}

// Option configures a Registry instance.
type Option func(*registryConfig)

// WithDispatcher sets the host dispatch table identities are registered with.
// Without it the Registry creates a private dispatch.Table.
func WithDispatcher(d dispatch.Dispatcher) Option {
	return func(c *registryConfig) {
		c.dispatcher = d
	}
}

// WithThreshold sets the default collection threshold for new namespaces.
// Zero or a negative value disables automatic collection.
func WithThreshold(n int) Option {
	return func(c *registryConfig) {
		c.threshold = n
	}
}

// WithPrefix sets the identity prefix. It must start with an upper-case
// letter and contain only letters, digits and underscores.
func WithPrefix(prefix string) Option {
	return func(c *registryConfig) {
		c.prefix = prefix
	}
}

// WithSuffix sets the identity suffix (letters, digits and underscores).
func WithSuffix(suffix string) Option {
	return func(c *registryConfig) {
		c.suffix = suffix
	}
}

// WithRunToken fixes the per-run token embedded in identities. Tests use it
// to get predictable identities; by default a random token is drawn.
func WithRunToken(token string) Option {
	return func(c *registryConfig) {
		c.runToken = token
	}
}

// WithLogger sets the logger for registration and collection events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *registryConfig) {
		c.logger = logger
	}
}

// Registry owns every namespace of one host, the identity counter they share
// and the global slot table the dispatch endpoints read from.
type Registry struct {
	config     registryConfig
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger
	namespaces map[string]*Namespace
	slots      map[string]Callable
	counter    uint64
	deferred   int
}

// NewRegistry creates a Registry with the given options.
func NewRegistry(opts ...Option) (*Registry, error) {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if !prefixPattern.MatchString(cfg.prefix) {
		return nil, bridgeerrors.NewConfigError("prefix",
			fmt.Errorf("%q must start with an upper-case letter and contain only [A-Za-z0-9_]", cfg.prefix))
	}
	if !affixPattern.MatchString(cfg.suffix) {
		return nil, bridgeerrors.NewConfigError("suffix",
			fmt.Errorf("%q must contain only [A-Za-z0-9_]", cfg.suffix))
	}
	if cfg.runToken == "" {
		cfg.runToken = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	} else if !affixPattern.MatchString(cfg.runToken) {
		return nil, bridgeerrors.NewConfigError("run_token",
			fmt.Errorf("%q must contain only [A-Za-z0-9_]", cfg.runToken))
	}

	dispatcher := cfg.dispatcher
	if dispatcher == nil {
		table, err := dispatch.NewTable(dispatch.WithMiddleware(dispatch.PanicRecoveryMiddleware()))
		if err != nil {
			return nil, fmt.Errorf("failed to create default dispatch table: %w", err)
		}
		dispatcher = table
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		config:     cfg,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "bridge")),
		namespaces: make(map[string]*Namespace),
		slots:      make(map[string]Callable),
	}, nil
}

// Namespace returns the namespace called name, creating it on first use.
func (r *Registry) Namespace(name string) *Namespace {
	if ns, ok := r.namespaces[name]; ok {
		return ns
	}
	ns := &Namespace{
		registry:  r,
		name:      name,
		ids:       make(map[Callable]string),
		threshold: r.config.threshold,
	}
	r.namespaces[name] = ns
	return ns
}

// Namespaces returns the sorted names of every namespace created so far.
func (r *Registry) Namespaces() []string {
	names := make([]string, 0, len(r.namespaces))
	for name := range r.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetThreshold changes the threshold of every existing namespace and the
// default of namespaces created later.
func (r *Registry) SetThreshold(n int) {
	r.config.threshold = n
	for _, ns := range r.namespaces {
		ns.SetThreshold(n)
	}
}

// DeferCollection holds back automatic collection until the returned resume
// function is called. Registrations that reach their threshold meanwhile
// only mark their namespace due. Deferrals nest: the outermost resume runs
// the due collections when collect is set, otherwise they stay due until a
// later resume, registration threshold or GC. Calling resume more than once
// has no effect.
func (r *Registry) DeferCollection() (resume func(collect bool) error) {
	r.deferred++
	done := false
	return func(collect bool) error {
		if done {
			return nil
		}
		done = true
		r.deferred--
		if r.deferred > 0 || !collect {
			return nil
		}
		return r.collectDue()
	}
}

// collectDue runs every pending automatic collection.
func (r *Registry) collectDue() error {
	var errs []error
	for _, name := range r.Namespaces() {
		ns := r.namespaces[name]
		if !ns.due {
			continue
		}
		ns.due = false
		if ns.reach == nil {
			continue
		}
		if _, err := ns.collect(); err != nil {
			errs = append(errs, fmt.Errorf("automatic collection in namespace %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Lookup returns the callable stored under an identity.
func (r *Registry) Lookup(id string) (Callable, bool) {
	c, ok := r.slots[id]
	return c, ok
}

// Dispatcher returns the dispatch table identities are registered with.
func (r *Registry) Dispatcher() dispatch.Dispatcher {
	return r.dispatcher
}

// Clear removes every entry of the named namespace, then the namespace
// itself. It returns the number of identities removed.
func (r *Registry) Clear(name string) int {
	ns, ok := r.namespaces[name]
	if !ok {
		return 0
	}
	n := 0
	for c, id := range ns.ids {
		ns.remove(c, id)
		n++
	}
	delete(r.namespaces, name)
	r.logger.Debug("namespace cleared", slog.String("namespace", name), slog.Int("removed", n))
	return n
}

// ClearAll clears every namespace.
func (r *Registry) ClearAll() int {
	n := 0
	for _, name := range r.Namespaces() {
		n += r.Clear(name)
	}
	return n
}

// nextIdentity allocates the next identity string.
func (r *Registry) nextIdentity() string {
	r.counter++
	return fmt.Sprintf("%s%s_%d%s", r.config.prefix, r.config.runToken, r.counter, r.config.suffix)
}

// endpoint returns the dispatch endpoint for an identity. It reads the slot
// at call time, so a reclaimed identity fails instead of calling a stale
// callable.
func (r *Registry) endpoint(id string) dispatch.Endpoint {
	return func(ctx context.Context, args []any) (any, error) {
		c, ok := r.slots[id]
		if !ok {
			return nil, fmt.Errorf("callable %s has been reclaimed", id)
		}
		return c.Call(ctx, args)
	}
}
