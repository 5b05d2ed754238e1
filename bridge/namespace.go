package bridge

import (
	"fmt"
	"log/slog"
	"sort"

	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
)

// Namespace is a named collection of callable to identity bindings sharing
// one collection policy.
type Namespace struct {
	registry  *Registry
	name      string
	ids       map[Callable]string
	tick      int
	threshold int
	reach     ReachabilityFunc
	due       bool
}

// Name returns the namespace name.
func (ns *Namespace) Name() string {
	return ns.name
}

// Len returns the number of live identities.
func (ns *Namespace) Len() int {
	return len(ns.ids)
}

// Identities returns the live identities, sorted.
func (ns *Namespace) Identities() []string {
	ids := make([]string, 0, len(ns.ids))
	for _, id := range ns.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Threshold returns the number of registrations between automatic collections.
func (ns *Namespace) Threshold() int {
	return ns.threshold
}

// SetThreshold changes the collection threshold. Zero or a negative value
// disables automatic collection.
func (ns *Namespace) SetThreshold(n int) {
	ns.threshold = n
}

// SetReachability installs the reachability generator. Nil removes it, which
// disables automatic collection and makes GC fail.
func (ns *Namespace) SetReachability(gen ReachabilityFunc) {
	ns.reach = gen
}

// Identity returns the identity for c, registering c on first sight.
//
// A new registration may trigger an automatic collection, which runs before
// Identity returns. If that collection fails, the error is returned together
// with the identity, which stays valid. While the registry defers
// collection (see Registry.DeferCollection) the collection is only marked
// due and runs when the deferral ends.
func (ns *Namespace) Identity(c Callable) (string, error) {
	if err := checkCallable(c); err != nil {
		return "", err
	}
	if id, ok := ns.ids[c]; ok {
		return id, nil
	}

	r := ns.registry
	id := r.nextIdentity()
	r.slots[id] = c
	if err := r.dispatcher.Register(id, r.endpoint(id)); err != nil {
		delete(r.slots, id)
		return "", fmt.Errorf("failed to register %s: %w", id, err)
	}
	ns.ids[c] = id
	ns.tick++
	r.logger.Debug("identity registered",
		slog.String("namespace", ns.name),
		slog.String("identity", id),
		slog.Int("tick", ns.tick))

	if ns.threshold > 0 && ns.tick >= ns.threshold && ns.reach != nil {
		ns.tick = 0
		if r.deferred > 0 {
			ns.due = true
			r.logger.Debug("collection deferred", slog.String("namespace", ns.name))
			return id, nil
		}
		ns.due = false
		if _, err := ns.collect(); err != nil {
			return id, fmt.Errorf("automatic collection in namespace %q: %w", ns.name, err)
		}
	}
	return id, nil
}

// Has reports whether c currently has an identity in this namespace.
func (ns *Namespace) Has(c Callable) bool {
	if checkCallable(c) != nil {
		return false
	}
	_, ok := ns.ids[c]
	return ok
}

// Forget removes c and its identity immediately, regardless of reachability.
func (ns *Namespace) Forget(c Callable) bool {
	if checkCallable(c) != nil {
		return false
	}
	id, ok := ns.ids[c]
	if !ok {
		return false
	}
	ns.remove(c, id)
	return true
}

// GC reclaims every identity the reachability predicate reports as
// unreachable and returns how many were reclaimed.
func (ns *Namespace) GC() (int, error) {
	if ns.reach == nil {
		return 0, bridgeerrors.NewConfigError(ns.name, bridgeerrors.ErrNoReachability)
	}
	ns.tick = 0
	ns.due = false
	return ns.collect()
}

// Due reports whether an automatic collection is pending.
func (ns *Namespace) Due() bool {
	return ns.due
}

// Registry returns the registry the namespace belongs to.
func (ns *Namespace) Registry() *Registry {
	return ns.registry
}

func (ns *Namespace) collect() (int, error) {
	pred, err := ns.reach()
	if err != nil {
		return 0, fmt.Errorf("failed to build reachability predicate: %w", err)
	}

	n := 0
	for c, id := range ns.ids {
		if pred(id) {
			continue
		}
		ns.remove(c, id)
		n++
	}
	ns.registry.logger.Debug("namespace collected",
		slog.String("namespace", ns.name),
		slog.Int("reclaimed", n),
		slog.Int("remaining", len(ns.ids)))
	return n, nil
}

// remove drops one entry from the mapping, the slot table and the host.
func (ns *Namespace) remove(c Callable, id string) {
	r := ns.registry
	delete(ns.ids, c)
	delete(r.slots, id)
	r.dispatcher.Unregister(id)
	if rel, ok := c.(Releaser); ok {
		rel.Release()
	}
}
