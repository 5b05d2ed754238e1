// Package bridge exposes opaque callables to a string-addressed host.
//
// Host commands, keymaps and autocommands reference functions by name, never
// by value, so every callable handed to the host needs a synthetic name: an
// identity. A Namespace hands out identities, registers each one with the
// host dispatch table, and reclaims the ones host state no longer mentions.
//
// Reclamation is approximate. A Namespace carries a ReachabilityFunc that
// re-scans host state (keymaps, user commands, autocommands) and returns a
// Predicate deciding whether an identity may still be referenced. Collection
// runs automatically every Threshold registrations, or manually through
// Namespace.GC. Predicates should err on the side of "reachable": a false
// "unreachable" breaks a live binding, a false "reachable" only keeps an
// entry around longer.
//
//	reg, _ := bridge.NewRegistry(bridge.WithDispatcher(table))
//	ns := reg.Namespace("keymaps")
//	ns.SetReachability(editor.KeymapReachability(ed))
//	id, _ := ns.Identity(bridge.NewFunc(func(ctx context.Context, args []any) (any, error) {
//	    return "hello", nil
//	}))
//	// id looks like "BridgeFn_3f9a1c2e_1_" and is now invocable by the host.
//
// Registries and namespaces are not safe for concurrent use; they are
// re-entrant, so a callable may register further callables while running.
package bridge
