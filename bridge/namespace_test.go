package bridge

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cmdbridge/cmdbridge/dispatch"
	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *dispatch.Table) {
	t.Helper()
	table, err := dispatch.NewTable()
	require.NoError(t, err)
	reg, err := NewRegistry(append([]Option{WithDispatcher(table), WithRunToken("test")}, opts...)...)
	require.NoError(t, err)
	return reg, table
}

func constFunc(v any) *Func {
	return NewFunc(func(context.Context, []any) (any, error) { return v, nil })
}

type releasingFunc struct {
	released *int
}

func (f *releasingFunc) Call(context.Context, []any) (any, error) { return nil, nil }
func (f *releasingFunc) Release()                                 { *f.released++ }

type funcCallable func(context.Context, []any) (any, error)

func (f funcCallable) Call(ctx context.Context, args []any) (any, error) { return f(ctx, args) }

func TestIdentity_FreshAndIdempotent(t *testing.T) {
	reg, table := newTestRegistry(t)
	ns := reg.Namespace("test")

	seen := make(map[string]bool)
	callables := make([]*Func, 10)
	for i := range callables {
		callables[i] = constFunc(i)
		id, err := ns.Identity(callables[i])
		require.NoError(t, err)
		assert.False(t, seen[id], "identity %s returned twice", id)
		seen[id] = true
		assert.True(t, table.Has(id))
	}

	for _, c := range callables {
		first, err := ns.Identity(c)
		require.NoError(t, err)
		again, err := ns.Identity(c)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 10, ns.Len())
	assert.Equal(t, 10, table.Len())
}

func TestIdentity_Format(t *testing.T) {
	reg, _ := newTestRegistry(t)

	first, err := reg.Namespace("a").Identity(constFunc(1))
	require.NoError(t, err)
	second, err := reg.Namespace("b").Identity(constFunc(2))
	require.NoError(t, err)

	assert.Equal(t, "BridgeFn_test_1_", first)
	assert.Equal(t, "BridgeFn_test_2_", second, "the counter is shared across namespaces")
}

func TestIdentity_RandomRunToken(t *testing.T) {
	a, err := NewRegistry()
	require.NoError(t, err)
	b, err := NewRegistry()
	require.NoError(t, err)

	idA, err := a.Namespace("x").Identity(constFunc(1))
	require.NoError(t, err)
	idB, err := b.Namespace("x").Identity(constFunc(1))
	require.NoError(t, err)

	assert.Regexp(t, `^BridgeFn_[0-9a-f]{8}_1_$`, idA)
	assert.NotEqual(t, idA, idB)
}

func TestIdentity_InvalidCallables(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ns := reg.Namespace("test")

	_, err := ns.Identity(nil)
	assert.True(t, bridgeerrors.IsValue(err))

	_, err = ns.Identity(funcCallable(func(context.Context, []any) (any, error) { return nil, nil }))
	assert.True(t, bridgeerrors.IsValue(err))
	assert.Contains(t, err.Error(), "not comparable")

	_, err = ns.Identity(&Func{})
	assert.True(t, bridgeerrors.IsValue(err))
	assert.Equal(t, 0, ns.Len())
}

func TestIdentity_InvokableThroughDispatcher(t *testing.T) {
	reg, table := newTestRegistry(t)

	c := NewFunc(func(_ context.Context, args []any) (any, error) {
		return fmt.Sprint(args...), nil
	})
	id, err := reg.Namespace("test").Identity(c)
	require.NoError(t, err)

	result, err := table.Invoke(context.Background(), id, []any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "a b", result)

	got, ok := reg.Lookup(id)
	require.True(t, ok)
	assert.Same(t, c, got)
}

func TestThreshold_AlwaysUnreachable(t *testing.T) {
	reg, table := newTestRegistry(t)
	ns := reg.Namespace("test")
	ns.SetReachability(Unreferenced)

	var ids []string
	for i := 0; i < DefaultThreshold-1; i++ {
		id, err := ns.Identity(constFunc(i))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, DefaultThreshold-1, ns.Len(), "no collection before the threshold")

	last, err := ns.Identity(constFunc("last"))
	require.NoError(t, err)
	ids = append(ids, last)

	assert.Equal(t, 0, ns.Len())
	for _, id := range ids {
		assert.False(t, table.Has(id), "%s should be unregistered", id)
		_, ok := reg.Lookup(id)
		assert.False(t, ok)
	}
}

func TestThreshold_AlwaysReachable(t *testing.T) {
	reg, table := newTestRegistry(t)
	ns := reg.Namespace("test")
	ns.SetReachability(Referenced)

	for i := 0; i < DefaultThreshold*2; i++ {
		_, err := ns.Identity(constFunc(i))
		require.NoError(t, err)
	}
	assert.Equal(t, DefaultThreshold*2, ns.Len())
	assert.Equal(t, DefaultThreshold*2, table.Len())
}

func TestThreshold_DeferredUntilResume(t *testing.T) {
	reg, table := newTestRegistry(t, WithThreshold(3))
	ns := reg.Namespace("test")
	ns.SetReachability(Unreferenced)

	resume := reg.DeferCollection()
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := ns.Identity(constFunc(i))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.True(t, ns.Due())
	assert.Equal(t, 3, ns.Len(), "the identity reaching the threshold stays live while deferred")
	for _, id := range ids {
		assert.True(t, table.Has(id))
	}

	require.NoError(t, resume(true))
	assert.False(t, ns.Due())
	assert.Equal(t, 0, ns.Len())
	assert.Equal(t, 0, table.Len())
	assert.NoError(t, resume(true), "resuming twice is a no-op")
}

func TestThreshold_DeferralNests(t *testing.T) {
	reg, _ := newTestRegistry(t, WithThreshold(1))
	ns := reg.Namespace("test")
	ns.SetReachability(Unreferenced)

	outer := reg.DeferCollection()
	inner := reg.DeferCollection()
	_, err := ns.Identity(constFunc(1))
	require.NoError(t, err)

	require.NoError(t, inner(true))
	assert.Equal(t, 1, ns.Len(), "only the outermost resume collects")
	require.NoError(t, outer(true))
	assert.Equal(t, 0, ns.Len())
}

func TestThreshold_ResumeWithoutCollecting(t *testing.T) {
	reg, _ := newTestRegistry(t, WithThreshold(1))
	ns := reg.Namespace("test")
	ns.SetReachability(Unreferenced)

	resume := reg.DeferCollection()
	_, err := ns.Identity(constFunc(1))
	require.NoError(t, err)
	require.NoError(t, resume(false))
	assert.True(t, ns.Due(), "the collection stays pending")
	assert.Equal(t, 1, ns.Len())

	n, err := ns.GC()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, ns.Due())
}

func TestThreshold_DeferredGeneratorError(t *testing.T) {
	reg, _ := newTestRegistry(t, WithThreshold(1))
	ns := reg.Namespace("test")
	ns.SetReachability(func() (Predicate, error) {
		return nil, errors.New("host unavailable")
	})

	resume := reg.DeferCollection()
	id, err := ns.Identity(constFunc(1))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	err = resume(true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host unavailable")
	assert.Equal(t, 1, ns.Len())
}

func TestThreshold_NoGeneratorNeverCollects(t *testing.T) {
	reg, _ := newTestRegistry(t, WithThreshold(2))
	ns := reg.Namespace("test")

	for i := 0; i < 5; i++ {
		_, err := ns.Identity(constFunc(i))
		require.NoError(t, err)
	}
	assert.Equal(t, 5, ns.Len())
}

func TestThreshold_Disabled(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ns := reg.Namespace("test")
	ns.SetThreshold(0)
	ns.SetReachability(Unreferenced)

	for i := 0; i < DefaultThreshold+1; i++ {
		_, err := ns.Identity(constFunc(i))
		require.NoError(t, err)
	}
	assert.Equal(t, DefaultThreshold+1, ns.Len())
}

func TestThreshold_GeneratorError(t *testing.T) {
	reg, table := newTestRegistry(t, WithThreshold(1))
	ns := reg.Namespace("test")
	ns.SetReachability(func() (Predicate, error) {
		return nil, errors.New("host unavailable")
	})

	id, err := ns.Identity(constFunc(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host unavailable")
	assert.NotEmpty(t, id)
	assert.True(t, table.Has(id))
}

func TestGC_WithoutGenerator(t *testing.T) {
	reg, table := newTestRegistry(t)
	ns := reg.Namespace("test")
	_, err := ns.Identity(constFunc(1))
	require.NoError(t, err)

	n, err := ns.GC()
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsConfig(err))
	assert.ErrorIs(t, err, bridgeerrors.ErrNoReachability)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, ns.Len())
	assert.Equal(t, 1, table.Len())
}

func TestGC_Selective(t *testing.T) {
	reg, table := newTestRegistry(t)
	ns := reg.Namespace("test")

	released := 0
	keep, err := ns.Identity(constFunc("keep"))
	require.NoError(t, err)
	drop, err := ns.Identity(&releasingFunc{released: &released})
	require.NoError(t, err)

	ns.SetReachability(func() (Predicate, error) {
		return MentionedIn([]string{"nnoremap x :call " + keep + "()<CR>"}), nil
	})

	n, err := ns.GC()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{keep}, ns.Identities())
	assert.True(t, table.Has(keep))
	assert.False(t, table.Has(drop))
	assert.Equal(t, 1, released)

	_, err = table.Invoke(context.Background(), drop, nil)
	assert.Error(t, err)
}

func TestForget(t *testing.T) {
	reg, table := newTestRegistry(t)
	ns := reg.Namespace("test")
	c := constFunc(1)

	id, err := ns.Identity(c)
	require.NoError(t, err)
	assert.True(t, ns.Has(c))

	assert.True(t, ns.Forget(c))
	assert.False(t, ns.Forget(c))
	assert.False(t, ns.Has(c))
	assert.False(t, table.Has(id))

	again, err := ns.Identity(c)
	require.NoError(t, err)
	assert.NotEqual(t, id, again, "identities are never reused")
}

func TestRegistry_ClearAndNamespaces(t *testing.T) {
	reg, table := newTestRegistry(t)

	for i := 0; i < 3; i++ {
		_, err := reg.Namespace("keymaps").Identity(constFunc(i))
		require.NoError(t, err)
	}
	_, err := reg.Namespace("autocmds").Identity(constFunc("a"))
	require.NoError(t, err)

	assert.Equal(t, []string{"autocmds", "keymaps"}, reg.Namespaces())
	assert.Same(t, reg.Namespace("keymaps"), reg.Namespace("keymaps"))

	assert.Equal(t, 3, reg.Clear("keymaps"))
	assert.Equal(t, 0, reg.Clear("missing"))
	assert.Equal(t, []string{"autocmds"}, reg.Namespaces())
	assert.Equal(t, 1, table.Len())

	assert.Equal(t, 1, reg.ClearAll())
	assert.Empty(t, reg.Namespaces())
	assert.Equal(t, 0, table.Len())
}

func TestRegistry_SetThreshold(t *testing.T) {
	reg, _ := newTestRegistry(t, WithThreshold(5))
	existing := reg.Namespace("keymaps")
	assert.Equal(t, 5, existing.Threshold())

	reg.SetThreshold(2)
	assert.Equal(t, 2, existing.Threshold())
	assert.Equal(t, 2, reg.Namespace("later").Threshold())
}

func TestNewRegistry_InvalidAffixes(t *testing.T) {
	tests := []struct {
		name  string
		opt   Option
		field string
	}{
		{name: "lower-case prefix", opt: WithPrefix("fn_"), field: "prefix"},
		{name: "prefix with space", opt: WithPrefix("Fn x"), field: "prefix"},
		{name: "suffix with quote", opt: WithSuffix(`"`), field: "suffix"},
		{name: "run token with dash", opt: WithRunToken("a-b"), field: "run_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.opt)
			var cfgErr *bridgeerrors.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
