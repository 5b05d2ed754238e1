package command

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxies_LazyCreation(t *testing.T) {
	rec := &recorder{}
	ps := NewProxies(rec)

	p, err := ps.Get("echo")
	require.NoError(t, err)
	again, err := ps.Get("echo")
	require.NoError(t, err)
	assert.Same(t, p, again)
	assert.Equal(t, []string{"echo"}, ps.Names())

	_, err = p.Call(context.Background(), "a b")
	require.NoError(t, err)
	assert.Equal(t, `echo a\ b`, rec.last())
}

func TestProxies_BangIsDistinct(t *testing.T) {
	ps := NewProxies(&recorder{})
	p := ps.MustGet("autocmd")

	bang, err := p.Bang()
	require.NoError(t, err)
	assert.NotSame(t, p, bang)
	assert.Same(t, bang, ps.MustGet("autocmd!"))
	assert.Equal(t, []string{"autocmd", "autocmd!"}, ps.Names())
}

func TestProxies_Separator(t *testing.T) {
	ps := NewProxies(&recorder{}, WithSeparator(","))
	line, err := ps.MustGet("set").Format(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "set a,b", line)
}

func TestProxies_InvalidName(t *testing.T) {
	ps := NewProxies(&recorder{})
	for _, name := range []string{"", "!", "a b", "a|b"} {
		_, err := ps.Get(name)
		assert.True(t, bridgeerrors.IsValue(err), "name %q", name)
	}
	assert.Panics(t, func() { ps.MustGet("") })
}

func TestProxies_ExtensionApplied(t *testing.T) {
	loads := 0
	ext := Extensions{
		"echo": func(p *Proxy) error {
			loads++
			p.Handlers = []Handler{DoubleQuoted}
			p.Rest = DoubleQuoted
			return nil
		},
	}
	rec := &recorder{}
	ps := NewProxies(rec, WithLoader(ext))

	_, err := ps.MustGet("echo").Call(context.Background(), "Hello, world!")
	require.NoError(t, err)
	ps.MustGet("echo")
	assert.Equal(t, `echo "Hello, world!"`, rec.last())
	assert.Equal(t, 1, loads, "extensions load once, on first access")
}

func TestProxies_AbsentExtensionSwallowed(t *testing.T) {
	notExist := ExtensionFunc(func(*Proxy) error { return nil })
	loaders := Loaders{
		Extensions{"other": notExist},
		LoaderFunc(func(name string, p *Proxy) error {
			return fmt.Errorf("open %s.lua: %w", name, fs.ErrNotExist)
		}),
	}
	ps := NewProxies(&recorder{}, WithLoader(loaders))

	p, err := ps.Get("echo")
	require.NoError(t, err)
	assert.NotNil(t, p.Rest, "an uncustomized proxy keeps its defaults")
}

func TestProxies_BrokenExtensionSurfaced(t *testing.T) {
	attempts := 0
	broken := errors.New("syntax error near line 3")
	ps := NewProxies(&recorder{}, WithLoader(LoaderFunc(func(string, *Proxy) error {
		attempts++
		if attempts == 1 {
			return broken
		}
		return nil
	})))

	_, err := ps.Get("echo")
	require.Error(t, err)
	assert.ErrorIs(t, err, broken)
	assert.Empty(t, ps.Names(), "a failed proxy is not kept")

	_, err = ps.Get("echo")
	require.NoError(t, err, "the next access retries")
	assert.Equal(t, 2, attempts)
}

func TestLoaders_Layering(t *testing.T) {
	base := Extensions{"edit": func(p *Proxy) error {
		p.Handlers = []Handler{Filename}
		return nil
	}}
	override := Extensions{"edit": func(p *Proxy) error {
		p.Handlers = append([]Handler{Repeat(PlusOpt)}, p.Handlers...)
		return nil
	}}

	ps := NewProxies(&recorder{}, WithLoader(Loaders{base, override}))
	line, err := ps.MustGet("edit").Format(context.Background(), "+5", "a b")
	require.NoError(t, err)
	assert.Equal(t, `edit +5 a\ b`, line)

	err = Loaders{base}.LoadExtension("missing", NewProxy("missing", nil))
	assert.ErrorIs(t, err, ErrNoExtension)
}

func TestProxies_SetSeparator(t *testing.T) {
	ps := NewProxies(&recorder{})
	before := ps.MustGet("set")
	ps.SetSeparator(",")
	after := ps.MustGet("let")

	assert.Equal(t, " ", before.Sep)
	assert.Equal(t, ",", after.Sep)
}
