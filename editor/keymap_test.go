package editor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exec(t *testing.T, ed *Editor, lines ...string) {
	t.Helper()
	for _, line := range lines {
		_, err := ed.Exec(context.Background(), line, false)
		require.NoError(t, err, line)
	}
}

func TestMap_DefineAndFeed(t *testing.T) {
	ed := newEditor(t)
	exec(t, ed, `nnoremap <silent> <buffer> gx :echomsg "hi"<CR>`)

	kms := ed.Keymaps()
	require.Len(t, kms, 1)
	assert.Equal(t, Keymap{
		Mode: "n", LHS: "gx", RHS: `:echomsg "hi"<CR>`,
		Noremap: true, Silent: true, Buffer: true,
	}, kms[0])

	require.NoError(t, ed.Feed(context.Background(), "n", "gx"))
	assert.Equal(t, []string{"hi"}, ed.Messages())

	err := ed.Feed(context.Background(), "i", "gx")
	assert.ErrorIs(t, err, ErrNoMapping)
}

func TestMap_EscapedLHS(t *testing.T) {
	ed := newEditor(t)
	exec(t, ed, `nmap a\ b :echomsg "space"<CR>`)
	require.NoError(t, ed.Feed(context.Background(), "n", "a b"))
	assert.Equal(t, []string{"space"}, ed.Messages())
}

func TestMap_ModeFallback(t *testing.T) {
	ed := newEditor(t)
	exec(t, ed, `map Q :echomsg "nvo"<CR>`, `map! <C-a> :echomsg "ic"<CR>`)

	require.NoError(t, ed.Feed(context.Background(), "v", "Q"))
	require.NoError(t, ed.Feed(context.Background(), "c", "<C-a>"))
	assert.Equal(t, []string{"nvo", "ic"}, ed.Messages())

	assert.ErrorIs(t, ed.Feed(context.Background(), "i", "Q"), ErrNoMapping)
}

func TestMap_KeysAndRemapping(t *testing.T) {
	ed := newEditor(t)
	exec(t, ed,
		`nnoremap Y y$`,
		`nmap R Y:echomsg "after"<CR>dd`,
		`nnoremap <expr> E "d" .. "w"`,
	)

	require.NoError(t, ed.Feed(context.Background(), "n", "R"))
	assert.Equal(t, []string{"y$", "dd"}, ed.Typed())
	assert.Equal(t, []string{"after"}, ed.Messages())

	require.NoError(t, ed.Feed(context.Background(), "n", "E"))
	assert.Equal(t, []string{"y$", "dd", "dw"}, ed.Typed())
}

func TestMap_Recursive(t *testing.T) {
	ed := newEditor(t)
	exec(t, ed, `nmap a b`, `nmap b a`)
	requireCode(t, ed.Feed(context.Background(), "n", "a"), "E223")
}

func TestMap_Unique(t *testing.T) {
	ed := newEditor(t)
	exec(t, ed, `nmap x :echo 1<CR>`)
	_, err := ed.Exec(context.Background(), `nmap <unique> x :echo 2<CR>`, false)
	requireCode(t, err, "E227")

	exec(t, ed, `nmap x :echo 3<CR>`)
	assert.Equal(t, ":echo 3<CR>", ed.Keymaps()[0].RHS, "redefinition replaces")
}

func TestUnmap(t *testing.T) {
	ed := newEditor(t)
	exec(t, ed, `nnoremap gx :echo 1<CR>`, `inoremap gx <Esc>`)

	exec(t, ed, `nunmap gx`)
	require.Len(t, ed.Keymaps(), 1)
	assert.Equal(t, "i", ed.Keymaps()[0].Mode)

	_, err := ed.Exec(context.Background(), `nunmap gx`, false)
	requireCode(t, err, "E31")
	_, err = ed.Exec(context.Background(), `nunmap`, false)
	requireCode(t, err, "E474")
	_, err = ed.Exec(context.Background(), `nunmap! gx`, false)
	requireCode(t, err, "E477")
}

func TestMap_List(t *testing.T) {
	ed := newEditor(t)
	assert.Equal(t, "No mapping found", capture(t, ed, "nmap"))

	exec(t, ed, `nnoremap gx :echo 1<CR>`, `nmap gy :echo 2<CR>`, `nmap zz :echo 3<CR>`)
	assert.Equal(t, "n  gx          * :echo 1<CR>\nn  gy            :echo 2<CR>", capture(t, ed, "nmap g"))
}
