package editor

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/cmdbridge/cmdbridge/dispatch"
	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
	"github.com/cmdbridge/cmdbridge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEditor(t *testing.T, opts ...Option) *Editor {
	t.Helper()
	ed, err := New(opts...)
	require.NoError(t, err)
	require.NoError(t, ed.Table().Register("Upper", func(_ context.Context, args []any) (any, error) {
		s, _ := args[0].(string)
		return strings.ToUpper(s), nil
	}))
	return ed
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	testutil.RequireExecCode(t, err, code)
}

func capture(t *testing.T, ed *Editor, line string) string {
	t.Helper()
	out, err := ed.Exec(context.Background(), line, true)
	require.NoError(t, err)
	return out
}

func TestExec_Echo(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{line: `echo "Hello, world!"`, want: "Hello, world!"},
		{line: `echo "a\tb\"c\\"`, want: "a\tb\"c\\"},
		{line: `echo 'it''s'`, want: "it's"},
		{line: `echo 1 2.5 -3`, want: "1 2.5 -3"},
		{line: `echo "a" .. 1 .. 'b'`, want: "a1b"},
		{line: `echo [1, 'x', [v:true]]`, want: "[1, 'x', [v:true]]"},
		{line: `echo bare words`, want: "bare words"},
		{line: `echo v:null`, want: "v:null"},
		{line: `echo Upper("abc") ("x")`, want: "ABC x"},
		{line: `:: echo "leading colons"`, want: "leading colons"},
		{line: `ec "abbreviated"`, want: "abbreviated"},
		{line: `echo`, want: ""},
	}

	ed := newEditor(t)
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, capture(t, ed, tt.line))
		})
	}
}

func TestExec_Errors(t *testing.T) {
	tests := []struct {
		line string
		code string
	}{
		{line: `echo "open`, code: "E114"},
		{line: `echo 'open`, code: "E115"},
		{line: `echo Nope()`, code: "E117"},
		{line: `echo (1`, code: "E110"},
		{line: `echo ]`, code: "E15"},
		{line: `echo [1 2]`, code: "E696"},
		{line: `frobnicate`, code: "E492"},
		{line: `123`, code: "E492"},
		{line: `echo! "x"`, code: "E477"},
		{line: `messages bogus`, code: "E474"},
	}

	ed := newEditor(t)
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := ed.Exec(context.Background(), tt.line, false)
			requireCode(t, err, tt.code)
		})
	}
}

func TestExec_UnknownCommandSuggestion(t *testing.T) {
	ed := newEditor(t)
	_, err := ed.Exec(context.Background(), `ech "x"`, false)
	requireCode(t, err, "E492")
	assert.Contains(t, err.Error(), `did you mean "echo"?`)
}

func TestExec_EmptyAndComment(t *testing.T) {
	ed := newEditor(t)
	for _, line := range []string{"", "   ", ":", `" a comment`} {
		out, err := ed.Exec(context.Background(), line, true)
		require.NoError(t, err)
		assert.Empty(t, out)
	}
}

func TestExec_Output(t *testing.T) {
	var buf bytes.Buffer
	ed := newEditor(t, WithOutput(&buf))
	ctx := context.Background()

	_, err := ed.Exec(ctx, `echo "shown"`, false)
	require.NoError(t, err)
	out, err := ed.Exec(ctx, `echo "captured"`, true)
	require.NoError(t, err)
	_, err = ed.Exec(ctx, `silent echo "hidden"`, false)
	require.NoError(t, err)

	assert.Equal(t, "shown\n", buf.String())
	assert.Equal(t, "captured", out)
}

func TestExec_CaptureSeesNestedOutput(t *testing.T) {
	ed := newEditor(t)
	require.NoError(t, ed.Table().Register("Inner", func(ctx context.Context, _ []any) (any, error) {
		_, err := ed.Exec(ctx, `echo "inner"`, false)
		return nil, err
	}))

	out := capture(t, ed, `call Inner()`)
	assert.Equal(t, "inner", out)

	out = capture(t, ed, `silent call Inner()`)
	assert.Equal(t, "inner", out, "captures see silenced output")
}

func TestExec_Recursion(t *testing.T) {
	ed := newEditor(t)
	require.NoError(t, ed.Table().Register("Loop", func(ctx context.Context, _ []any) (any, error) {
		_, err := ed.Exec(ctx, `call Loop()`, false)
		return nil, err
	}))
	_, err := ed.Exec(context.Background(), `call Loop()`, false)
	requireCode(t, err, "E169")
}

func TestCall(t *testing.T) {
	ed := newEditor(t)
	var (
		got  []any
		name string
	)
	require.NoError(t, ed.Table().Register("Notify", func(ctx context.Context, args []any) (any, error) {
		got = args
		if cc, ok := ctx.(dispatch.CallContext); ok {
			name = cc.FunctionName()
		}
		return nil, nil
	}))

	_, err := ed.Exec(context.Background(), `call Notify("saved", 3, [1])`, false)
	require.NoError(t, err)
	assert.Equal(t, []any{"saved", int64(3), []any{int64(1)}}, got)
	assert.Equal(t, "Notify", name)

	_, err = ed.Exec(context.Background(), `call Notify`, false)
	requireCode(t, err, "E129")

	_, err = ed.Exec(context.Background(), `call Notify() extra`, false)
	requireCode(t, err, "E488")
}

func TestCall_FunctionErrorsAreExecErrors(t *testing.T) {
	ed := newEditor(t)
	require.NoError(t, ed.Table().Register("Fail", func(context.Context, []any) (any, error) {
		return nil, bridgeerrors.NewValueError(1, "bad")
	}))
	require.NoError(t, ed.Table().Register("Panic", func(context.Context, []any) (any, error) {
		panic("boom")
	}))

	_, err := ed.Exec(context.Background(), `call Fail()`, false)
	var ee *bridgeerrors.ExecError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "call Fail()", ee.Command)
	assert.True(t, bridgeerrors.IsValue(err))

	_, err = ed.Exec(context.Background(), `call Panic()`, false)
	var pe *dispatch.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Panic", pe.Function)
}

func TestMessages(t *testing.T) {
	ed := newEditor(t)
	ctx := context.Background()

	_, err := ed.Exec(ctx, `echomsg "first"`, false)
	require.NoError(t, err)
	_, err = ed.Exec(ctx, `echo "not kept"`, false)
	require.NoError(t, err)
	_, err = ed.Exec(ctx, `echom "second"`, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, ed.Messages())
	assert.Equal(t, "first\nsecond", capture(t, ed, "messages"))

	capture(t, ed, "messages clear")
	assert.Empty(t, ed.Messages())
}

func TestSilentBang(t *testing.T) {
	ed := newEditor(t)
	_, err := ed.Exec(context.Background(), `silent! frobnicate`, false)
	require.NoError(t, err)

	_, err = ed.Exec(context.Background(), `silent frobnicate`, false)
	requireCode(t, err, "E492")
}

func TestEdit(t *testing.T) {
	ed := newEditor(t)
	ctx := context.Background()

	_, err := ed.Exec(ctx, `edit`, false)
	requireCode(t, err, "E32")

	_, err = ed.Exec(ctx, `autocmd BufRead *.txt echomsg "read"`, false)
	require.NoError(t, err)

	_, err = ed.Exec(ctx, `edit ++enc=utf-8 +10 my\ file.txt`, false)
	require.NoError(t, err)
	assert.Equal(t, Buffer{Name: "my file.txt", Options: map[string]string{"enc": "utf-8"}, Line: 10}, ed.Buffer())
	assert.Equal(t, []string{"read"}, ed.Messages())

	_, err = ed.Exec(ctx, `e! +echomsg\ "again"`, false)
	require.NoError(t, err)
	assert.Equal(t, "my file.txt", ed.Buffer().Name, "the current file is edited again")
	assert.Equal(t, []string{"read", "read", "again"}, ed.Messages())

	_, err = ed.Exec(ctx, `edit a b`, false)
	requireCode(t, err, "E172")
	_, err = ed.Exec(ctx, `edit ++bogus x`, false)
	requireCode(t, err, "E474")
	_, err = ed.Exec(ctx, `edit ++enc x`, false)
	requireCode(t, err, "E474")
}

func TestSplitArgs(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", `d\`}, splitArgs(`a  b\ c d\\`))
	assert.Nil(t, splitArgs("   "))
}
