package dispatch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanicRecoveryMiddleware(t *testing.T) {
	table, err := NewTable(
		WithMiddleware(PanicRecoveryMiddleware()),
		WithEndpoint("Boom", func(context.Context, []any) (any, error) {
			panic("test panic")
		}),
	)
	require.NoError(t, err)

	result, err := table.Invoke(context.Background(), "Boom", nil)
	assert.Nil(t, result)

	var panicErr *PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "Boom", panicErr.Function)
	assert.Contains(t, err.Error(), "test panic")
}

func TestPanicRecoveryMiddleware_ErrorValue(t *testing.T) {
	cause := errors.New("cause")
	wrapped := PanicRecoveryMiddleware()(func(context.Context, []any) (any, error) {
		panic(cause)
	})

	_, err := wrapped(context.Background(), nil)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "function unknown panicked")
}

func TestPanicRecoveryMiddleware_NoPanic(t *testing.T) {
	wrapped := PanicRecoveryMiddleware()(echoEndpoint)

	result, err := wrapped(context.Background(), []any{"ok"})
	require.NoError(t, err)
	assert.Equal(t, []any{"ok"}, result)
}

func TestMiddlewareOrder_FIFO(t *testing.T) {
	var callOrder []string

	tracer := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, args []any) (any, error) {
				callOrder = append(callOrder, name+"-before")
				result, err := next(ctx, args)
				callOrder = append(callOrder, name+"-after")
				return result, err
			}
		}
	}

	table, err := NewTable(WithMiddleware(tracer("mw1"), tracer("mw2")))
	require.NoError(t, err)
	require.NoError(t, table.Register("Fn", func(context.Context, []any) (any, error) {
		callOrder = append(callOrder, "endpoint")
		return nil, nil
	}))

	_, err = table.Invoke(context.Background(), "Fn", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"mw1-before", "mw2-before", "endpoint", "mw2-after", "mw1-after"}, callOrder)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	table, err := NewTable(WithMiddleware(LoggingMiddleware(logger)))
	require.NoError(t, err)
	require.NoError(t, table.Register("Ok", echoEndpoint))
	require.NoError(t, table.Register("Fail", func(context.Context, []any) (any, error) {
		return nil, errors.New("nope")
	}))

	_, err = table.Invoke(context.Background(), "Ok", []any{1})
	require.NoError(t, err)
	_, err = table.Invoke(context.Background(), "Fail", nil)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "invoking function")
	assert.Contains(t, out, "function=Ok")
	assert.Contains(t, out, "function failed")
	assert.Contains(t, out, "error=nope")
}
