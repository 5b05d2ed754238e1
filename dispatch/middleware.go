package dispatch

import (
	"context"
	"log/slog"
)

// Middleware is a function that wraps an Endpoint to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next Endpoint) Endpoint

// PanicRecoveryMiddleware returns a middleware that catches panics raised by
// an endpoint and reports them as a *PanicError instead of unwinding through
// the execution substrate.
func PanicRecoveryMiddleware() Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, args []any) (result any, err error) {
			defer func() {
				if r := recover(); r != nil {
					result = nil
					err = NewPanicError(functionName(ctx), r)
				}
			}()
			return next(ctx, args)
		}
	}
}

// LoggingMiddleware returns a middleware that logs endpoint invocations.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, args []any) (any, error) {
			attrs := []any{slog.String("function", functionName(ctx)), slog.Int("args", len(args))}
			if cc, ok := ctx.(CallContext); ok {
				attrs = append(attrs, slog.Int("depth", cc.Depth()))
			}
			logger.DebugContext(ctx, "invoking function", attrs...)
			result, err := next(ctx, args)
			if err != nil {
				logger.WarnContext(ctx, "function failed", append(attrs, slog.Any("error", err))...)
			}
			return result, err
		}
	}
}

func functionName(ctx context.Context) string {
	if cc := findCallContext(ctx); cc != nil {
		return cc.FunctionName()
	}
	return "unknown"
}
