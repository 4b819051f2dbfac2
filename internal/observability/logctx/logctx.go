// Package logctx carries the request-scoped logger on a context.Context.
package logctx

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

type loggerKey struct{}

func With(ctx context.Context, logger observability.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

func From(ctx context.Context) observability.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(loggerKey{}).(observability.Logger)
	return logger
}

// FromOr returns the context logger when available, otherwise the fallback.
func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if logger := From(ctx); logger != nil {
		return logger
	}
	if fallback == nil {
		return observability.NopLogger()
	}
	return fallback
}

// Enrich binds fields onto the context logger (or fallback) and stores the result,
// so adapters called further down the request log with the same fields.
func Enrich(ctx context.Context, fallback observability.Logger, fields ...observability.Field) (context.Context, observability.Logger) {
	logger := FromOr(ctx, fallback).With(fields...)
	return With(ctx, logger), logger
}
