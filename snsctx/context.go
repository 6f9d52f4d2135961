// Package snsctx keeps per-invocation settings in a context.
package snsctx

import (
	"context"
	"log/slog"
)

type ctxIndex int

const (
	ctxIndexVerbose ctxIndex = iota
	ctxIndexLogger
)

// IsVerbose reports whether raw transfers should be dumped to the log.
func IsVerbose(ctx context.Context) bool {
	val, ok := ctx.Value(ctxIndexVerbose).(bool)
	return ok && val
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// Logger returns the logger stored in ctx or slog.Default().
func Logger(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(ctxIndexLogger).(*slog.Logger); ok && log != nil {
		return log
	}
	return slog.Default()
}

func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxIndexLogger, log)
}
