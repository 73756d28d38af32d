package ledger

import (
	"context"

	"github.com/LerianStudio/lib-ledger/ledger/log"
)

type contextKey string

// loggerKey is the context key under which the request-scoped logger lives.
const loggerKey = contextKey("ledger_logger")

// ContextWithLogger returns a child context carrying the given logger.
// A nil logger leaves the parent untouched.
func ContextWithLogger(ctx context.Context, logger log.Logger) context.Context {
	if logger == nil {
		return ctx
	}

	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext extracts the logger placed by ContextWithLogger.
// When the context carries none, a NopLogger is returned so callers never
// need a nil check.
//
//nolint:ireturn
func LoggerFromContext(ctx context.Context) log.Logger {
	return LoggerFromContextOr(ctx, nil)
}

// LoggerFromContextOr extracts the context logger, falling back to the given
// logger and finally to a NopLogger. Components with an injected logger use
// this so a request-scoped logger still wins when present.
//
//nolint:ireturn
func LoggerFromContextOr(ctx context.Context, fallback log.Logger) log.Logger {
	if logger, ok := ctx.Value(loggerKey).(log.Logger); ok && logger != nil {
		return logger
	}

	if fallback != nil {
		return fallback
	}

	return &log.NopLogger{}
}
