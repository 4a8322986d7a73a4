package logger

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}

// fallback is handed out when a context carries no logger, so call
// sites never need a nil check.
var fallback = zap.NewNop()

// ContextWithLogger returns a child context carrying the request logger.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the request logger stored in ctx, or a nop logger
// when the context was built outside the HTTP middleware stack.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}
