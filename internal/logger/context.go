package logger

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperrag/internal/domain"
)

type ctxKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Returns zap.NewNop() if no logger is found.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithCorrelation tags ctx with a correlation ID and stores a child of base
// carrying the correlation_id field. Used at the CLI and HTTP entry points.
func WithCorrelation(ctx context.Context, base *zap.Logger, id string) context.Context {
	ctx = domain.WithCorrelationID(ctx, id)
	return ContextWithLogger(ctx, base.With(zap.String("correlation_id", id)))
}
