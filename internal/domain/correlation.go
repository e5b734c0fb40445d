package domain

import "context"

type correlationKey struct{}

// WithCorrelationID returns a context carrying the caller's request correlation ID.
// The core never generates or interprets the value.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID extracts the correlation ID from ctx. Returns "" if not set.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
