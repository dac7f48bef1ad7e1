package clients

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// batchIDKey carries the current batch id so the upstream HTTP client can
// tag its requests without threading it through every call signature.
const batchIDKey contextKey = "batch-id"

// WithBatchID attaches a batch id to the context.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, batchIDKey, batchID)
}

// BatchID retrieves the batch id from context, if any.
func BatchID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(batchIDKey).(string)
	return id, ok && id != ""
}
