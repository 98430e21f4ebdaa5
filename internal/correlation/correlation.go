// Package correlation propagates a per-attempt trace id through an
// explicit context.Context value, the idiomatic Go stand-in for the
// task-local ambient context the source process uses. Never stash a
// trace id anywhere process-wide; two concurrent jobs must never be able
// to see each other's id.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

type traceIDKey struct{}

// WithTraceID returns a context carrying id, for the lifetime of one
// job attempt and whatever it calls into.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceID returns the trace id installed on ctx, if any.
func TraceID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(traceIDKey{}).(string)
	return id, ok && id != ""
}

// New generates a fresh trace id.
func New() string {
	return uuid.New().String()
}
