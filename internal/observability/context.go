// Package observability provides operation tracking shared by logging
// and tracing.
package observability

import (
	"context"

	"github.com/google/uuid"
)

type opIDKey struct{}

// WithOpID generates a new operation ID and stores it in the context.
// Each CLI invocation calls this once at startup.
func WithOpID(ctx context.Context) context.Context {
	return context.WithValue(ctx, opIDKey{}, uuid.NewString())
}

// OpID retrieves the operation ID from context, empty if unset
func OpID(ctx context.Context) string {
	if id, ok := ctx.Value(opIDKey{}).(string); ok {
		return id
	}
	return ""
}
