// Package requestctx carries per-call identity through context.
package requestctx

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// callIDContextKey is the context key for the caller-supplied call id.
type callIDContextKey struct{}

// WithCallID stores a call identifier in context. Blank ids are ignored.
func WithCallID(ctx context.Context, callID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return ctx
	}
	return context.WithValue(ctx, callIDContextKey{}, callID)
}

// CallIDFromContext returns the call identifier stored in context.
func CallIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(callIDContextKey{}).(string)
	return value
}

// EnsureCallID returns ctx with a call id, generating a random UUID when none
// is present, and the id itself.
func EnsureCallID(ctx context.Context) (context.Context, string) {
	if callID := CallIDFromContext(ctx); callID != "" {
		return ctx, callID
	}
	callID := uuid.NewString()
	return WithCallID(ctx, callID), callID
}
