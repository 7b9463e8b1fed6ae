// Package middleware provides the HTTP middleware chain: recovery, tracing,
// CORS, rate limiting and bearer authentication.
package middleware

import "context"

// Identity is the authenticated caller resolved from a bearer token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
}

type contextKey string

const (
	identityKey contextKey = "identity"
	traceIDKey  contextKey = "trace_id"
)

// WithIdentity stores the caller identity in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the caller identity, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.ID != ""
}

// UserID returns the authenticated caller id or "".
func UserID(ctx context.Context) string {
	id, _ := IdentityFrom(ctx)
	return id.ID
}

// WithTraceID stores the request trace id in ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the request trace id or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}
