package session

import "context"

type contextKey struct{}

// NewContext returns a context carrying the calling session's id, so
// downstream collaborators can address notifications back to the session.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the session id carried by the context, if any.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}
