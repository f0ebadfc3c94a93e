package core

import "context"

type ownerKey struct{}

// WithOwner attaches the authenticated owner id to ctx.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext returns the owner id, or false when the request is anonymous.
func OwnerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
