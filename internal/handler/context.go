package handler

import "context"

type contextKey struct{}

// WithPersonID stores the authenticated person ID in the context.
func WithPersonID(ctx context.Context, personID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, personID)
}

// PersonIDFromContext retrieves the authenticated person ID from the context.
func PersonIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(contextKey{}).(int64)
	return id
}
