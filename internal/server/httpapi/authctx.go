package httpapi

import "context"

type ctxKey string

const userIDKey ctxKey = "sync.userID"

// WithUserID stores the authenticated user ID in the request context.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFrom fetches the authenticated user ID from the context.
func UserIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}
