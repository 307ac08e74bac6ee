package authz

import "context"

type userContextKey struct{}

// ContextWithUser stores the resolved user in context.
func ContextWithUser(ctx context.Context, user *ResolvedUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext extracts the resolved user from context, nil when the
// request never passed an authorization middleware.
func UserFromContext(ctx context.Context) *ResolvedUser {
	user, _ := ctx.Value(userContextKey{}).(*ResolvedUser)
	return user
}
