package identity

import "context"

var userCtxKey = &contextKey{"user"}
var serviceCtxKey = &contextKey{"service"}

type contextKey struct {
	name string
}

// WithUserContext sets the authenticated User in the given context.
func WithUserContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// UserFromContext finds the authenticated user from the context.
func UserFromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithServiceContext sets the resolved tenant in the given context. The web
// layer attaches it after the key gate succeeds so downstream flows can read
// the tenant's verification method and tag audit events.
func WithServiceContext(ctx context.Context, service *Service) context.Context {
	return context.WithValue(ctx, serviceCtxKey, service)
}

// ServiceFromContext finds the resolved tenant from the context.
func ServiceFromContext(ctx context.Context) (*Service, bool) {
	raw, ok := ctx.Value(serviceCtxKey).(*Service)
	return raw, ok
}
