package shared

import (
	"context"

	"github.com/google/uuid"
)

type principalContextKey struct{}

// Principal identifies the authenticated subject of a request. Population is
// the job of the external authentication shim (session/SSO); this service
// only consumes it.
type Principal struct {
	UserID uuid.UUID
	Tenant string
}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
