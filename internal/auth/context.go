package auth

import (
	"context"

	"taskdesk/internal/domain"
)

// PrincipalContext is the request-scoped, verified view of a
// credential's claims. It is built from the token alone; role or
// profile changes made after issuance do not take effect until the
// principal logs in again.
type PrincipalContext struct {
	ID    string
	Name  string
	Email string
	Role  domain.Role
}

func (pc PrincipalContext) IsAdmin() bool { return pc.Role == domain.RoleAdmin }

type principalKey struct{}

// WithPrincipal attaches the principal context to a request context.
func WithPrincipal(ctx context.Context, pc PrincipalContext) context.Context {
	return context.WithValue(ctx, principalKey{}, pc)
}

// PrincipalFromContext extracts the principal context, if present.
func PrincipalFromContext(ctx context.Context) (PrincipalContext, bool) {
	pc, ok := ctx.Value(principalKey{}).(PrincipalContext)
	return pc, ok
}
