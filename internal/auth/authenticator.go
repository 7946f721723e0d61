package auth

import (
	"context"
	"strings"
	"time"

	"taskdesk/internal/domain"
	"taskdesk/internal/token"
)

// IdentityStore is the narrow bridge to persisted principals used for
// login. Request authentication never touches it; tokens are stateless.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (domain.Principal, error)
	VerifySecret(p domain.Principal, secret string) bool
}

// Authenticator establishes identity at the two entry points: login and
// per-request token authentication.
type Authenticator struct {
	store IdentityStore
	codec *token.Codec
	ttl   time.Duration
}

func NewAuthenticator(store IdentityStore, codec *token.Codec, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = token.DefaultTTL
	}
	return &Authenticator{store: store, codec: codec, ttl: ttl}
}

// LoginResult carries the issued credential and a public-safe summary
// of the principal.
type LoginResult struct {
	Token     string
	Principal domain.PrincipalSummary
}

// Login verifies the secret and issues a credential. Unknown email and
// wrong secret both return ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, email, secret string) (LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || secret == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	p, err := a.store.FindByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !a.store.VerifySecret(p, secret) {
		return LoginResult{}, ErrInvalidCredentials
	}
	raw, err := a.codec.Issue(p, a.ttl)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: raw, Principal: p.Public()}, nil
}

// AuthenticateRequest validates the Authorization header and returns
// the principal context. The header must have the exact shape
// "Bearer <token>"; every failure collapses to ErrUnauthenticated so
// callers cannot distinguish signature from expiry failures.
func (a *Authenticator) AuthenticateRequest(authorization string) (PrincipalContext, error) {
	raw, ok := bearerToken(authorization)
	if !ok {
		return PrincipalContext{}, ErrUnauthenticated
	}
	claims, err := a.codec.Verify(raw)
	if err != nil {
		return PrincipalContext{}, ErrUnauthenticated
	}
	return PrincipalContext{
		ID:    claims.Subject,
		Name:  claims.Name,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}

// bearerToken accepts only the exact "Bearer <token>" shape: the
// scheme is case-sensitive and a single space separates it from the
// token. Anything looser ("bearer", tabs, extra fields) is rejected.
func bearerToken(authorization string) (string, bool) {
	const scheme = "Bearer "
	if !strings.HasPrefix(authorization, scheme) {
		return "", false
	}
	raw := authorization[len(scheme):]
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return "", false
	}
	return raw, true
}
