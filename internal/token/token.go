// Package token implements the signed credential carried in the
// Authorization header: three URL-safe base64 segments, HMAC-SHA256
// signed (HS256). Tokens are stateless; there is no revocation, a
// stolen or stale token stays valid until its natural expiry.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskdesk/internal/domain"
)

// DefaultTTL is the credential lifetime applied at login.
const DefaultTTL = 24 * time.Hour

var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
)

// Claims is the fixed-shape credential payload. Unknown-shape payloads
// (missing subject or an out-of-range role) are rejected at decode.
type Claims struct {
	jwt.RegisteredClaims
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

func (c *Claims) wellFormed() bool {
	return c.Subject != "" && c.Role.IsValid()
}

// Codec issues and verifies credentials under a process-wide secret.
// The secret is loaded once at startup and read-only afterwards, so a
// single Codec is safe for concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(secret []byte, opts ...Option) *Codec {
	c := &Codec{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue signs a credential for the principal with the given TTL.
func (c *Codec) Issue(p domain.Principal, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := c.now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:  p.Name,
		Email: p.Email,
		Role:  p.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode parses the claims segment without any trust decision. Callers
// must not act on the result for authorization; use Verify for that.
func Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, ErrMalformedToken
	}
	if !claims.wellFormed() {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// Verify checks the signature (constant-time, before any claim is
// trusted) and the expiry, then returns the claims.
func (c *Codec) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	parsed, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		default:
			return nil, ErrMalformedToken
		}
	}
	if !parsed.Valid || !claims.wellFormed() {
		return nil, ErrMalformedToken
	}
	return claims, nil
}
