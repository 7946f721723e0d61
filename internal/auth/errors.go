package auth

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials is returned by Login for both unknown email and
// wrong secret; the two cases are deliberately indistinguishable to
// avoid user enumeration.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUnauthenticated is returned by AuthenticateRequest for any missing,
// malformed, tampered or expired credential. The specific verifier
// failure is never surfaced to the caller.
var ErrUnauthenticated = errors.New("authentication required")

// ErrMismatchedHashAndPassword is returned when a presented secret does
// not match the stored hash.
var ErrMismatchedHashAndPassword = errors.New("password does not match hash")

// ForbiddenError indicates an authorization denial (role gate or
// resource policy).
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return fmt.Sprintf("forbidden: %s", e.Reason)
}
