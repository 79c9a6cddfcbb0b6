package auth

import (
	"crypto/subtle"
	"errors"
)

// ErrUnauthorized is returned when a presented token does not match.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotConfigured is returned when no token has been configured at all.
// Verification fails closed rather than accepting everything.
var ErrNotConfigured = errors.New("authorizer_not_configured")

// Authorizer checks a presented credential for the operator surface.
type Authorizer interface {
	Authorize(presented string) error
}

type staticTokenAuthorizer struct {
	token string
}

// NewStaticTokenAuthorizer returns an Authorizer comparing against a single
// shared token in constant time.
func NewStaticTokenAuthorizer(token string) Authorizer {
	return &staticTokenAuthorizer{token: token}
}

func (a *staticTokenAuthorizer) Authorize(presented string) error {
	if a.token == "" {
		return ErrNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(a.token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
