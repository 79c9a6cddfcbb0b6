package auth

import (
	"errors"
	"testing"
)

func TestStaticTokenAuthorizer(t *testing.T) {
	a := NewStaticTokenAuthorizer("s3cret")

	if err := a.Authorize("s3cret"); err != nil {
		t.Errorf("matching token should pass: %v", err)
	}
	if err := a.Authorize("wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if err := a.Authorize(""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("empty presented token must be rejected, got %v", err)
	}
}

func TestUnconfiguredAuthorizerFailsClosed(t *testing.T) {
	a := NewStaticTokenAuthorizer("")

	if err := a.Authorize(""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("unconfigured authorizer must reject everything, got %v", err)
	}
	if err := a.Authorize("anything"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("unconfigured authorizer must reject everything, got %v", err)
	}
}
