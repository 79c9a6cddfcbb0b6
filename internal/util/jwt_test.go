package util

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
)

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestValidateJWT(t *testing.T) {
	tokenString := signToken(t, "secret", Claims{
		Email: "u@example.com",
		StandardClaims: jwt.StandardClaims{
			Subject:   "user-1",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
	})

	claims, err := ValidateJWT(tokenString, "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "u@example.com" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestValidateJWTRejectsWrongSecret(t *testing.T) {
	tokenString := signToken(t, "secret", Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   "user-1",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
	})

	if _, err := ValidateJWT(tokenString, "other-secret"); err == nil {
		t.Fatal("expected validation to fail with the wrong secret")
	}
}

func TestValidateJWTRejectsExpired(t *testing.T) {
	tokenString := signToken(t, "secret", Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   "user-1",
			ExpiresAt: time.Now().Add(-time.Hour).Unix(),
		},
	})

	if _, err := ValidateJWT(tokenString, "secret"); err == nil {
		t.Fatal("expected validation to fail for an expired token")
	}
}

func TestValidateJWTRequiresSubject(t *testing.T) {
	tokenString := signToken(t, "secret", Claims{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
	})

	if _, err := ValidateJWT(tokenString, "secret"); err == nil {
		t.Fatal("expected validation to fail without a subject")
	}
}
