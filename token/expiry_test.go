package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestExpiresAt(t *testing.T) {
	exp := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	tok := signed(t, jwt.RegisteredClaims{
		Subject:   "u-100",
		ExpiresAt: jwt.NewNumericDate(exp),
	})

	got, err := ExpiresAt(tok)
	if err != nil {
		t.Fatalf("ExpiresAt: %v", err)
	}
	if !got.Equal(exp) {
		t.Fatalf("got %v, want %v", got, exp)
	}
}

func TestExpiresAtAlreadyExpired(t *testing.T) {
	// Expiry extraction must not validate the claim: an expired token
	// still reports its instant so callers can decide what to do.
	exp := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})

	got, err := ExpiresAt(tok)
	if err != nil {
		t.Fatalf("ExpiresAt: %v", err)
	}
	if !got.Equal(exp) {
		t.Fatalf("got %v, want %v", got, exp)
	}
}

func TestExpiresAtNoClaim(t *testing.T) {
	tok := signed(t, jwt.RegisteredClaims{Subject: "u-100"})

	if _, err := ExpiresAt(tok); !errors.Is(err, ErrNoExpiry) {
		t.Fatalf("expected ErrNoExpiry, got %v", err)
	}
}

func TestExpiresAtOpaqueToken(t *testing.T) {
	for _, tok := range []string{"", "opaque-session-token", "a.b"} {
		if _, err := ExpiresAt(tok); !errors.Is(err, ErrMalformed) {
			t.Fatalf("token %q: expected ErrMalformed, got %v", tok, err)
		}
	}
}
