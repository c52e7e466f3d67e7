package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned when the token parses but carries no exp claim.
var ErrNoExpiry = errors.New("token carries no expiry claim")

// ErrMalformed is returned when the token is not a parseable JWT.
var ErrMalformed = errors.New("malformed token")

var parser = jwt.NewParser(jwt.WithoutClaimsValidation())

// ExpiresAt extracts the exp claim from an access token without verifying the
// signature. Opaque (non-JWT) tokens return [ErrMalformed]; callers fall back
// to server-reported expiry.
func ExpiresAt(accessToken string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, ErrMalformed
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}
