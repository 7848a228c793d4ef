// Package auth mints and validates the bearer JWTs the sync engine attaches
// to every server request: ES256-signed, audience "banyan-platform",
// subject the user's id-UUID, per the server protocol's auth contract.
package auth

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Audience is the fixed JWT audience every Banyan platform endpoint
// expects.
const Audience = "banyan-platform"

// DefaultTTL is how long a minted token is valid if the caller does not
// override it.
const DefaultTTL = 15 * time.Minute

// Claims is the token's payload: the registered claims plus nothing
// Banyan-specific beyond what RegisteredClaims already carries (subject is
// the user id, audience is fixed).
type Claims struct {
	jwt.RegisteredClaims
}

// Mint signs a fresh bearer token for userID, valid for ttl (DefaultTTL if
// zero), using priv as the EC signature key.
func Mint(priv *ecdsa.PrivateKey, userID uuid.UUID, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signed, err := token.SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies tokenString against pub, checking the
// signature, expiry, and the banyan-platform audience. It returns the
// token's subject (the user id) on success.
func Validate(tokenString string, pub *ecdsa.PublicKey) (uuid.UUID, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return pub, nil
	})
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("validate token: %w", err)
	}
	if !hasAudience(claims.Audience, Audience) {
		return uuid.UUID{}, fmt.Errorf("validate token: wrong audience")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("validate token: subject is not a user id: %w", err)
	}
	return userID, nil
}

func hasAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
