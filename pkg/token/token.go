package token

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims defines the JWT payload the engine consumes. Token issuance lives in
// the identity service; the engine only needs the owner identifier.
type Claims struct {
	OwnerID string `json:"owner_id"`
	jwtlib.RegisteredClaims
}

// Generate issues a signed token. Used by tests and local tooling.
func Generate(ownerID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		OwnerID: ownerID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    "launchdeck",
			Subject:   ownerID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse validates a token and extracts its claims.
func Parse(token, secret string) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	// Tokens issued elsewhere may carry the owner only in the sub claim.
	if claims.OwnerID == "" {
		claims.OwnerID = claims.Subject
	}
	return claims, nil
}
