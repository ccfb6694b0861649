package token

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func TestGenerateParseRoundTrip(t *testing.T) {
	signed, err := Generate("owner-123", "secret", time.Hour)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	claims, err := Parse(signed, "secret")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.OwnerID != "owner-123" {
		t.Fatalf("owner = %q, want owner-123", claims.OwnerID)
	}
	if claims.Issuer != "launchdeck" {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	signed, err := Generate("owner-123", "secret", time.Hour)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := Parse(signed, "other-secret"); err == nil {
		t.Fatal("expected signature validation to fail")
	}
}

func TestParseFallsBackToSubjectClaim(t *testing.T) {
	claims := jwtlib.RegisteredClaims{
		Issuer:    "launchdeck",
		Subject:   "owner-789",
		ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	parsed, err := Parse(signed, "secret")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.OwnerID != "owner-789" {
		t.Fatalf("owner = %q, want owner-789 from sub", parsed.OwnerID)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	signed, err := Generate("owner-123", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := Parse(signed, "secret"); err == nil {
		t.Fatal("expected expired token to fail")
	}
}
