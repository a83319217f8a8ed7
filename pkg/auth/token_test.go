package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/siva27neelam/story-telling/pkg/config"
	"github.com/siva27neelam/story-telling/pkg/enums"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "story-telling",
	ExpirationMinutes: 30,
}

func TestMintAndParseOperatorToken(t *testing.T) {
	now := time.Now().UTC()

	token, err := MintOperatorToken(testJWT, now, "ops@story-telling", enums.OperatorRoleAdmin)
	if err != nil {
		t.Fatalf("mint operator token: %v", err)
	}

	claims, err := ParseOperatorToken(testJWT, token)
	if err != nil {
		t.Fatalf("parse operator token: %v", err)
	}
	if claims.Subject != "ops@story-telling" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Role != enums.OperatorRoleAdmin {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != testJWT.Issuer {
		t.Fatalf("expected issuer %s, got %s", testJWT.Issuer, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}

	exp := now.Add(30 * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v", exp, claims.ExpiresAt.UTC())
	}
}

func TestMintOperatorTokenValidates(t *testing.T) {
	now := time.Now()
	if _, err := MintOperatorToken(testJWT, now, " ", enums.OperatorRoleAdmin); err == nil {
		t.Fatal("expected subject error")
	}
	if _, err := MintOperatorToken(testJWT, now, "ops", enums.OperatorRole("root")); err == nil {
		t.Fatal("expected role error")
	}
	bad := testJWT
	bad.Secret = ""
	if _, err := MintOperatorToken(bad, now, "ops", enums.OperatorRoleViewer); err == nil {
		t.Fatal("expected secret error")
	}
}

func TestParseOperatorTokenInvalidSignature(t *testing.T) {
	token, err := MintOperatorToken(testJWT, time.Now(), "ops", enums.OperatorRoleViewer)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	other := testJWT
	other.Secret = "different"
	if _, err := ParseOperatorToken(other, token); err == nil {
		t.Fatal("expected signature validation error")
	}
}

func TestParseOperatorTokenExpired(t *testing.T) {
	token, err := MintOperatorToken(testJWT, time.Now().Add(-2*time.Hour), "ops", enums.OperatorRoleAdmin)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseOperatorToken(testJWT, token); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestParseOperatorTokenRejectsUnknownRole(t *testing.T) {
	claims := OperatorClaims{
		Role: enums.OperatorRole("owner"),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testJWT.Issuer,
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWT.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseOperatorToken(testJWT, signed); err == nil {
		t.Fatal("expected role validation error")
	}
}

func TestParseOperatorTokenRequiresAudience(t *testing.T) {
	claims := OperatorClaims{
		Role: enums.OperatorRoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testJWT.Issuer,
			Subject:   "ops",
			Audience:  jwt.ClaimStrings{"storefront"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWT.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseOperatorToken(testJWT, signed); err == nil || !strings.Contains(err.Error(), "audience") {
		t.Fatalf("expected audience error, got %v", err)
	}
}
