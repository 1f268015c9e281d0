package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestAuth(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService("test-secret-key-for-jwt")
}

func TestJWTRoundTrip(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	token, err := auth.IssueJWT(ctx, "ops@example.com", 1*time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	principal, err := auth.ValidateJWT(ctx, token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if principal.Subject != "ops@example.com" {
		t.Errorf("Subject: got %q, want %q", principal.Subject, "ops@example.com")
	}
}

func TestJWTExpired(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	token, err := auth.IssueJWT(ctx, "ops", -1*time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}

	_, err = auth.ValidateJWT(ctx, token)
	if err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestJWTInvalidToken(t *testing.T) {
	auth := newTestAuth(t)

	_, err := auth.ValidateJWT(context.Background(), "garbage.token.here")
	if err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	ctx := context.Background()
	token, err := NewAuthService("secret-a").IssueJWT(ctx, "ops", time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}

	if _, err := NewAuthService("secret-b").ValidateJWT(ctx, token); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestJWTWrongIssuer(t *testing.T) {
	secret := "test-secret-key-for-jwt"
	claims := jwt.RegisteredClaims{
		Subject:   "ops",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewAuthService(secret).ValidateJWT(context.Background(), token); err == nil {
		t.Fatal("expected error for foreign issuer")
	}
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	auth := NewAuthService("")
	if auth.Enabled() {
		t.Fatal("expected auth disabled")
	}
	if _, err := auth.IssueJWT(context.Background(), "ops", time.Hour); err != ErrAuthDisabled {
		t.Errorf("IssueJWT: expected ErrAuthDisabled, got %v", err)
	}
	if _, err := auth.ValidateJWT(context.Background(), "x.y.z"); err != ErrAuthDisabled {
		t.Errorf("ValidateJWT: expected ErrAuthDisabled, got %v", err)
	}
}
