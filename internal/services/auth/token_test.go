package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)

	token, expiresAt, err := issuer.Issue("dashboard")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "dashboard" {
		t.Fatalf("unexpected subject: %q", claims.Subject)
	}
	if !claims.ExpiresAt.Equal(expiresAt.Truncate(time.Second)) {
		t.Fatalf("unexpected expiry: got %s want %s", claims.ExpiresAt, expiresAt)
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return base }

	token, _, err := issuer.Issue("dashboard")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	issuer.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := issuer.Parse(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for expired token, got %v", err)
	}
}

func TestTokenRejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenIssuer("one", time.Minute).Issue("dashboard")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := NewTokenIssuer("two", time.Minute).Parse(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for foreign secret, got %v", err)
	}
}

func TestIssueRequiresSecret(t *testing.T) {
	if _, _, err := NewTokenIssuer("", time.Minute).Issue("dashboard"); err == nil {
		t.Fatalf("expected error without secret")
	}
}
