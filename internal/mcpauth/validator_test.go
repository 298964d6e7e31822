package mcpauth

import (
	"context"
	"strings"
	"testing"
	"time"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestValidateTokenSuccess(t *testing.T) {
	now := time.Now()
	v := NewApiKeyValidator(fixedNow(now))
	v.RegisterToken("tok", now.Add(time.Hour), []string{"read", "write"})

	result, err := v.ValidateToken(context.Background(), "tok", []string{"read"})
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsAuthenticated {
		t.Fatalf("expected authenticated, got error %q", result.Error)
	}
}

func TestValidateTokenUnknownTokenIsInvalid(t *testing.T) {
	v := NewApiKeyValidator(nil)
	result, err := v.ValidateToken(context.Background(), "nope", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsAuthenticated || result.Error != "Invalid token" {
		t.Fatalf("expected Invalid token, got %+v", result)
	}
}

// TestS6OAuthExpiredRejection is the literal end-to-end scenario and
// invariant 9: a token with exp < now always returns
// isAuthenticated=false with an error containing "expired".
func TestS6OAuthExpiredRejection(t *testing.T) {
	now := time.Now()
	v := NewApiKeyValidator(fixedNow(now))
	v.RegisterToken("tok", now.Add(-time.Hour), []string{"read"})

	result, err := v.ValidateToken(context.Background(), "tok", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsAuthenticated {
		t.Fatal("expected unauthenticated for expired token")
	}
	if !strings.Contains(strings.ToLower(result.Error), "expired") {
		t.Fatalf("expected error to mention expiry, got %q", result.Error)
	}
}

func TestValidateTokenInsufficientScopes(t *testing.T) {
	now := time.Now()
	v := NewApiKeyValidator(fixedNow(now))
	v.RegisterToken("tok", now.Add(time.Hour), []string{"read"})

	result, err := v.ValidateToken(context.Background(), "tok", []string{"read", "admin"})
	if err != nil {
		t.Fatal(err)
	}
	if result.IsAuthenticated || result.Error != "Insufficient scopes" {
		t.Fatalf("expected Insufficient scopes, got %+v", result)
	}
}
