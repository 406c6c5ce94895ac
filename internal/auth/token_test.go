package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenLifecycle(t *testing.T) {
	t.Parallel()

	mgr, err := NewManager("test-secret", "")
	if err != nil {
		t.Fatalf("unexpected error creating manager: %v", err)
	}

	token, err := mgr.GenerateToken("session-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	id, err := mgr.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if id != "session-1" {
		t.Fatalf("session id mismatch: got %q want %q", id, "session-1")
	}
}

func TestParseTokenExpired(t *testing.T) {
	t.Parallel()

	mgr, _ := NewManager("test-secret", "")
	token, err := mgr.GenerateToken("session-1", time.Now().Add(-time.Second))
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if _, err := mgr.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	t.Parallel()

	signer, _ := NewManager("right-secret", "")
	verifier, _ := NewManager("wrong-secret", "")

	token, err := signer.GenerateToken("session-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if _, err := verifier.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	t.Parallel()

	mgr, _ := NewManager("test-secret", "")
	if _, err := mgr.ParseToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewManager("   ", ""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestGenerateTokenRequiresSessionID(t *testing.T) {
	t.Parallel()

	mgr, _ := NewManager("test-secret", "")
	if _, err := mgr.GenerateToken("", time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected error for empty session id")
	}
}
