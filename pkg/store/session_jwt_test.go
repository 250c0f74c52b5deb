package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestSessionRoundTrip(t *testing.T) {
	sessions, err := NewJWTSessionStore("test-secret", time.Hour, NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	token, err := sessions.NewSession("user-1", "ada@example.com")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	claims, err := sessions.VerifySession(token)
	if err != nil {
		t.Fatalf("verify session: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "ada@example.com" {
		t.Fatalf("claims = %+v", claims)
	}
	if time.Until(claims.ExpiresAt) <= 0 {
		t.Fatal("session already expired")
	}
}

func TestSessionRejectsGarbage(t *testing.T) {
	sessions, err := NewJWTSessionStore("test-secret", time.Hour, nil)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	if _, err := sessions.VerifySession("not-a-token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestSessionRejectsWrongSecret(t *testing.T) {
	issuer, _ := NewJWTSessionStore("secret-a", time.Hour, nil)
	verifier, _ := NewJWTSessionStore("secret-b", time.Hour, nil)
	token, err := issuer.NewSession("user-1", "ada@example.com")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := verifier.VerifySession(token); err == nil {
		t.Fatal("expected error for token signed with another secret")
	}
}

func TestDeleteSessionRevokesToken(t *testing.T) {
	sessions, err := NewJWTSessionStore("test-secret", time.Hour, NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	token, err := sessions.NewSession("user-1", "ada@example.com")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := sessions.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := sessions.VerifySession(token); err == nil {
		t.Fatal("revoked token still verifies")
	}
}

func TestDeleteSessionWithRedisRevoker(t *testing.T) {
	redis := miniredis.RunT(t)
	sessions, err := NewJWTSessionStore("test-secret", time.Hour, NewRedisTokenRevoker(redis.Addr(), ""))
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	token, err := sessions.NewSession("user-1", "ada@example.com")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := sessions.VerifySession(token); err != nil {
		t.Fatalf("verify before revoke: %v", err)
	}
	if err := sessions.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := sessions.VerifySession(token); err == nil {
		t.Fatal("revoked token still verifies")
	}
}
