package store

import (
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestJWTSessionRoundTrip(t *testing.T) {
	sessions, err := NewJWTSessionStore("test-secret", time.Hour, NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := sessions.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	uid, ok, err := sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		t.Fatalf("validate: ok=%v err=%v", ok, err)
	}
	if uid != "user-1" {
		t.Fatalf("expected user-1, got %s", uid)
	}
}

func TestJWTSessionRevocation(t *testing.T) {
	sessions, err := NewJWTSessionStore("test-secret", time.Hour, NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := sessions.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := sessions.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, _ := sessions.GetUserIDByToken(token); ok {
		t.Fatalf("revoked token should not validate")
	}
	// Deleting again is a no-op.
	if err := sessions.DeleteSession(token); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
}

func TestJWTSessionRejectsBadTokens(t *testing.T) {
	sessions, err := NewJWTSessionStore("test-secret", time.Hour, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	other, err := NewJWTSessionStore("other-secret", time.Hour, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	foreign, err := other.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"wrong secret": foreign,
	} {
		if _, ok, _ := sessions.GetUserIDByToken(token); ok {
			t.Fatalf("%s token should not validate", name)
		}
	}

	good, err := sessions.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	tampered := good[:strings.LastIndex(good, ".")+1] + "AAAA"
	if _, ok, _ := sessions.GetUserIDByToken(tampered); ok {
		t.Fatalf("tampered token should not validate")
	}
}

func TestJWTSessionEmptySecret(t *testing.T) {
	if _, err := NewJWTSessionStore("  ", time.Hour, nil); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestRedisTokenRevoker(t *testing.T) {
	mr := miniredis.RunT(t)
	revoker := NewRedisTokenRevoker(mr.Addr(), "")

	revoked, err := revoker.IsRevoked("jti-1")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if revoked {
		t.Fatalf("fresh token ID should not be revoked")
	}
	if err := revoker.Revoke("jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err = revoker.IsRevoked("jti-1")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if !revoked {
		t.Fatalf("token ID should be revoked")
	}

	// The denylist entry expires with the token.
	mr.FastForward(2 * time.Minute)
	revoked, err = revoker.IsRevoked("jti-1")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if revoked {
		t.Fatalf("expired entry should drop off the denylist")
	}

	// Non-positive TTL means the token is already expired; nothing to store.
	if err := revoker.Revoke("jti-2", 0); err != nil {
		t.Fatalf("revoke zero ttl: %v", err)
	}
	if revoked, _ := revoker.IsRevoked("jti-2"); revoked {
		t.Fatalf("zero ttl revoke should be a no-op")
	}
}
