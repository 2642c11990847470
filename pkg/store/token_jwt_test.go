package store

import (
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokenStore(t *testing.T, revoker TokenRevoker, opts JWTOptions) *JWTTokenStore {
	t.Helper()
	s, err := NewJWTTokenStore(testSecret, time.Minute, revoker, opts)
	if err != nil {
		t.Fatalf("new token store: %v", err)
	}
	return s
}

func TestJWTTokenStoreRoundTrip(t *testing.T) {
	s := newTestTokenStore(t, nil, JWTOptions{})
	token, err := s.NewToken("user-1")
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	userID, ok, err := s.GetUserIDByToken(token)
	if err != nil || !ok {
		t.Fatalf("verify token: ok=%v err=%v", ok, err)
	}
	if userID != "user-1" {
		t.Fatalf("subject = %q, want user-1", userID)
	}
}

func TestJWTTokenStoreRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTTokenStore("short", time.Minute, nil, JWTOptions{}); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}

func TestJWTTokenStoreEnforcesAudience(t *testing.T) {
	signing := newTestTokenStore(t, nil, JWTOptions{Audience: "aud-a"})
	verify := newTestTokenStore(t, nil, JWTOptions{Audience: "aud-b"})

	token, err := signing.NewToken("user-1")
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if _, _, err := verify.GetUserIDByToken(token); err == nil {
		t.Fatalf("expected audience mismatch to fail")
	}
}

func TestJWTTokenStoreRejectsOtherSecretAndAlgorithm(t *testing.T) {
	s := newTestTokenStore(t, nil, JWTOptions{})
	other, err := NewJWTTokenStore(strings.Repeat("x", 32), time.Minute, nil, JWTOptions{})
	if err != nil {
		t.Fatalf("new token store: %v", err)
	}
	token, _ := other.NewToken("user-1")
	if _, ok, err := s.GetUserIDByToken(token); err == nil || ok {
		t.Fatalf("expected foreign signature to fail")
	}

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(raw); err == nil || ok {
		t.Fatalf("expected alg=none token to fail")
	}
}

func TestJWTTokenStoreRevokeWithMemoryRevoker(t *testing.T) {
	s := newTestTokenStore(t, NewMemoryTokenRevoker(), JWTOptions{})
	token, err := s.NewToken("user-1")
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if err := s.RevokeToken(token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(token); err == nil || ok {
		t.Fatalf("expected revoked token to fail, ok=%v err=%v", ok, err)
	}
	if err := s.RevokeToken("garbage"); err != nil {
		t.Fatalf("revoking an invalid token should be ignored: %v", err)
	}
}

func TestJWTTokenStoreRevokeWithRedisRevoker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := newTestTokenStore(t, NewRedisTokenRevoker(client), JWTOptions{})
	token, err := s.NewToken("user-1")
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(token); err != nil || !ok {
		t.Fatalf("expected token to verify before revoke: ok=%v err=%v", ok, err)
	}
	if err := s.RevokeToken(token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(token); err == nil || ok {
		t.Fatalf("expected revoked token to fail")
	}

	mr.FastForward(2 * time.Minute)
	keys := mr.Keys()
	if len(keys) != 0 {
		t.Fatalf("expected revocation entries to expire, got %v", keys)
	}
}

func TestMemoryTokenRevokerExpires(t *testing.T) {
	r := NewMemoryTokenRevoker()
	if err := r.Revoke("jti", time.Millisecond); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	revoked, err := r.IsRevoked("jti")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if revoked {
		t.Fatalf("expected revocation to expire")
	}
	if err := r.Revoke("jti", 0); err != nil {
		t.Fatalf("revoke zero ttl: %v", err)
	}
	if revoked, _ := r.IsRevoked("jti"); revoked {
		t.Fatalf("zero ttl must not revoke")
	}
}
