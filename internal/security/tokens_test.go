package security

import (
	"strings"
	"testing"
	"time"
)

func newTestProvider(now time.Time) *TokenProvider {
	return NewTokenProvider([]byte("test-secret"), "test-issuer", time.Hour).WithClock(func() time.Time { return now })
}

func TestTokenProvider_IssueAndValidate(t *testing.T) {
	now := time.Now().UTC()
	p := newTestProvider(now)

	token, jti, exp, err := p.Issue("u1", "a@b.com", "ann")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" || jti == "" {
		t.Fatal("token or jti empty")
	}
	if !exp.After(now) {
		t.Fatalf("expiresAt %v not after now %v", exp, now)
	}

	claims, err := p.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "a@b.com" || claims.Username != "ann" || claims.ID != jti {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenProvider_ValidateRejects(t *testing.T) {
	now := time.Now().UTC()
	p := newTestProvider(now)
	token, _, _, err := p.Issue("u1", "a@b.com", "ann")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	testCases := []struct {
		name  string
		p     *TokenProvider
		token string
	}{
		{"garbage", p, "invalid-token"},
		{"other secret", NewTokenProvider([]byte("other"), "test-issuer", time.Hour), token},
		{"other issuer", NewTokenProvider([]byte("test-secret"), "someone-else", time.Hour), token},
		{"expired", p.WithClock(func() time.Time { return now.Add(2 * time.Hour) }), token},
		{"tampered", p, token[:len(token)-2] + "xx"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.p.Validate(tc.token); err != ErrInvalidToken {
				t.Errorf("Validate = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestExpiryFromToken(t *testing.T) {
	now := time.Now().UTC()
	token, _, exp, err := newTestProvider(now).Issue("u1", "a@b.com", "ann")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, ok := ExpiryFromToken(token)
	if !ok {
		t.Fatal("ExpiryFromToken should read exp")
	}
	if !got.Equal(exp) {
		t.Errorf("ExpiryFromToken = %v, want %v", got, exp)
	}

	for _, bad := range []string{"", "opaque-token", strings.Repeat("a", 10) + ".b.c"} {
		if _, ok := ExpiryFromToken(bad); ok {
			t.Errorf("ExpiryFromToken(%q) should fail", bad)
		}
	}
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("token-1")
	if h1 != HashToken("token-1") {
		t.Error("HashToken is not deterministic")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64", len(h1))
	}
	if h1 == HashToken("token-2") {
		t.Error("different tokens produced the same hash")
	}
}

func TestTokenProvider_WithTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProvider(now)
	long := p.WithTTL(24 * time.Hour)

	if p.TTL() != time.Hour {
		t.Errorf("original TTL = %v, want 1h", p.TTL())
	}
	_, _, exp, err := long.Issue("u1", "a@b.com", "ann")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if want := now.Add(24 * time.Hour); !exp.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", exp, want)
	}
}
