package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func newHS256Manager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("unit-test-secret"),
		Issuer:        "profauth",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestIssueAndParseRoundTripHS256(t *testing.T) {
	m := newHS256Manager(t)

	token, jti, err := m.Issue("ext-1", "master", "", time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if jti == "" {
		t.Fatal("expected non-empty jti")
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Subject != "ext-1" || claims.Kind != "master" || claims.ID != jti {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.Scope != "" {
		t.Fatalf("expected unscoped token, got scope %q", claims.Scope)
	}
}

func TestIssueAndParseRoundTripEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "profauth",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, _, err := m.Issue("ext-1", "profile", ScopeStepUp, time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Scope != ScopeStepUp || claims.Kind != "profile" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m := newHS256Manager(t)

	token, _, err := m.Issue("ext-1", "master", "", time.Millisecond)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := m.Parse(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	m := newHS256Manager(t)
	other, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("a-different-secret"),
		Issuer:        "profauth",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, _, err := other.Issue("ext-1", "master", "", time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	m := newHS256Manager(t)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := m.Parse(token); !errors.Is(err, ErrMalformed) {
			t.Fatalf("token %q: expected ErrMalformed, got %v", token, err)
		}
	}
}

func TestParseEnforcesIssuer(t *testing.T) {
	m := newHS256Manager(t)
	other, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("unit-test-secret"),
		Issuer:        "someone-else",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, _, err := other.Issue("ext-1", "master", "", time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for wrong issuer, got %v", err)
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	m := newHS256Manager(t)

	if _, _, err := m.Issue("", "master", "", time.Minute); err == nil {
		t.Fatal("expected error for empty subject")
	}
	if _, _, err := m.Issue("ext-1", "master", "", 0); err == nil {
		t.Fatal("expected error for non-positive TTL")
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing method", Config{PrivateKey: []byte("x")}},
		{"hs256 no key", Config{SigningMethod: MethodHS256}},
		{"ed25519 bad key", Config{SigningMethod: MethodEd25519, PrivateKey: []byte("short"), PublicKey: []byte("short")}},
		{"excessive leeway", Config{SigningMethod: MethodHS256, PrivateKey: []byte("x"), Leeway: 5 * time.Minute}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}
}
