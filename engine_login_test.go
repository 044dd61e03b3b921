package profauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginIssuesValidatableToken(t *testing.T) {
	engine, store, _, _, done := newTestEngine(t)
	defer done()

	rec := seedPrincipal(t, engine, store, KindMaster, "alice@example.com", "correct-horse-battery")

	token, err := engine.Login(context.Background(), KindMaster, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected token")
	}

	identity, err := engine.Validate(context.Background(), KindMaster, token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if identity.ExternalID != rec.ExternalID {
		t.Fatalf("expected external id %s, got %s", rec.ExternalID, identity.ExternalID)
	}
	if identity.Kind != KindMaster {
		t.Fatalf("expected master identity, got %s", identity.Kind)
	}
	if identity.JTI == "" {
		t.Fatal("expected jti on identity")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	engine, store, _, _, done := newTestEngine(t)
	defer done()

	seedPrincipal(t, engine, store, KindMaster, "alice@example.com", "correct-horse-battery")

	cases := []struct {
		name       string
		identifier string
		password   string
	}{
		{"wrong password", "alice@example.com", "wrong-horse-battery"},
		{"unknown identifier", "nobody@example.com", "correct-horse-battery"},
		{"empty password", "alice@example.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Login(context.Background(), KindMaster, tc.identifier, tc.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestLoginRejectsInactivePrincipal(t *testing.T) {
	engine, store, _, _, done := newTestEngine(t)
	defer done()

	rec := seedPrincipal(t, engine, store, KindMaster, "alice@example.com", "correct-horse-battery")
	if err := store.SetActive(context.Background(), rec.Ref(), false); err != nil {
		t.Fatal(err)
	}

	_, err := engine.Login(context.Background(), KindMaster, "alice@example.com", "correct-horse-battery")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for inactive account, got %v", err)
	}
}

func TestValidateRejectsRevokedSession(t *testing.T) {
	engine, _, _, _, done := newTestEngine(t)
	defer done()

	store := engine.store.(*fakeStore)
	seedPrincipal(t, engine, store, KindMaster, "alice@example.com", "correct-horse-battery")

	token, err := engine.Login(context.Background(), KindMaster, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.Logout(context.Background(), KindMaster, token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	// Token is still correctly signed and unexpired; revocation alone must
	// reject it.
	if _, err := engine.Validate(context.Background(), KindMaster, token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}
}

func TestValidateRejectsCrossKindToken(t *testing.T) {
	engine, store, _, _, done := newTestEngine(t)
	defer done()

	seedPrincipal(t, engine, store, KindMaster, "alice@example.com", "correct-horse-battery")

	token, err := engine.Login(context.Background(), KindMaster, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := engine.Validate(context.Background(), KindProfile, token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid on the profile surface, got %v", err)
	}
}

func TestValidateTouchesSession(t *testing.T) {
	engine, store, _, _, done := newTestEngine(t)
	defer done()

	seedPrincipal(t, engine, store, KindMaster, "alice@example.com", "correct-horse-battery")

	token, err := engine.Login(context.Background(), KindMaster, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	identity, err := engine.Validate(context.Background(), KindMaster, token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	before, err := store.GetSession(context.Background(), identity.JTI)
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	ctx = WithUserAgent(ctx, "test-agent/1.0")
	if _, err := engine.Validate(ctx, KindMaster, token); err != nil {
		t.Fatalf("second Validate failed: %v", err)
	}

	after, err := store.GetSession(context.Background(), identity.JTI)
	if err != nil {
		t.Fatal(err)
	}
	if !after.LastActiveAt.After(before.LastActiveAt) {
		t.Fatal("expected last active to advance on every validation")
	}
	if after.DeviceHash == ([32]byte{}) {
		t.Fatal("expected device hash recorded from request context")
	}
}

func TestValidateRejectsGarbageAndEmptyTokens(t *testing.T) {
	engine, _, _, _, done := newTestEngine(t)
	defer done()

	if _, err := engine.Validate(context.Background(), KindMaster, ""); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if _, err := engine.Validate(context.Background(), KindMaster, "not.a.jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	engine, store, _, _, done := newTestEngine(t)
	defer done()

	seedPrincipal(t, engine, store, KindMaster, "alice@example.com", "correct-horse-battery")

	token, err := engine.Login(context.Background(), KindMaster, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.Logout(context.Background(), KindMaster, token); err != nil {
		t.Fatalf("first Logout failed: %v", err)
	}
	if err := engine.Logout(context.Background(), KindMaster, token); err != nil {
		t.Fatalf("repeated Logout must succeed, got %v", err)
	}
}

func TestRevokeAllDropsEverySession(t *testing.T) {
	engine, store, _, _, done := newTestEngine(t)
	defer done()

	rec := seedPrincipal(t, engine, store, KindMaster, "alice@example.com", "correct-horse-battery")

	var tokens []string
	for i := 0; i < 3; i++ {
		token, err := engine.Login(context.Background(), KindMaster, "alice@example.com", "correct-horse-battery")
		if err != nil {
			t.Fatalf("Login %d failed: %v", i, err)
		}
		tokens = append(tokens, token)
	}
	if got := store.sessionCount(KindMaster, rec.ID); got != 3 {
		t.Fatalf("expected 3 sessions, got %d", got)
	}

	if err := engine.RevokeAll(context.Background(), rec.Ref()); err != nil {
		t.Fatalf("RevokeAll failed: %v", err)
	}

	for i, token := range tokens {
		if _, err := engine.Validate(context.Background(), KindMaster, token); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("token %d: expected ErrSessionNotFound, got %v", i, err)
		}
	}
}

func TestSessionTTLPerKind(t *testing.T) {
	cfg := engineTestConfig()
	if cfg.Session.TTLFor(KindMaster) <= cfg.Session.TTLFor(KindProfile) {
		t.Fatal("master sessions must outlive profile sessions")
	}
}
