package profauth

import (
	"context"
	"errors"
	"testing"
)

func TestCreateProfileCreatesRowAndEdge(t *testing.T) {
	engine, store, _, _, done := newTestEngine(t)
	defer done()

	master := seedPrincipal(t, engine, store, KindMaster, "owner@example.com", "correct-horse-battery")

	rec, provision, err := engine.CreateProfile(context.Background(), master.Ref(), "kid@example.com", "profile-pass-123", []string{"avatar:dino"}, 2)
	if err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	if rec.Kind != KindProfile {
		t.Fatalf("expected profile kind, got %v", rec.Kind)
	}
	if provision == nil || provision.Secret == "" || provision.URI == "" {
		t.Fatal("expected a usable enrollment provision")
	}

	got, err := engine.CheckAccess(context.Background(), master.Ref(), rec.ExternalID)
	if err != nil {
		t.Fatalf("CheckAccess after create failed: %v", err)
	}
	if got.ID != rec.ID {
		t.Fatalf("expected profile %d, got %d", rec.ID, got.ID)
	}

	// The new profile can sign in on its own surface.
	if _, err := engine.Login(context.Background(), KindProfile, "kid@example.com", "profile-pass-123"); err != nil {
		t.Fatalf("profile login failed: %v", err)
	}
}

func TestCreateProfileRejectsDuplicateEmail(t *testing.T) {
	engine, store, _, _, done := newTestEngine(t)
	defer done()

	master := seedPrincipal(t, engine, store, KindMaster, "owner@example.com", "correct-horse-battery")

	if _, _, err := engine.CreateProfile(context.Background(), master.Ref(), "kid@example.com", "profile-pass-123", nil, 0); err != nil {
		t.Fatalf("first CreateProfile failed: %v", err)
	}
	if _, _, err := engine.CreateProfile(context.Background(), master.Ref(), "kid@example.com", "profile-pass-123", nil, 1); !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}
}

func TestCreateProfileRequiresMasterOwner(t *testing.T) {
	engine, store, _, _, done := newTestEngine(t)
	defer done()

	profile := seedPrincipal(t, engine, store, KindProfile, "kid@example.com", "profile-pass-123")

	if _, _, err := engine.CreateProfile(context.Background(), profile.Ref(), "other@example.com", "profile-pass-123", nil, 0); !errors.Is(err, ErrNoAccess) {
		t.Fatalf("expected ErrNoAccess for profile owner, got %v", err)
	}
}

func TestCheckAccessDeniesWithoutEdge(t *testing.T) {
	engine, store, _, _, done := newTestEngine(t)
	defer done()

	master := seedPrincipal(t, engine, store, KindMaster, "owner@example.com", "correct-horse-battery")
	other := seedPrincipal(t, engine, store, KindMaster, "rival@example.com", "correct-horse-battery")

	rec, _, err := engine.CreateProfile(context.Background(), master.Ref(), "kid@example.com", "profile-pass-123", nil, 0)
	if err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	// No edge for the other master, and a profile that does not exist at
	// all, must be indistinguishable to the caller.
	if _, err := engine.CheckAccess(context.Background(), other.Ref(), rec.ExternalID); !errors.Is(err, ErrNoAccess) {
		t.Fatalf("expected ErrNoAccess without edge, got %v", err)
	}
	if _, err := engine.CheckAccess(context.Background(), other.Ref(), "no-such-profile"); !errors.Is(err, ErrNoAccess) {
		t.Fatalf("expected ErrNoAccess for missing profile, got %v", err)
	}
}

func TestGrantAccessOpensTheEdge(t *testing.T) {
	engine, store, _, _, done := newTestEngine(t)
	defer done()

	master := seedPrincipal(t, engine, store, KindMaster, "owner@example.com", "correct-horse-battery")
	other := seedPrincipal(t, engine, store, KindMaster, "coparent@example.com", "correct-horse-battery")

	rec, _, err := engine.CreateProfile(context.Background(), master.Ref(), "kid@example.com", "profile-pass-123", nil, 0)
	if err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	if _, err := engine.CheckAccess(context.Background(), other.Ref(), rec.ExternalID); !errors.Is(err, ErrNoAccess) {
		t.Fatalf("expected ErrNoAccess before grant, got %v", err)
	}

	if err := engine.GrantAccess(context.Background(), other.Ref(), rec.ExternalID, 0); err != nil {
		t.Fatalf("GrantAccess failed: %v", err)
	}
	// Idempotent re-grant.
	if err := engine.GrantAccess(context.Background(), other.Ref(), rec.ExternalID, 1); err != nil {
		t.Fatalf("repeated GrantAccess failed: %v", err)
	}

	if _, err := engine.CheckAccess(context.Background(), other.Ref(), rec.ExternalID); err != nil {
		t.Fatalf("CheckAccess after grant failed: %v", err)
	}
}

func TestListProfilesFollowsSortOrder(t *testing.T) {
	engine, store, _, _, done := newTestEngine(t)
	defer done()

	master := seedPrincipal(t, engine, store, KindMaster, "owner@example.com", "correct-horse-battery")

	second, _, err := engine.CreateProfile(context.Background(), master.Ref(), "second@example.com", "profile-pass-123", nil, 2)
	if err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	first, _, err := engine.CreateProfile(context.Background(), master.Ref(), "first@example.com", "profile-pass-123", nil, 1)
	if err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	got, err := engine.ListProfiles(context.Background(), master.Ref())
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(got))
	}
	if got[0].ID != first.ID || got[1].ID != second.ID {
		t.Fatalf("expected order [%d %d], got [%d %d]", first.ID, second.ID, got[0].ID, got[1].ID)
	}
}

func TestListProfilesEmptyForNewMaster(t *testing.T) {
	engine, store, _, _, done := newTestEngine(t)
	defer done()

	master := seedPrincipal(t, engine, store, KindMaster, "owner@example.com", "correct-horse-battery")

	got, err := engine.ListProfiles(context.Background(), master.Ref())
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no profiles, got %d", len(got))
	}
}
