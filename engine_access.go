package profauth

import (
	"context"
	"errors"

	"github.com/avandrel/profauth/internal"
)

// CreateProfile describes the createprofile operation and its observable behavior.
//
// CreateProfile may return an error when input validation, dependency calls, or security checks fail.
// CreateProfile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The profile row and the owner's delegation edge commit in one
// transaction; an orphaned profile with no owning master cannot exist.
func (e *Engine) CreateProfile(
	ctx context.Context,
	owner PrincipalRef,
	email, pass string,
	publicAttributes []string,
	sortOrder int,
) (*PrincipalRecord, *TOTPProvision, error) {
	if e == nil {
		return nil, nil, ErrEngineNotReady
	}
	if owner.Kind != KindMaster {
		return nil, nil, ErrNoAccess
	}

	master, err := e.store.FindByExternalID(ctx, KindMaster, owner.ExternalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrPrincipalNotFound
		}
		return nil, nil, err
	}
	if !master.Active {
		return nil, nil, ErrPrincipalInactive
	}

	if err := e.checkPasswordPolicy(pass); err != nil {
		return nil, nil, err
	}

	hash, err := e.passwordHash.Hash(pass)
	if err != nil {
		return nil, nil, err
	}

	secret, secretB32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, nil, err
	}

	input := CreateProfileInput{
		ExternalID:       internal.NewExternalID(),
		Email:            email,
		PasswordHash:     hash,
		TOTPSecret:       secret,
		PublicAttributes: publicAttributes,
		OwnerID:          master.ID,
		SortOrder:        sortOrder,
	}

	var rec *PrincipalRecord
	err = e.store.WithinTx(ctx, func(tx Store) error {
		created, err := tx.CreateProfile(ctx, input)
		if err != nil {
			return err
		}
		if err := tx.UpsertEdge(ctx, master.ID, created.ID, sortOrder); err != nil {
			return err
		}
		rec = created
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, nil, ErrDuplicateIdentifier
		}
		return nil, nil, err
	}

	e.metricInc(MetricProfileCreated)
	e.emitAudit(ctx, auditEventProfileCreated, true, KindProfile, rec.ExternalID, "", nil, func() map[string]string {
		return map[string]string{"owner": master.ExternalID}
	})

	return rec, &TOTPProvision{
		Secret: secretB32,
		URI:    e.totp.ProvisionURI(secretB32, email),
	}, nil
}

// GrantAccess describes the grantaccess operation and its observable behavior.
//
// GrantAccess may return an error when input validation, dependency calls, or security checks fail.
// GrantAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Granting an edge that already exists succeeds without change.
func (e *Engine) GrantAccess(ctx context.Context, owner PrincipalRef, profileExternalID string, sortOrder int) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if owner.Kind != KindMaster {
		return ErrNoAccess
	}

	master, err := e.store.FindByExternalID(ctx, KindMaster, owner.ExternalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrPrincipalNotFound
		}
		return err
	}
	if !master.Active {
		return ErrPrincipalInactive
	}

	profile, err := e.store.FindByExternalID(ctx, KindProfile, profileExternalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrPrincipalNotFound
		}
		return err
	}

	if err := e.store.UpsertEdge(ctx, master.ID, profile.ID, sortOrder); err != nil {
		return err
	}

	e.metricInc(MetricAccessGranted)
	e.emitAudit(ctx, auditEventAccessGranted, true, KindMaster, master.ExternalID, "", nil, func() map[string]string {
		return map[string]string{"profile": profile.ExternalID}
	})
	return nil
}

// CheckAccess describes the checkaccess operation and its observable behavior.
//
// CheckAccess may return an error when input validation, dependency calls, or security checks fail.
// CheckAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A missing profile and a missing edge both come back as [ErrNoAccess];
// callers cannot distinguish "profile does not exist" from "not yours".
func (e *Engine) CheckAccess(ctx context.Context, owner PrincipalRef, profileExternalID string) (*PrincipalRecord, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if owner.Kind != KindMaster {
		return nil, ErrNoAccess
	}

	profile, err := e.store.FindByExternalID(ctx, KindProfile, profileExternalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricAccessDenied)
			e.emitAudit(ctx, auditEventAccessDenied, false, KindMaster, owner.ExternalID, "", ErrNoAccess, nil)
			return nil, ErrNoAccess
		}
		return nil, err
	}

	if _, err := e.store.GetEdge(ctx, owner.ID, profile.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricAccessDenied)
			e.emitAudit(ctx, auditEventAccessDenied, false, KindMaster, owner.ExternalID, "", ErrNoAccess, nil)
			return nil, ErrNoAccess
		}
		return nil, err
	}

	return profile, nil
}

// ListProfiles describes the listprofiles operation and its observable behavior.
//
// ListProfiles may return an error when input validation, dependency calls, or security checks fail.
// ListProfiles does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Results follow the per-edge sort order set at grant time.
func (e *Engine) ListProfiles(ctx context.Context, owner PrincipalRef) ([]*PrincipalRecord, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if owner.Kind != KindMaster {
		return nil, ErrNoAccess
	}

	edges, err := e.store.ListEdges(ctx, owner.ID)
	if err != nil {
		return nil, err
	}

	out := make([]*PrincipalRecord, 0, len(edges))
	for _, edge := range edges {
		rec, err := e.store.FindByID(ctx, KindProfile, edge.ProfileID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
