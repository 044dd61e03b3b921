package profauth

import (
	"context"
	"errors"
	"strings"

	"github.com/avandrel/profauth/internal"
)

const lifecycleCodeDigits = 6

// RegisterMaster describes the registermaster operation and its observable behavior.
//
// RegisterMaster may return an error when input validation, dependency calls, or security checks fail.
// RegisterMaster does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// New master accounts start inactive and cannot log in until the emailed
// confirmation code is redeemed. The returned provision carries the TOTP
// enrollment secret; it is shown exactly once.
func (e *Engine) RegisterMaster(ctx context.Context, email, phone, pass string) (*PrincipalRecord, *TOTPProvision, error) {
	if e == nil {
		return nil, nil, ErrEngineNotReady
	}

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, ErrInvalidCredentials
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

	rec, err := e.store.CreateMaster(ctx, CreateMasterInput{
		ExternalID:   internal.NewExternalID(),
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		TOTPSecret:   secret,
		Active:       false,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, nil, ErrDuplicateIdentifier
		}
		return nil, nil, err
	}

	code, err := internal.NewNumericCode(lifecycleCodeDigits)
	if err != nil {
		return nil, nil, err
	}
	if err := e.store.SetOneTimeCode(ctx, rec.Ref(), CodeEmailConfirm, internal.HashCode(code)); err != nil {
		return nil, nil, err
	}

	body := "Your confirmation code is " + code + ". Enter it to activate your account."
	if err := e.notifier.Send(ctx, MediaEmail, email, "Confirm your email", body); err != nil {
		return nil, nil, err
	}

	e.metricInc(MetricMasterRegistered)
	e.emitAudit(ctx, auditEventMasterRegistered, true, KindMaster, rec.ExternalID, "", nil, nil)

	return rec, &TOTPProvision{
		Secret: secretB32,
		URI:    e.totp.ProvisionURI(secretB32, email),
	}, nil
}

// ConfirmEmail describes the confirmemail operation and its observable behavior.
//
// ConfirmEmail may return an error when input validation, dependency calls, or security checks fail.
// ConfirmEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The code is single use; consuming it activates the account.
func (e *Engine) ConfirmEmail(ctx context.Context, code string) (*PrincipalRecord, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrConfirmInvalid
	}

	rec, err := e.store.ConsumeOneTimeCode(ctx, KindMaster, CodeEmailConfirm, internal.HashCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.emitAudit(ctx, auditEventEmailConfirmed, false, KindMaster, "", "", ErrConfirmInvalid, nil)
			return nil, ErrConfirmInvalid
		}
		return nil, err
	}

	if err := e.store.SetActive(ctx, rec.Ref(), true); err != nil {
		return nil, err
	}
	rec.Active = true

	e.metricInc(MetricEmailConfirmed)
	e.emitAudit(ctx, auditEventEmailConfirmed, true, KindMaster, rec.ExternalID, "", nil, nil)
	return rec, nil
}

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A successful change revokes every live session for the principal; the
// caller must log in again with the new password.
func (e *Engine) ChangePassword(ctx context.Context, ref PrincipalRef, oldPass, newPass string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	rec, err := e.store.FindByExternalID(ctx, ref.Kind, ref.ExternalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrPrincipalNotFound
		}
		return err
	}
	if !rec.Active {
		return ErrPrincipalInactive
	}

	ok, err := e.passwordHash.Verify(oldPass, rec.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, auditEventPasswordChanged, false, ref.Kind, rec.ExternalID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if err := e.checkPasswordPolicy(newPass); err != nil {
		return err
	}
	if same, err := e.passwordHash.Verify(newPass, rec.PasswordHash); err == nil && same {
		e.emitAudit(ctx, auditEventPasswordChanged, false, ref.Kind, rec.ExternalID, "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	newHash, err := e.passwordHash.Hash(newPass)
	if err != nil {
		return err
	}
	if err := e.store.UpdatePasswordHash(ctx, rec.Ref(), newHash); err != nil {
		return err
	}
	if err := e.store.DeleteSessionsForPrincipal(ctx, rec.Kind, rec.ID); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChanged)
	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventPasswordChanged, true, ref.Kind, rec.ExternalID, "", nil, nil)
	return nil
}

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// RequestPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Requests for unknown identifiers succeed silently so the endpoint cannot
// be used to enumerate accounts. Known identifiers are throttled per the
// configured window.
func (e *Engine) RequestPasswordReset(ctx context.Context, kind PrincipalKind, identifier string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	rec, err := e.store.FindByIdentifier(ctx, kind, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, kind, "", "", ErrPrincipalNotFound, nil)
			return nil
		}
		return err
	}

	allowed, err := e.resetLimiter.Allow(ctx, rec.ExternalID)
	if err != nil {
		return err
	}
	if !allowed {
		e.metricInc(MetricPasswordResetThrottled)
		e.emitAudit(ctx, auditEventPasswordResetThrottled, false, kind, rec.ExternalID, "", ErrResetThrottled, nil)
		return ErrResetThrottled
	}

	code, err := internal.NewNumericCode(lifecycleCodeDigits)
	if err != nil {
		return err
	}
	if err := e.store.SetOneTimeCode(ctx, rec.Ref(), CodePasswordReset, internal.HashCode(code)); err != nil {
		return err
	}

	body := "Your password reset code is " + code + ". If you did not request this, ignore this message."
	if err := e.notifier.Send(ctx, MediaEmail, rec.Email, "Password reset", body); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, kind, rec.ExternalID, "", nil, nil)
	return nil
}

// ConfirmPasswordReset describes the confirmpasswordreset operation and its observable behavior.
//
// ConfirmPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// ConfirmPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Redeeming the code sets the new password and revokes every live session.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, kind PrincipalKind, code, newPass string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.checkPasswordPolicy(newPass); err != nil {
		return err
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return ErrResetInvalid
	}

	rec, err := e.store.ConsumeOneTimeCode(ctx, kind, CodePasswordReset, internal.HashCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetConfirmed, false, kind, "", "", ErrResetInvalid, nil)
			return ErrResetInvalid
		}
		return err
	}

	newHash, err := e.passwordHash.Hash(newPass)
	if err != nil {
		return err
	}
	if err := e.store.UpdatePasswordHash(ctx, rec.Ref(), newHash); err != nil {
		return err
	}
	if err := e.store.DeleteSessionsForPrincipal(ctx, rec.Kind, rec.ID); err != nil {
		return err
	}
	if err := e.resetLimiter.Reset(ctx, rec.ExternalID); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetConfirmed)
	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventPasswordResetConfirmed, true, kind, rec.ExternalID, "", nil, nil)
	return nil
}

// Deactivate describes the deactivate operation and its observable behavior.
//
// Deactivate may return an error when input validation, dependency calls, or security checks fail.
// Deactivate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Deactivation revokes every live session; the account stops
// authenticating immediately on every surface.
func (e *Engine) Deactivate(ctx context.Context, ref PrincipalRef) error {
	if e == nil {
		return ErrEngineNotReady
	}

	rec, err := e.store.FindByExternalID(ctx, ref.Kind, ref.ExternalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrPrincipalNotFound
		}
		return err
	}

	if err := e.store.SetActive(ctx, rec.Ref(), false); err != nil {
		return err
	}
	if err := e.store.DeleteSessionsForPrincipal(ctx, rec.Kind, rec.ID); err != nil {
		return err
	}

	e.metricInc(MetricPrincipalDeactivated)
	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventPrincipalDeactivated, true, ref.Kind, rec.ExternalID, "", nil, nil)
	return nil
}

func (e *Engine) checkPasswordPolicy(pass string) error {
	if len(pass) < e.config.Password.MinLength || len(pass) > e.config.Password.MaxLength {
		return ErrPasswordPolicy
	}
	return nil
}
