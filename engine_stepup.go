package profauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avandrel/profauth/jwt"
)

// RequestStepUp describes the requeststepup operation and its observable behavior.
//
// RequestStepUp may return an error when input validation, dependency calls, or security checks fail.
// RequestStepUp does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The challenge code is computed from the principal's enrolled TOTP secret
// and delivered out of band. Repeat requests inside the cooldown window are
// rejected without delivering anything.
func (e *Engine) RequestStepUp(ctx context.Context, ref PrincipalRef, media Media) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if media == MediaSMS {
		return ErrSMSNotImplemented
	}
	if media != MediaEmail {
		return fmt.Errorf("unsupported delivery media %q", media)
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

	if err := e.rejectIfLockedOut(ctx, rec); err != nil {
		e.metricInc(MetricStepUpLockout)
		e.emitAudit(ctx, auditEventStepUpThrottled, false, ref.Kind, ref.ExternalID, "", err, nil)
		return err
	}

	ok, err := e.stepUp.MarkAsked(ctx, rec.ExternalID)
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricStepUpThrottled)
		e.emitAudit(ctx, auditEventStepUpThrottled, false, ref.Kind, ref.ExternalID, "", ErrOTPThrottled, nil)
		return ErrOTPThrottled
	}

	code, err := e.totp.CodeAt(rec.TOTPSecret, time.Now())
	if err != nil {
		return err
	}

	body := "Your verification code is " + code + ". It expires shortly."
	if err := e.notifier.Send(ctx, MediaEmail, rec.Email, "Verification code", body); err != nil {
		return err
	}

	e.metricInc(MetricStepUpRequested)
	e.emitAudit(ctx, auditEventStepUpRequested, true, ref.Kind, ref.ExternalID, "", nil, func() map[string]string {
		return map[string]string{"media": string(media)}
	})
	return nil
}

// ConfirmStepUp describes the confirmstepup operation and its observable behavior.
//
// ConfirmStepUp may return an error when input validation, dependency calls, or security checks fail.
// ConfirmStepUp does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Check order is fixed: lockout, then replay blacklist, then code
// verification. An accepted code is claimed into the blacklist with SETNX
// before the grant is minted, so out of any concurrent submissions of the
// same code exactly one confirms; the rest see ErrOTPReplayed.
func (e *Engine) ConfirmStepUp(ctx context.Context, ref PrincipalRef, code string) (*StepUpGrant, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	rec, err := e.store.FindByExternalID(ctx, ref.Kind, ref.ExternalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}
	if !rec.Active {
		return nil, ErrPrincipalInactive
	}

	if err := e.rejectIfLockedOut(ctx, rec); err != nil {
		e.metricInc(MetricStepUpLockout)
		e.emitAudit(ctx, auditEventStepUpLockout, false, ref.Kind, ref.ExternalID, "", err, nil)
		return nil, err
	}

	replayed, err := e.stepUp.IsBlacklisted(ctx, rec.ExternalID, code)
	if err != nil {
		return nil, err
	}
	if replayed {
		e.metricInc(MetricStepUpReplay)
		e.emitAudit(ctx, auditEventStepUpReplay, false, ref.Kind, ref.ExternalID, "", ErrOTPReplayed, nil)
		return nil, ErrOTPReplayed
	}

	ok, _, err := e.totp.VerifyCode(rec.TOTPSecret, code, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		count, ferr := e.stepUp.RecordFailure(ctx, rec.ExternalID)
		if ferr != nil {
			return nil, ferr
		}
		if count >= int64(e.config.StepUp.MaxAttempts) {
			e.lockoutAlert(ctx, rec)
			e.metricInc(MetricStepUpLockout)
			e.emitAudit(ctx, auditEventStepUpLockout, false, ref.Kind, ref.ExternalID, "", ErrOTPLockedOut, nil)
			return nil, ErrOTPLockedOut
		}
		e.metricInc(MetricStepUpFailure)
		e.emitAudit(ctx, auditEventStepUpFailure, false, ref.Kind, ref.ExternalID, "", ErrOTPInvalid, nil)
		return nil, ErrOTPInvalid
	}

	claimed, err := e.stepUp.ClaimCode(ctx, rec.ExternalID, code)
	if err != nil {
		return nil, err
	}
	if !claimed {
		e.metricInc(MetricStepUpReplay)
		e.emitAudit(ctx, auditEventStepUpReplay, false, ref.Kind, ref.ExternalID, "", ErrOTPReplayed, nil)
		return nil, ErrOTPReplayed
	}
	if err := e.stepUp.ResetAttempts(ctx, rec.ExternalID); err != nil {
		return nil, err
	}

	token, jti, err := e.jwtManager.Issue(rec.ExternalID, rec.Kind.String(), jwt.ScopeStepUp, e.config.StepUp.TokenTTL)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := e.stepUp.PutSession(ctx, jti, stepUpSession{
		Kind:       rec.Kind,
		ID:         rec.ID,
		ExternalID: rec.ExternalID,
		IssuedAt:   now.Unix(),
	}); err != nil {
		return nil, err
	}

	e.metricInc(MetricStepUpSuccess)
	e.emitAudit(ctx, auditEventStepUpConfirmed, true, ref.Kind, ref.ExternalID, jti, nil, nil)

	return &StepUpGrant{
		Token:     token,
		JTI:       jti,
		ExpiresAt: now.Add(e.config.StepUp.TokenTTL).UTC(),
	}, nil
}

// ValidateStepUp describes the validatestepup operation and its observable behavior.
//
// ValidateStepUp may return an error when input validation, dependency calls, or security checks fail.
// ValidateStepUp does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A step-up token is only as alive as its otp-sess key: once the key TTL
// lapses the token is rejected regardless of its embedded expiry.
func (e *Engine) ValidateStepUp(ctx context.Context, kind PrincipalKind, tokenStr string) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	if tokenStr == "" {
		return nil, ErrNoToken
	}

	claims, err := e.jwtManager.Parse(tokenStr)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if claims.ID == "" {
		return nil, ErrMissingJTI
	}
	if claims.Scope != jwt.ScopeStepUp || claims.Kind != kind.String() {
		return nil, ErrTokenInvalid
	}

	sess, err := e.stepUp.GetSession(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if sess.Kind != kind || sess.ExternalID != claims.Subject {
		return nil, ErrSessionNotFound
	}

	return &Identity{
		Kind:       sess.Kind,
		ID:         sess.ID,
		ExternalID: sess.ExternalID,
		JTI:        claims.ID,
	}, nil
}

// ConsumeStepUp revokes a step-up grant after the protected action it
// authorized has completed.
func (e *Engine) ConsumeStepUp(ctx context.Context, jti string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.stepUp.DeleteSession(ctx, jti)
}

func (e *Engine) rejectIfLockedOut(ctx context.Context, rec *PrincipalRecord) error {
	count, err := e.stepUp.Attempts(ctx, rec.ExternalID)
	if err != nil {
		return err
	}
	if count >= int64(e.config.StepUp.MaxAttempts) {
		e.lockoutAlert(ctx, rec)
		return ErrOTPLockedOut
	}
	return nil
}

// lockoutAlert sends the security alert email at most once per lock TTL.
// Delivery failures are swallowed; the lockout itself must not depend on
// the mailer being up.
func (e *Engine) lockoutAlert(ctx context.Context, rec *PrincipalRecord) {
	got, err := e.stepUp.AcquireAlertLock(ctx, rec.ExternalID)
	if err != nil || !got {
		return
	}

	body := "Too many incorrect verification codes were entered on your " +
		"account. Further attempts are blocked for a while. If this was not " +
		"you, change your password now."
	_ = e.notifier.Send(ctx, MediaEmail, rec.Email, "Security alert", body)
}
