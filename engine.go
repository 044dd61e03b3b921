package profauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avandrel/profauth/internal"
	internalaudit "github.com/avandrel/profauth/internal/audit"
	"github.com/avandrel/profauth/jwt"
	"github.com/avandrel/profauth/password"
)

// Engine defines a public type used by profauth APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	store        Store
	notifier     Notifier
	stepUp       *stepUpGuard
	resetLimiter *resetLimiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	totp         *totpManager
	jwtManager   *jwt.Manager
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// BearerHeader returns the request header the middleware reads the bearer
// token for kind from.
func (e *Engine) BearerHeader(kind PrincipalKind) string {
	if e == nil {
		return ""
	}
	if kind == KindProfile {
		return e.config.Session.ProfileHeader
	}
	return e.config.Session.MasterHeader
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Absent principals, wrong passwords, and deactivated accounts are all
// reported as [ErrInvalidCredentials] so callers cannot probe which
// identifiers exist.
func (e *Engine) Login(ctx context.Context, kind PrincipalKind, identifier, pass string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || pass == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, kind, "", "", ErrInvalidCredentials, nil)
		return "", ErrInvalidCredentials
	}

	rec, err := e.store.FindByIdentifier(ctx, kind, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Burn a verify anyway so absent and present identifiers cost
			// the same wall time.
			_, _ = e.passwordHash.Verify(pass, dummyPasswordHash)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, kind, "", "", ErrInvalidCredentials, nil)
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	ok, err := e.passwordHash.Verify(pass, rec.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, kind, rec.ExternalID, "", ErrInvalidCredentials, nil)
		return "", ErrInvalidCredentials
	}

	if !rec.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, kind, rec.ExternalID, "", ErrPrincipalInactive, nil)
		return "", ErrInvalidCredentials
	}

	token, jti, err := e.issueSession(ctx, rec)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, kind, rec.ExternalID, "", err, nil)
		return "", err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, kind, rec.ExternalID, jti, nil, nil)

	return token, nil
}

// issueSession signs a fresh bearer token and writes the session row the
// token's jti points at. The row must exist before the token leaves the
// engine; a signed token without a row is dead on arrival.
func (e *Engine) issueSession(ctx context.Context, rec *PrincipalRecord) (string, string, error) {
	ttl := e.config.Session.TTLFor(rec.Kind)

	token, jti, err := e.jwtManager.Issue(rec.ExternalID, rec.Kind.String(), "", ttl)
	if err != nil {
		return "", "", err
	}

	now := time.Now().UTC()
	sess := &SessionRecord{
		JTI:          jti,
		Kind:         rec.Kind,
		PrincipalID:  rec.ID,
		SignedInAt:   now,
		LastActiveAt: now,
		DeviceHash:   internal.HashDevice(clientIPFromContext(ctx), userAgentFromContext(ctx)),
	}
	if err := e.store.CreateSession(ctx, sess); err != nil {
		return "", "", err
	}

	return token, jti, nil
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A structurally valid, correctly signed token is still rejected when its
// session row has been revoked. On success the session's last-active time
// and device fingerprint are refreshed before the identity is returned.
func (e *Engine) Validate(ctx context.Context, kind PrincipalKind, tokenStr string) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	identity, err := e.validate(ctx, kind, tokenStr)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		e.emitAudit(ctx, auditEventValidateFailure, false, kind, "", "", err, nil)
		return nil, err
	}

	e.metricInc(MetricValidateSuccess)
	if e.metrics != nil {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	return identity, nil
}

func (e *Engine) validate(ctx context.Context, kind PrincipalKind, tokenStr string) (*Identity, error) {
	claims, err := e.parseSessionToken(kind, tokenStr)
	if err != nil {
		return nil, err
	}

	sess, err := e.store.GetSession(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if sess.Kind != kind {
		return nil, ErrSessionNotFound
	}

	rec, err := e.store.FindByID(ctx, kind, sess.PrincipalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}
	if !rec.Active {
		return nil, ErrPrincipalInactive
	}

	// Touch on every validation, not only when the device changed: the
	// last-active column is the liveness signal operators reap stale
	// sessions by.
	device := internal.HashDevice(clientIPFromContext(ctx), userAgentFromContext(ctx))
	if err := e.store.TouchSession(ctx, claims.ID, time.Now().UTC(), device); err != nil {
		return nil, err
	}

	return &Identity{
		Kind:       kind,
		ID:         rec.ID,
		ExternalID: rec.ExternalID,
		Email:      rec.Email,
		JTI:        claims.ID,
	}, nil
}

// parseSessionToken verifies signature and registered claims and pins the
// token to the requested principal kind. Step-up capability tokens are
// rejected here; they never authenticate a primary surface.
func (e *Engine) parseSessionToken(kind PrincipalKind, tokenStr string) (*jwt.Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrNoToken
	}

	claims, err := e.jwtManager.Parse(tokenStr)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenInvalid
		}
	}

	if claims.ID == "" {
		return nil, ErrMissingJTI
	}
	if claims.Kind != kind.String() {
		return nil, ErrTokenInvalid
	}
	if claims.Scope != "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Logout is idempotent: revoking an already-revoked session succeeds.
func (e *Engine) Logout(ctx context.Context, kind PrincipalKind, tokenStr string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.parseSessionToken(kind, tokenStr)
	if err != nil {
		return err
	}

	if err := e.store.DeleteSession(ctx, claims.ID); err != nil {
		return err
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventLogoutSession, true, kind, claims.Subject, claims.ID, nil, nil)
	return nil
}

// RevokeAll describes the revokeall operation and its observable behavior.
//
// RevokeAll may return an error when input validation, dependency calls, or security checks fail.
// RevokeAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RevokeAll(ctx context.Context, ref PrincipalRef) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.store.DeleteSessionsForPrincipal(ctx, ref.Kind, ref.ID); err != nil {
		return err
	}

	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventRevokeAll, true, ref.Kind, ref.ExternalID, "", nil, nil)
	return nil
}

// dummyPasswordHash keeps the failure path through Login doing real argon2
// work when the identifier does not exist.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=3,p=2$" +
	"c2Vzc2lvbi1hdXRob3JpdHkhIQ==$" +
	"J1nMfOSforY0W4YiFNf1vTGLr7RX5mTHtf3i9aWJjGY="
