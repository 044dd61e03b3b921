package profauth

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	internalaudit "github.com/avandrel/profauth/internal/audit"
)

// PrincipalKind distinguishes the two authenticatable identity kinds served
// by the engine. Sessions, tokens, and EKVS entries are always scoped to a
// kind; the two kinds never share a keyspace.
type PrincipalKind uint8

const (
	// KindMaster is an exported constant or variable used by the session authority.
	KindMaster PrincipalKind = iota
	// KindProfile is an exported constant or variable used by the session authority.
	KindProfile
)

// String describes the string operation and its observable behavior.
func (k PrincipalKind) String() string {
	if k == KindProfile {
		return "profile"
	}
	return "master"
}

// PrincipalRef is the minimal reference that flows through the token service
// and session store: one generic {kind, internal key, external id} triple
// instead of kind-specific types.
type PrincipalRef struct {
	Kind       PrincipalKind
	ID         int64
	ExternalID string
}

// PrincipalRecord is the full account record returned by [Store] lookups.
// It carries the credential hash, activation flag, TOTP secret, and the
// profile-only visibility attributes. The credential hash never leaves the
// engine boundary.
type PrincipalRecord struct {
	ID           int64
	ExternalID   string
	Kind         PrincipalKind
	Email        string
	Phone        string
	PasswordHash string
	Active       bool
	TOTPSecret   []byte

	// PublicAttributes lists the optional profile fields exposed to peers.
	// Empty for master principals.
	PublicAttributes []string
}

// Ref returns the principal reference triple for r.
func (r *PrincipalRecord) Ref() PrincipalRef {
	return PrincipalRef{Kind: r.Kind, ID: r.ID, ExternalID: r.ExternalID}
}

// SessionRecord is one row per issued bearer token, keyed by jti. It is the
// sole source of revocation truth: a correctly signed token with no matching
// row is rejected unconditionally.
type SessionRecord struct {
	JTI          string
	Kind         PrincipalKind
	PrincipalID  int64
	SignedInAt   time.Time
	LastActiveAt time.Time
	DeviceHash   [32]byte
}

// Edge is the ownership association granting a master principal access to a
// profile. At most one edge exists per (master, profile) pair.
type Edge struct {
	MasterID  int64
	ProfileID int64
	SortOrder int
}

// Identity is returned by [Engine.Validate]. It identifies the authenticated
// principal and the session (jti) the request rode in on.
type Identity struct {
	Kind       PrincipalKind
	ID         int64
	ExternalID string
	Email      string
	JTI        string
}

// Ref returns the principal reference triple for id.
func (id *Identity) Ref() PrincipalRef {
	return PrincipalRef{Kind: id.Kind, ID: id.ID, ExternalID: id.ExternalID}
}

// CodePurpose selects which one-time code slot a store operation targets.
type CodePurpose uint8

const (
	// CodeEmailConfirm is an exported constant or variable used by the session authority.
	CodeEmailConfirm CodePurpose = iota
	// CodePasswordReset is an exported constant or variable used by the session authority.
	CodePasswordReset
)

// CreateMasterInput is the input for [Store.CreateMaster].
type CreateMasterInput struct {
	ExternalID   string
	Email        string
	Phone        string
	PasswordHash string
	TOTPSecret   []byte
	Active       bool
}

// CreateProfileInput is the input for [Store.CreateProfile]. OwnerID names
// the master principal the ownership edge is granted to; profile row and
// edge are written in the same transaction.
type CreateProfileInput struct {
	ExternalID       string
	Email            string
	PasswordHash     string
	TOTPSecret       []byte
	PublicAttributes []string
	OwnerID          int64
	SortOrder        int
}

// PrincipalStore is the relational collaborator surface for principal
// records. Implementations must return [ErrNotFound] for absent rows,
// [ErrDuplicate] for unique-key violations, and wrap infrastructure
// failures in [ErrStoreUnavailable].
type PrincipalStore interface {
	FindByIdentifier(ctx context.Context, kind PrincipalKind, identifier string) (*PrincipalRecord, error)
	FindByExternalID(ctx context.Context, kind PrincipalKind, externalID string) (*PrincipalRecord, error)
	FindByID(ctx context.Context, kind PrincipalKind, id int64) (*PrincipalRecord, error)
	CreateMaster(ctx context.Context, input CreateMasterInput) (*PrincipalRecord, error)
	CreateProfile(ctx context.Context, input CreateProfileInput) (*PrincipalRecord, error)
	UpdatePasswordHash(ctx context.Context, ref PrincipalRef, newHash string) error
	SetActive(ctx context.Context, ref PrincipalRef, active bool) error
	SetOneTimeCode(ctx context.Context, ref PrincipalRef, purpose CodePurpose, codeHash [32]byte) error
	ConsumeOneTimeCode(ctx context.Context, kind PrincipalKind, purpose CodePurpose, codeHash [32]byte) (*PrincipalRecord, error)
}

// SessionStore is the relational collaborator surface for session rows.
// DeleteSession and DeleteSessionsForPrincipal are idempotent: deleting a
// missing row is not an error.
type SessionStore interface {
	CreateSession(ctx context.Context, rec *SessionRecord) error
	GetSession(ctx context.Context, jti string) (*SessionRecord, error)
	TouchSession(ctx context.Context, jti string, lastActive time.Time, deviceHash [32]byte) error
	DeleteSession(ctx context.Context, jti string) error
	DeleteSessionsForPrincipal(ctx context.Context, kind PrincipalKind, principalID int64) error
}

// EdgeStore is the relational collaborator surface for ownership edges.
// UpsertEdge is idempotent: inserting an existing (master, profile) pair is
// a no-op.
type EdgeStore interface {
	UpsertEdge(ctx context.Context, masterID, profileID int64, sortOrder int) error
	GetEdge(ctx context.Context, masterID, profileID int64) (*Edge, error)
	ListEdges(ctx context.Context, masterID int64) ([]Edge, error)
}

// Store is the aggregate relational persistence collaborator consumed by the
// engine. WithinTx runs fn against a transactional view of the same store;
// any error from fn rolls the transaction back.
type Store interface {
	PrincipalStore
	SessionStore
	EdgeStore
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// Media selects the delivery channel for step-up challenges and lifecycle
// notifications.
type Media string

const (
	// MediaEmail is an exported constant or variable used by the session authority.
	MediaEmail Media = "email"
	// MediaSMS is an exported constant or variable used by the session authority.
	MediaSMS Media = "sms"
)

// Notifier is the outbound notification collaborator consumed by the engine
// for OTP delivery, reset codes, and security alerts. Implementations that
// do not support a media value must fail loudly; see [ErrSMSNotImplemented].
type Notifier interface {
	Send(ctx context.Context, media Media, recipient, subject, body string) error
}

// StepUpGrant is returned by [Engine.ConfirmStepUp]. The token is a
// short-lived capability recorded only in the EKVS, never in the relational
// session store.
type StepUpGrant struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// TOTPProvision holds the raw TOTP secret and otpauth:// URI produced at
// enrollment time. The secret is never exposed through any other surface.
type TOTPProvision struct {
	Secret string
	URI    string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// ZerologSink is an [AuditSink] that writes events through a zerolog logger.
type ZerologSink = internalaudit.ZerologSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZerologSink creates a [ZerologSink] that logs through log.
func NewZerologSink(log zerolog.Logger) *ZerologSink {
	return internalaudit.NewZerologSink(log)
}
