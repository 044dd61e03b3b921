package pgstore

import (
	"context"
	"time"

	profauth "github.com/avandrel/profauth"
)

func (s *Store) CreateSession(ctx context.Context, rec *profauth.SessionRecord) error {
	query := `
		INSERT INTO sessions (jti, kind, principal_id, signed_in_at, last_active_at, device_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.Exec(ctx, query,
		rec.JTI, int16(rec.Kind), rec.PrincipalID,
		rec.SignedInAt, rec.LastActiveAt, rec.DeviceHash[:],
	)
	return mapError(err)
}

func (s *Store) GetSession(ctx context.Context, jti string) (*profauth.SessionRecord, error) {
	query := `
		SELECT jti, kind, principal_id, signed_in_at, last_active_at, device_hash
		FROM sessions
		WHERE jti = $1
	`
	rec := &profauth.SessionRecord{}
	var kind int16
	var device []byte
	err := s.db.QueryRow(ctx, query, jti).Scan(
		&rec.JTI, &kind, &rec.PrincipalID, &rec.SignedInAt, &rec.LastActiveAt, &device,
	)
	if err != nil {
		return nil, mapError(err)
	}
	rec.Kind = profauth.PrincipalKind(kind)
	copy(rec.DeviceHash[:], device)
	return rec, nil
}

// TouchSession refreshes liveness bookkeeping. Touching a row that was
// revoked between lookup and touch is not an error.
func (s *Store) TouchSession(ctx context.Context, jti string, lastActive time.Time, deviceHash [32]byte) error {
	query := `
		UPDATE sessions
		SET last_active_at = $2, device_hash = $3
		WHERE jti = $1
	`
	_, err := s.db.Exec(ctx, query, jti, lastActive, deviceHash[:])
	return mapError(err)
}

func (s *Store) DeleteSession(ctx context.Context, jti string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE jti = $1`, jti)
	return mapError(err)
}

func (s *Store) DeleteSessionsForPrincipal(ctx context.Context, kind profauth.PrincipalKind, principalID int64) error {
	query := `DELETE FROM sessions WHERE kind = $1 AND principal_id = $2`
	_, err := s.db.Exec(ctx, query, int16(kind), principalID)
	return mapError(err)
}
