package pgstore

import (
	"context"

	profauth "github.com/avandrel/profauth"
)

const principalColumns = `id, external_id, kind, email, phone, password_hash, active, totp_secret, public_attributes`

func scanPrincipal(row interface{ Scan(dest ...any) error }) (*profauth.PrincipalRecord, error) {
	rec := &profauth.PrincipalRecord{}
	var kind int16
	err := row.Scan(
		&rec.ID, &rec.ExternalID, &kind, &rec.Email, &rec.Phone,
		&rec.PasswordHash, &rec.Active, &rec.TOTPSecret, &rec.PublicAttributes,
	)
	if err != nil {
		return nil, mapError(err)
	}
	rec.Kind = profauth.PrincipalKind(kind)
	return rec, nil
}

// FindByIdentifier resolves a principal by login identifier. Email is the
// primary identifier; phone is accepted for master principals that have one.
func (s *Store) FindByIdentifier(ctx context.Context, kind profauth.PrincipalKind, identifier string) (*profauth.PrincipalRecord, error) {
	query := `
		SELECT ` + principalColumns + `
		FROM principals
		WHERE kind = $1 AND (email = $2 OR (phone <> '' AND phone = $2))
	`
	return scanPrincipal(s.db.QueryRow(ctx, query, int16(kind), identifier))
}

func (s *Store) FindByExternalID(ctx context.Context, kind profauth.PrincipalKind, externalID string) (*profauth.PrincipalRecord, error) {
	query := `
		SELECT ` + principalColumns + `
		FROM principals
		WHERE kind = $1 AND external_id = $2
	`
	return scanPrincipal(s.db.QueryRow(ctx, query, int16(kind), externalID))
}

func (s *Store) FindByID(ctx context.Context, kind profauth.PrincipalKind, id int64) (*profauth.PrincipalRecord, error) {
	query := `
		SELECT ` + principalColumns + `
		FROM principals
		WHERE kind = $1 AND id = $2
	`
	return scanPrincipal(s.db.QueryRow(ctx, query, int16(kind), id))
}

func (s *Store) CreateMaster(ctx context.Context, input profauth.CreateMasterInput) (*profauth.PrincipalRecord, error) {
	query := `
		INSERT INTO principals (external_id, kind, email, phone, password_hash, active, totp_secret, public_attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '{}')
		RETURNING ` + principalColumns + `
	`
	return scanPrincipal(s.db.QueryRow(ctx, query,
		input.ExternalID, int16(profauth.KindMaster), input.Email, input.Phone,
		input.PasswordHash, input.Active, input.TOTPSecret,
	))
}

func (s *Store) CreateProfile(ctx context.Context, input profauth.CreateProfileInput) (*profauth.PrincipalRecord, error) {
	attrs := input.PublicAttributes
	if attrs == nil {
		attrs = []string{}
	}
	query := `
		INSERT INTO principals (external_id, kind, email, phone, password_hash, active, totp_secret, public_attributes)
		VALUES ($1, $2, $3, '', $4, TRUE, $5, $6)
		RETURNING ` + principalColumns + `
	`
	return scanPrincipal(s.db.QueryRow(ctx, query,
		input.ExternalID, int16(profauth.KindProfile), input.Email,
		input.PasswordHash, input.TOTPSecret, attrs,
	))
}

func (s *Store) UpdatePasswordHash(ctx context.Context, ref profauth.PrincipalRef, newHash string) error {
	query := `
		UPDATE principals
		SET password_hash = $3, updated_at = now()
		WHERE kind = $1 AND id = $2
	`
	tag, err := s.db.Exec(ctx, query, int16(ref.Kind), ref.ID, newHash)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return profauth.ErrNotFound
	}
	return nil
}

func (s *Store) SetActive(ctx context.Context, ref profauth.PrincipalRef, active bool) error {
	query := `
		UPDATE principals
		SET active = $3, updated_at = now()
		WHERE kind = $1 AND id = $2
	`
	tag, err := s.db.Exec(ctx, query, int16(ref.Kind), ref.ID, active)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return profauth.ErrNotFound
	}
	return nil
}

func codeColumn(purpose profauth.CodePurpose) string {
	if purpose == profauth.CodePasswordReset {
		return "reset_code_hash"
	}
	return "confirm_code_hash"
}

func (s *Store) SetOneTimeCode(ctx context.Context, ref profauth.PrincipalRef, purpose profauth.CodePurpose, codeHash [32]byte) error {
	query := `
		UPDATE principals
		SET ` + codeColumn(purpose) + ` = $3, updated_at = now()
		WHERE kind = $1 AND id = $2
	`
	tag, err := s.db.Exec(ctx, query, int16(ref.Kind), ref.ID, codeHash[:])
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return profauth.ErrNotFound
	}
	return nil
}

// ConsumeOneTimeCode atomically clears a matching code slot and returns the
// owning principal. A code can therefore be redeemed once even under
// concurrent submissions.
func (s *Store) ConsumeOneTimeCode(ctx context.Context, kind profauth.PrincipalKind, purpose profauth.CodePurpose, codeHash [32]byte) (*profauth.PrincipalRecord, error) {
	column := codeColumn(purpose)
	query := `
		UPDATE principals
		SET ` + column + ` = NULL, updated_at = now()
		WHERE kind = $1 AND ` + column + ` = $2
		RETURNING ` + principalColumns + `
	`
	return scanPrincipal(s.db.QueryRow(ctx, query, int16(kind), codeHash[:]))
}
