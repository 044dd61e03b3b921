package pgstore

import (
	"context"

	profauth "github.com/avandrel/profauth"
)

// UpsertEdge grants a master access to a profile. Re-granting an existing
// edge only refreshes its sort order.
func (s *Store) UpsertEdge(ctx context.Context, masterID, profileID int64, sortOrder int) error {
	query := `
		INSERT INTO edges (master_id, profile_id, sort_order)
		VALUES ($1, $2, $3)
		ON CONFLICT (master_id, profile_id) DO UPDATE SET sort_order = EXCLUDED.sort_order
	`
	_, err := s.db.Exec(ctx, query, masterID, profileID, sortOrder)
	return mapError(err)
}

func (s *Store) GetEdge(ctx context.Context, masterID, profileID int64) (*profauth.Edge, error) {
	query := `
		SELECT master_id, profile_id, sort_order
		FROM edges
		WHERE master_id = $1 AND profile_id = $2
	`
	edge := &profauth.Edge{}
	err := s.db.QueryRow(ctx, query, masterID, profileID).Scan(
		&edge.MasterID, &edge.ProfileID, &edge.SortOrder,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return edge, nil
}

func (s *Store) ListEdges(ctx context.Context, masterID int64) ([]profauth.Edge, error) {
	query := `
		SELECT master_id, profile_id, sort_order
		FROM edges
		WHERE master_id = $1
		ORDER BY sort_order, profile_id
	`
	rows, err := s.db.Query(ctx, query, masterID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []profauth.Edge
	for rows.Next() {
		var edge profauth.Edge
		if err := rows.Scan(&edge.MasterID, &edge.ProfileID, &edge.SortOrder); err != nil {
			return nil, mapError(err)
		}
		out = append(out, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}
