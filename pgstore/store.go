package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	profauth "github.com/avandrel/profauth"
)

const pgUniqueViolation = "23505"

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the
// same query methods serve both the pooled store and its transactional view.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements [profauth.Store] on PostgreSQL.
type Store struct {
	db   querier
	pool *pgxpool.Pool
}

// New creates a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

// WithinTx runs fn against a transactional view of the store. fn returning
// an error rolls the transaction back; nested calls join the open
// transaction instead of starting another.
func (s *Store) WithinTx(ctx context.Context, fn func(tx profauth.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", profauth.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Store{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", profauth.ErrStoreUnavailable, err)
	}
	return nil
}

// mapError folds pgx failures into the store error contract: absent rows
// to ErrNotFound, unique violations to ErrDuplicate, anything else wrapped
// as ErrStoreUnavailable.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return profauth.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return profauth.ErrDuplicate
	}

	return fmt.Errorf("%w: %v", profauth.ErrStoreUnavailable, err)
}
