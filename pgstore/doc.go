// Package pgstore implements the profauth.Store collaborator on PostgreSQL
// via pgx. Schema migrations are embedded and applied with goose.
package pgstore
