package store

import (
	"context"
	"database/sql"
	"errors"
)

var (
	// ErrNotFound is returned by composite writes whose target row no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a conditional write finds the row
	// changed since the caller read it.
	ErrVersionConflict = errors.New("version conflict")
)

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
