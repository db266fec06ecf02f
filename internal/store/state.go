package store

import (
	"context"
	"database/sql"
	"fmt"
)

// LastResetMonthKey names the shared marker holding the YYYY-MM of the last
// monthly rollover.
const LastResetMonthKey = "last_reset_month"

type StateStore struct {
	db *sql.DB
}

func NewStateStore(db *sql.DB) *StateStore {
	return &StateStore{db: db}
}

// Get returns the value stored under key, or "" when the key is unset.
func (s *StateStore) Get(ctx context.Context, key string) (string, error) {
	return getState(ctx, s.db, key)
}

func getState(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM treasury_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get state %s: %w", key, err)
	}
	return value, nil
}
