package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		path      string
		immediate bool
		wal       bool
	}{
		{":memory:", false, false},
		{"file:test?mode=memory&cache=shared", false, false},
		{"kazna.db", true, true},
	}
	for _, tt := range tests {
		got := dsn(tt.path)
		if !strings.HasPrefix(got, tt.path) {
			t.Errorf("dsn(%q) = %q, want path prefix", tt.path, got)
		}
		if strings.Count(got, "?") != 1 {
			t.Errorf("dsn(%q) = %q, want exactly one '?'", tt.path, got)
		}
		if !strings.Contains(got, "foreign_keys(1)") {
			t.Errorf("dsn(%q) = %q, missing foreign_keys", tt.path, got)
		}
		if strings.Contains(got, "_txlock=immediate") != tt.immediate {
			t.Errorf("dsn(%q) = %q, immediate = %v", tt.path, got, tt.immediate)
		}
		if strings.Contains(got, "journal_mode(WAL)") != tt.wal {
			t.Errorf("dsn(%q) = %q, wal = %v", tt.path, got, tt.wal)
		}
	}
}

func TestOpenFileConcurrentWriters(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "kazna.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(8)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `INSERT INTO treasury_state (key, value) VALUES ('counter', '0')`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- increment(ctx, db)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("writer: %v", err)
		}
	}

	var v string
	if err := db.QueryRowContext(ctx, `SELECT value FROM treasury_state WHERE key = 'counter'`).Scan(&v); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if v != strconv.Itoa(writers) {
		t.Errorf("counter = %s, want %d", v, writers)
	}
}

// increment reads then writes inside one transaction, the shape every
// store write path has.
func increment(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var v string
	if err := tx.QueryRowContext(ctx, `SELECT value FROM treasury_state WHERE key = 'counter'`).Scan(&v); err != nil {
		return err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE treasury_state SET value = ? WHERE key = 'counter'`, strconv.Itoa(n+1)); err != nil {
		return err
	}
	return tx.Commit()
}
