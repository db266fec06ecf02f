package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/kazna/internal/database"
	"github.com/dukerupert/kazna/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var testNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func createTestFamily(t *testing.T, fs *FamilyStore, name string, members ...string) *model.Family {
	t.Helper()
	ctx := context.Background()
	f, err := fs.Create(ctx, uuid.NewString(), name, testNow)
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	for _, m := range members {
		if _, err := fs.AddMember(ctx, f.ID, uuid.NewString(), m, testNow); err != nil {
			t.Fatalf("add member %q: %v", m, err)
		}
	}
	f, err = fs.GetByID(ctx, f.ID)
	if err != nil {
		t.Fatalf("reload family: %v", err)
	}
	return f
}

func testDeposit(amount int64) model.Transaction {
	return model.Transaction{
		ID:          uuid.NewString(),
		Amount:      decimal.NewFromInt(amount),
		Description: "Monthly due",
		Month:       "2026-10",
		Date:        testNow,
	}
}
