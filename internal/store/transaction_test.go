package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/kazna/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestTransactionCreateAndGet(t *testing.T) {
	ts := NewTransactionStore(setupTestDB(t))
	ctx := context.Background()

	created, err := ts.Create(ctx, model.Transaction{
		ID:          uuid.NewString(),
		Kind:        model.KindWithdrawal,
		Amount:      decimal.RequireFromString("500.50"),
		Reason:      "Supplies",
		Description: "Withdrawal from treasury",
		Month:       "2026-10",
		Date:        testNow,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Kind != model.KindWithdrawal {
		t.Errorf("kind = %q, want %q", created.Kind, model.KindWithdrawal)
	}
	if !created.Amount.Equal(decimal.RequireFromString("500.5")) {
		t.Errorf("amount = %s, want 500.5", created.Amount)
	}
	if created.Reason != "Supplies" {
		t.Errorf("reason = %q, want %q", created.Reason, "Supplies")
	}
	if created.MemberID != nil {
		t.Errorf("member_id = %v, want nil", *created.MemberID)
	}
}

func TestTransactionCreateRejectsUnknownKind(t *testing.T) {
	ts := NewTransactionStore(setupTestDB(t))

	_, err := ts.Create(context.Background(), model.Transaction{
		ID:   uuid.NewString(),
		Kind: "refund",
		Date: testNow,
	})
	if err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestTransactionListFilters(t *testing.T) {
	ts := NewTransactionStore(setupTestDB(t))
	ctx := context.Background()

	add := func(kind model.TransactionKind, month string, at time.Time) {
		t.Helper()
		_, err := ts.Create(ctx, model.Transaction{
			ID:     uuid.NewString(),
			Kind:   kind,
			Amount: decimal.NewFromInt(100),
			Month:  month,
			Date:   at,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	add(model.KindDeposit, "2026-09", testNow.AddDate(0, -1, 0))
	add(model.KindWithdrawal, "2026-10", testNow.Add(time.Hour))
	add(model.KindDeposit, "2026-10", testNow)

	all, err := ts.List(ctx, TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %d, want 3", len(all))
	}
	if all[0].Kind != model.KindWithdrawal {
		t.Errorf("newest kind = %q, want withdrawal", all[0].Kind)
	}
	if all[2].Month != "2026-09" {
		t.Errorf("oldest month = %q, want 2026-09", all[2].Month)
	}

	deposits, err := ts.List(ctx, TransactionFilter{Kind: model.KindDeposit})
	if err != nil {
		t.Fatalf("list deposits: %v", err)
	}
	if len(deposits) != 2 {
		t.Errorf("deposits = %d, want 2", len(deposits))
	}

	october, err := ts.List(ctx, TransactionFilter{Month: "2026-10"})
	if err != nil {
		t.Fatalf("list month: %v", err)
	}
	if len(october) != 2 {
		t.Errorf("october = %d, want 2", len(october))
	}

	limited, err := ts.List(ctx, TransactionFilter{Limit: 1})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited = %d, want 1", len(limited))
	}
}
