package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestFamilyCreateAndGet(t *testing.T) {
	fs := NewFamilyStore(setupTestDB(t))
	ctx := context.Background()

	f, err := fs.Create(ctx, uuid.NewString(), "Ivanovs", testNow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if f.Name != "Ivanovs" {
		t.Errorf("name = %q, want %q", f.Name, "Ivanovs")
	}
	if f.Members == nil || len(f.Members) != 0 {
		t.Errorf("members = %v, want empty non-nil slice", f.Members)
	}
	if !f.CreatedAt.Equal(testNow) {
		t.Errorf("created_at = %v, want %v", f.CreatedAt, testNow)
	}
}

func TestFamilyGetByIDNotFound(t *testing.T) {
	fs := NewFamilyStore(setupTestDB(t))

	f, err := fs.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if f != nil {
		t.Errorf("expected nil family, got %+v", f)
	}
}

func TestAddMemberKeepsInsertionOrder(t *testing.T) {
	fs := NewFamilyStore(setupTestDB(t))

	f := createTestFamily(t, fs, "Ivanovs", "Alex", "Maria", "Pavel")
	if len(f.Members) != 3 {
		t.Fatalf("members = %d, want 3", len(f.Members))
	}
	for i, want := range []string{"Alex", "Maria", "Pavel"} {
		m := f.Members[i]
		if m.Name != want {
			t.Errorf("member[%d] = %q, want %q", i, m.Name, want)
		}
		if m.Position != i {
			t.Errorf("member[%d].position = %d, want %d", i, m.Position, i)
		}
		if m.Paid || m.PaymentDate != nil || m.DepositTxID != nil {
			t.Errorf("member[%d] should start unpaid: %+v", i, m)
		}
		if m.Version != 1 {
			t.Errorf("member[%d].version = %d, want 1", i, m.Version)
		}
	}
}

func TestAddMemberMissingFamily(t *testing.T) {
	fs := NewFamilyStore(setupTestDB(t))

	_, err := fs.AddMember(context.Background(), "missing", uuid.NewString(), "Alex", testNow)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetMemberChecksFamily(t *testing.T) {
	fs := NewFamilyStore(setupTestDB(t))
	ctx := context.Background()

	a := createTestFamily(t, fs, "Ivanovs", "Alex")
	b := createTestFamily(t, fs, "Petrovs")

	m, err := fs.GetMember(ctx, a.ID, a.Members[0].ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil || m.Name != "Alex" {
		t.Fatalf("member = %+v, want Alex", m)
	}

	m, err = fs.GetMember(ctx, b.ID, a.Members[0].ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil when member belongs to another family, got %+v", m)
	}
}

func TestFamilyList(t *testing.T) {
	fs := NewFamilyStore(setupTestDB(t))

	families, err := fs.List(context.Background())
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if families == nil || len(families) != 0 {
		t.Errorf("families = %v, want empty non-nil slice", families)
	}

	createTestFamily(t, fs, "Ivanovs", "Alex", "Maria")
	createTestFamily(t, fs, "Petrovs", "Oleg")

	families, err = fs.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(families) != 2 {
		t.Fatalf("families = %d, want 2", len(families))
	}
	total := 0
	for _, f := range families {
		total += len(f.Members)
	}
	if total != 3 {
		t.Errorf("total members = %d, want 3", total)
	}
}
