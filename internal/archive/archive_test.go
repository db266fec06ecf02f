package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/kazna/internal/database"
	"github.com/dukerupert/kazna/internal/event"
	"github.com/dukerupert/kazna/internal/model"
	"github.com/dukerupert/kazna/internal/rollover"
	"github.com/dukerupert/kazna/internal/store"
	"github.com/shopspring/decimal"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

var testNow = time.Date(2026, 10, 1, 0, 5, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		S3: S3Config{
			Bucket:    "kazna",
			Region:    "us-east-1",
			AccessKey: "key",
			SecretKey: "secret",
		},
		Passphrase: "statement pass",
		Prefix:     "statements/",
	}
}

func setupManager(t *testing.T) (*Manager, *mockS3Client, *store.TransactionStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := NewManager(testConfig(), db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mock := newMockS3()
	m.client = mock
	m.now = func() time.Time { return testNow }
	return m, mock, store.NewTransactionStore(db)
}

func seedMonth(t *testing.T, txs *store.TransactionStore) {
	t.Helper()
	ctx := context.Background()
	for _, tx := range []model.Transaction{
		{ID: "d1", Kind: model.KindDeposit, Amount: decimal.NewFromInt(1000), MemberName: "Anna", Month: "2026-09", Date: testNow.AddDate(0, 0, -10)},
		{ID: "w1", Kind: model.KindWithdrawal, Amount: decimal.NewFromInt(300), Reason: "Flowers", Month: "2026-09", Date: testNow.AddDate(0, 0, -5)},
		{ID: "d0", Kind: model.KindDeposit, Amount: decimal.NewFromInt(1000), Month: "2026-08", Date: testNow.AddDate(0, -1, -10)},
	} {
		if _, err := txs.Create(ctx, tx); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}
}

func testApplied() *rollover.Applied {
	paidAt := testNow.AddDate(0, 0, -10)
	return &rollover.Applied{
		Trigger:      rollover.TriggerSchedule,
		ClosingMonth: "2026-09",
		Label:        "October 2026",
		Outcome: &store.RolloverOutcome{
			PreviousMonth: "2026-09",
			Month:         "2026-10",
			Applied:       true,
			Cleared:       1,
			Families: []model.Family{{
				ID:   "f1",
				Name: "Ivanovs",
				Members: []model.Member{
					{ID: "m1", Name: "Anna", Paid: true, PaymentDate: &paidAt},
					{ID: "m2", Name: "Oleg"},
				},
			}},
		},
	}
}

func TestConfigEnabled(t *testing.T) {
	cfg := testConfig()
	if !cfg.Enabled() {
		t.Error("full config should be enabled")
	}
	cfg.Passphrase = ""
	if cfg.Enabled() {
		t.Error("config without passphrase should be disabled")
	}
	if (Config{}).Enabled() {
		t.Error("empty config should be disabled")
	}
}

func TestArchiveUploadsEncryptedStatement(t *testing.T) {
	m, mock, txs := setupManager(t)
	seedMonth(t, txs)
	ctx := context.Background()

	rec, err := m.Archive(ctx, testApplied())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if rec.Status != model.ArchiveStatusCompleted {
		t.Errorf("status = %q, want completed", rec.Status)
	}
	if rec.S3Key != "statements/statement-2026-09-20261001T000500Z.json.enc" {
		t.Errorf("key = %q", rec.S3Key)
	}
	sealed, ok := mock.objects[rec.S3Key]
	if !ok {
		t.Fatal("object not uploaded")
	}
	if rec.SizeBytes != int64(len(sealed)) {
		t.Errorf("size = %d, want %d", rec.SizeBytes, len(sealed))
	}

	body, got, err := m.Download(ctx, rec.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer body.Close()
	if got.ID != rec.ID {
		t.Errorf("download record = %d, want %d", got.ID, rec.ID)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	plain, err := Open(data, "statement pass")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var st Statement
	if err := json.Unmarshal(plain, &st); err != nil {
		t.Fatalf("unmarshal statement: %v", err)
	}
	if st.Month != "2026-09" || st.Trigger != rollover.TriggerSchedule {
		t.Errorf("statement header = %+v", st)
	}
	if len(st.Transactions) != 2 {
		t.Errorf("transactions = %d, want only September's 2", len(st.Transactions))
	}
	if len(st.Families) != 1 || !st.Families[0].Members[0].Paid {
		t.Errorf("families should hold the pre-reset state: %+v", st.Families)
	}
	if !st.Summary.Balance.Equal(decimal.NewFromInt(700)) || st.Summary.PaidMembers != 1 {
		t.Errorf("summary = %+v", st.Summary)
	}
}

func TestArchiveUploadFailure(t *testing.T) {
	m, mock, _ := setupManager(t)
	mock.putErr = errors.New("bucket unavailable")

	if _, err := m.Archive(context.Background(), testApplied()); err == nil {
		t.Fatal("expected upload error")
	}

	list, err := m.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("records = %d, want 1", len(list))
	}
	if list[0].Status != model.ArchiveStatusFailed || list[0].Error == "" {
		t.Errorf("record = %+v, want failed with error", list[0])
	}

	if _, _, err := m.Download(context.Background(), list[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("download failed archive err = %v, want ErrNotFound", err)
	}
}

func TestObserveArchivesInBackground(t *testing.T) {
	m, mock, _ := setupManager(t)
	ctx := context.Background()

	m.Observe(ctx, event.Event{Entity: event.EntityFamily, Action: event.ActionCreated})
	m.Observe(ctx, event.Event{Entity: event.EntityRollover, Action: event.ActionApplied, Payload: testApplied()})
	m.Wait()

	if len(mock.objects) != 1 {
		t.Errorf("objects = %d, want 1", len(mock.objects))
	}
}

func TestDisabledManager(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer db.Close()

	m := NewManager(Config{}, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if m.Enabled() {
		t.Fatal("expected disabled manager")
	}
	if _, err := m.Archive(context.Background(), testApplied()); !errors.Is(err, ErrDisabled) {
		t.Errorf("archive err = %v, want ErrDisabled", err)
	}
	if _, _, err := m.Download(context.Background(), 1); !errors.Is(err, ErrDisabled) {
		t.Errorf("download err = %v, want ErrDisabled", err)
	}
	// Observing with no storage is a no-op.
	m.Observe(context.Background(), event.Event{Entity: event.EntityRollover, Action: event.ActionApplied, Payload: testApplied()})
	m.Wait()
}
