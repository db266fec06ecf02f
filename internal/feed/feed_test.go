package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/kazna/internal/database"
	"github.com/dukerupert/kazna/internal/event"
	"github.com/dukerupert/kazna/internal/model"
	"github.com/dukerupert/kazna/internal/treasury"
	"github.com/dukerupert/kazna/internal/websocket"
	"github.com/shopspring/decimal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupService(t *testing.T, bus *event.Bus) *treasury.Service {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return treasury.NewService(db, treasury.Config{
		DueAmount: decimal.NewFromInt(1000),
		Location:  time.UTC,
		Now:       func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) },
	}, bus, nil, testLogger())
}

func TestGreetScopesTransactions(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()
	f, _ := svc.AddFamily(ctx, "Ivanovs")
	m, _ := svc.AddMember(ctx, f.ID, "Alex")
	if _, err := svc.TogglePayment(ctx, treasury.TogglePaymentInput{FamilyID: f.ID, MemberID: m.ID}); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	fd := New(svc, nil, nil, testLogger())

	msg, err := fd.Greet(ctx, false)
	if err != nil {
		t.Fatalf("greet: %v", err)
	}
	d := msg.Data.(*treasury.Dashboard)
	if len(d.Transactions) != 0 {
		t.Errorf("visitor transactions = %d, want 0", len(d.Transactions))
	}
	if !d.Summary.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("balance = %s, want 1000", d.Summary.Balance)
	}

	msg, _ = fd.Greet(ctx, true)
	if d := msg.Data.(*treasury.Dashboard); len(d.Transactions) != 1 {
		t.Errorf("admin transactions = %d, want 1", len(d.Transactions))
	}
}

type fakeHub struct {
	mu     sync.Mutex
	public []websocket.Message
	admin  []websocket.Message
}

func (h *fakeHub) BroadcastScoped(public, admin websocket.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.public = append(h.public, public)
	h.admin = append(h.admin, admin)
}

func TestObserveBroadcastsAfterCommand(t *testing.T) {
	hub := &fakeHub{}
	bus := event.NewBus(testLogger())
	svc := setupService(t, bus)
	bus.Subscribe(New(svc, hub, nil, testLogger()))

	ctx := context.Background()
	f, err := svc.AddFamily(ctx, "Ivanovs")
	if err != nil {
		t.Fatalf("add family: %v", err)
	}
	if _, err := svc.RecordWithdrawal(ctx, decimal.NewFromInt(300), "Supplies"); err != nil {
		t.Fatalf("withdrawal: %v", err)
	}

	if len(hub.public) != 2 || len(hub.admin) != 2 {
		t.Fatalf("broadcasts = %d/%d, want 2/2", len(hub.public), len(hub.admin))
	}
	first := hub.admin[0]
	if first.Type != "snapshot" || first.Entity != event.EntityFamily || first.Action != event.ActionCreated || first.ID != f.ID {
		t.Errorf("first message = %+v", first)
	}

	// The payload survives the wire format the hub uses.
	data, err := json.Marshal(hub.public[1])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var msg struct {
		Data treasury.Dashboard `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(msg.Data.Families) != 1 || msg.Data.Families[0].Name != "Ivanovs" {
		t.Errorf("families = %+v", msg.Data.Families)
	}
	if len(msg.Data.Transactions) != 1 || msg.Data.Transactions[0].Reason != "Supplies" {
		t.Errorf("public transactions = %+v", msg.Data.Transactions)
	}
	if !msg.Data.Summary.Balance.Equal(decimal.NewFromInt(-300)) {
		t.Errorf("balance = %s, want -300", msg.Data.Summary.Balance)
	}
}

type failingSource struct{}

func (failingSource) Snapshot(context.Context) ([]model.Family, []model.Transaction, error) {
	return nil, nil, errors.New("db gone")
}

func (failingSource) Assemble([]model.Family, []model.Transaction, bool) *treasury.Dashboard {
	return &treasury.Dashboard{}
}

func TestObserveLoadFailureSendsNothing(t *testing.T) {
	hub := &fakeHub{}
	fd := New(failingSource{}, hub, nil, testLogger())

	fd.Observe(context.Background(), event.Event{Entity: "family", Action: "created"})
	if len(hub.public) != 0 || len(hub.admin) != 0 {
		t.Error("no snapshot expected when loading fails")
	}
	if _, err := fd.Greet(context.Background(), true); err == nil {
		t.Error("expected greet error")
	}
}

// stagedSource returns one family on the first load and blocks it until
// release is closed; later loads return two families immediately.
type stagedSource struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (s *stagedSource) Snapshot(context.Context) ([]model.Family, []model.Transaction, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if n == 1 {
		close(s.started)
		<-s.release
		return []model.Family{{ID: "a"}}, nil, nil
	}
	return []model.Family{{ID: "a"}, {ID: "b"}}, nil, nil
}

func (s *stagedSource) Assemble(families []model.Family, txs []model.Transaction, admin bool) *treasury.Dashboard {
	return &treasury.Dashboard{Families: families, Admin: admin}
}

func TestObserveNeverSendsOlderSnapshotLast(t *testing.T) {
	src := &stagedSource{started: make(chan struct{}), release: make(chan struct{})}
	hub := &fakeHub{}
	fd := New(src, hub, nil, testLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		fd.Observe(ctx, event.Event{Entity: "family", Action: "created", ID: "a"})
	}()
	<-src.started
	go func() {
		defer wg.Done()
		fd.Observe(ctx, event.Event{Entity: "family", Action: "created", ID: "b"})
	}()
	// Give the second observer time to race ahead if nothing stops it.
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	if len(hub.admin) != 2 {
		t.Fatalf("broadcasts = %d, want 2", len(hub.admin))
	}
	last := hub.admin[len(hub.admin)-1].Data.(*treasury.Dashboard)
	if len(last.Families) != 2 {
		t.Errorf("last snapshot has %d families, want 2", len(last.Families))
	}
	first := hub.admin[0].Data.(*treasury.Dashboard)
	if len(first.Families) != 1 {
		t.Errorf("first snapshot has %d families, want 1", len(first.Families))
	}
}
