// Package feed pushes a fresh dashboard snapshot to every live client after
// each committed change.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukerupert/kazna/internal/event"
	"github.com/dukerupert/kazna/internal/metrics"
	"github.com/dukerupert/kazna/internal/model"
	"github.com/dukerupert/kazna/internal/treasury"
	"github.com/dukerupert/kazna/internal/websocket"
)

// Source loads the raw lists and builds per-audience dashboards from them.
type Source interface {
	Snapshot(ctx context.Context) ([]model.Family, []model.Transaction, error)
	Assemble(families []model.Family, txs []model.Transaction, admin bool) *treasury.Dashboard
}

// Broadcaster delivers one message per audience.
type Broadcaster interface {
	BroadcastScoped(public, admin websocket.Message)
}

type Feed struct {
	// mu orders load+broadcast so a slower observer never sends an older
	// snapshot after a newer one.
	mu      sync.Mutex
	source  Source
	hub     Broadcaster
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(source Source, hub Broadcaster, m *metrics.Metrics, logger *slog.Logger) *Feed {
	return &Feed{
		source:  source,
		hub:     hub,
		metrics: m,
		logger:  logger.With("component", "feed"),
	}
}

// Observe reloads the state once and broadcasts the admin and public views.
func (f *Feed) Observe(ctx context.Context, e event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	families, txs, err := f.source.Snapshot(context.WithoutCancel(ctx))
	if err != nil {
		f.logger.Error("load snapshot", "entity", e.Entity, "action", e.Action, "error", err)
		return
	}

	public := f.source.Assemble(families, txs, false)
	admin := f.source.Assemble(families, txs, true)
	f.metrics.SetBalance(admin.Summary.Balance)

	if f.hub == nil {
		return
	}
	f.hub.BroadcastScoped(
		websocket.NewSnapshot(e.Entity, e.Action, e.ID, public),
		websocket.NewSnapshot(e.Entity, e.Action, e.ID, admin),
	)
}

// Greet builds the snapshot sent to a newly connected client.
func (f *Feed) Greet(ctx context.Context, admin bool) (websocket.Message, error) {
	families, txs, err := f.source.Snapshot(ctx)
	if err != nil {
		return websocket.Message{}, err
	}
	return websocket.NewSnapshot("", "", "", f.source.Assemble(families, txs, admin)), nil
}
