// Package event carries change notifications from the treasury commands to
// the components that react to them (live feed, push, archive, metrics).
package event

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	EntityFamily      = "family"
	EntityMember      = "member"
	EntityTransaction = "transaction"
	EntityRollover    = "rollover"
)

const (
	ActionCreated   = "created"
	ActionDeleted   = "deleted"
	ActionPaid      = "paid"
	ActionUnpaid    = "unpaid"
	ActionReset     = "reset"
	ActionWithdrawn = "withdrawn"
	ActionApplied   = "applied"
)

// Event describes one committed change. Payload holds the entity-specific
// record (a model value or a rollover outcome).
type Event struct {
	Entity  string
	Action  string
	ID      string
	At      time.Time
	Payload any
}

// Observer reacts to committed changes. Observe must not block for long;
// slow work belongs in a goroutine owned by the observer.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) Observe(ctx context.Context, e Event) { f(ctx, e) }

// Bus fans events out to its observers synchronously, in subscription order.
type Bus struct {
	mu        sync.RWMutex
	observers []Observer
	logger    *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

func (b *Bus) Subscribe(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

// Publish delivers e to every observer. A panicking observer is logged and
// skipped so the rest still run.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	observers := make([]Observer, len(b.observers))
	copy(observers, b.observers)
	b.mu.RUnlock()

	for _, o := range observers {
		b.deliver(ctx, o, e)
	}
}

func (b *Bus) deliver(ctx context.Context, o Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("observer panicked", "entity", e.Entity, "action", e.Action, "panic", r)
		}
	}()
	o.Observe(ctx, e)
}
