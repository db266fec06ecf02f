// Package rollover clears every member's paid flag once per calendar month,
// coordinated through the shared reset marker.
package rollover

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/kazna/internal/event"
	"github.com/dukerupert/kazna/internal/metrics"
	"github.com/dukerupert/kazna/internal/model"
	"github.com/dukerupert/kazna/internal/period"
	"github.com/dukerupert/kazna/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type State string

const (
	StatePending State = "PENDING"
	StateChecked State = "CHECKED"
)

const (
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerForce    = "force"
)

// ErrConfirmationRequired is returned by ForceReset without confirmation.
var ErrConfirmationRequired = errors.New("confirmation required")

// Applied is the payload of a rollover/applied event.
type Applied struct {
	Trigger      string
	ClosingMonth string
	Label        string
	Outcome      *store.RolloverOutcome
}

// Status is the controller state reported to admins.
type Status struct {
	State          State      `json:"state"`
	Month          string     `json:"month"`
	LastResetMonth string     `json:"last_reset_month"`
	LastCheckedAt  *time.Time `json:"last_checked_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

type Options struct {
	Location *time.Location
	Locale   string
	Now      func() time.Time
}

type Controller struct {
	mu           sync.Mutex
	treasury     *store.TreasuryStore
	state        *store.StateStore
	bus          *event.Bus
	metrics      *metrics.Metrics
	logger       *slog.Logger
	loc          *time.Location
	locale       string
	now          func() time.Time
	checkedMonth string
	lastChecked  *time.Time
	lastError    string
}

func NewController(db *sql.DB, opts Options, bus *event.Bus, m *metrics.Metrics, logger *slog.Logger) *Controller {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		treasury: store.NewTreasuryStore(db),
		state:    store.NewStateStore(db),
		bus:      bus,
		metrics:  m,
		logger:   logger.With("component", "rollover"),
		loc:      opts.Location,
		locale:   opts.Locale,
		now:      opts.Now,
	}
}

func (c *Controller) clock() time.Time {
	return c.now().In(c.loc)
}

// Status reports CHECKED once this process has confirmed the marker for the
// current month, PENDING otherwise.
func (c *Controller) Status(ctx context.Context) (*Status, error) {
	marker, err := c.state.Get(ctx, store.LastResetMonthKey)
	if err != nil {
		return nil, err
	}
	month := period.Key(c.clock())

	c.mu.Lock()
	defer c.mu.Unlock()
	st := &Status{
		State:          StatePending,
		Month:          month,
		LastResetMonth: marker,
		LastCheckedAt:  c.lastChecked,
		LastError:      c.lastError,
	}
	if c.checkedMonth == month {
		st.State = StateChecked
	}
	return st, nil
}

// Check rolls over when the shared marker differs from the current month.
// It returns the outcome, whose Applied field is false when this month was
// already handled.
func (c *Controller) Check(ctx context.Context, trigger string) (*store.RolloverOutcome, error) {
	return c.run(ctx, trigger, func(now time.Time, label string) store.RolloverParams {
		return store.RolloverParams{
			Month: period.Key(now),
			At:    now,
			Audit: func(int) model.Transaction {
				return systemTx(now, "Start of a new month", "Automatic status reset. "+label)
			},
		}
	})
}

// ForceReset clears every paid flag regardless of the marker and moves the
// marker to the current month.
func (c *Controller) ForceReset(ctx context.Context, confirm bool) (*store.RolloverOutcome, error) {
	if !confirm {
		return nil, ErrConfirmationRequired
	}
	return c.run(ctx, TriggerForce, func(now time.Time, label string) store.RolloverParams {
		return store.RolloverParams{
			Month: period.Key(now),
			Force: true,
			At:    now,
			Audit: func(cleared int) model.Transaction {
				return systemTx(now, "Manual status reset",
					fmt.Sprintf("Administrator reset the payment status of %d members. %s", cleared, label))
			},
		}
	})
}

// run serializes attempts within this process and publishes the applied
// event after the lock is released.
func (c *Controller) run(ctx context.Context, trigger string, params func(now time.Time, label string) store.RolloverParams) (*store.RolloverOutcome, error) {
	c.mu.Lock()
	now := c.clock()
	label := period.Label(now, c.locale)
	out, err := c.treasury.Rollover(ctx, params(now, label))
	c.record(trigger, now, out, err)
	c.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("rollover: %w", err)
	}
	if !out.Applied {
		return out, nil
	}

	closing := out.PreviousMonth
	if closing == "" {
		closing = period.Previous(now)
	}
	c.bus.Publish(ctx, event.Event{
		Entity: event.EntityRollover,
		Action: event.ActionApplied,
		ID:     out.Month,
		At:     now,
		Payload: &Applied{
			Trigger:      trigger,
			ClosingMonth: closing,
			Label:        label,
			Outcome:      out,
		},
	})
	return out, nil
}

// record updates the controller state; callers hold c.mu.
func (c *Controller) record(trigger string, now time.Time, out *store.RolloverOutcome, err error) {
	if err != nil {
		c.lastError = err.Error()
		c.metrics.Rollover(trigger, "error")
		c.logger.Error("rollover failed", "trigger", trigger, "error", err)
		return
	}

	c.checkedMonth = out.Month
	c.lastChecked = &now
	c.lastError = ""

	if !out.Applied {
		c.metrics.Rollover(trigger, "noop")
		c.logger.Debug("rollover already done", "trigger", trigger, "month", out.Month)
		return
	}
	c.metrics.Rollover(trigger, "applied")
	c.logger.Info("rollover applied",
		"trigger", trigger,
		"month", out.Month,
		"previous_month", out.PreviousMonth,
		"cleared", out.Cleared,
	)
}

func systemTx(now time.Time, reason, description string) model.Transaction {
	return model.Transaction{
		ID:          uuid.NewString(),
		Kind:        model.KindSystem,
		Amount:      decimal.Zero,
		Reason:      reason,
		Description: description,
		Month:       period.Key(now),
		Date:        now,
	}
}
