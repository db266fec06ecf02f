package rollover

import (
	"context"
	"sync"
	"time"
)

// Scheduler re-runs Check on an interval so a long-running server rolls
// over at the month boundary and retries after a failed attempt.
type Scheduler struct {
	mu         sync.RWMutex
	controller *Controller
	interval   time.Duration
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewScheduler(c *Controller, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{controller: c, interval: interval}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Errors are logged and recorded by the controller.
				s.controller.Check(ctx, TriggerSchedule)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
