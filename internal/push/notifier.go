package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/kazna/internal/event"
	"github.com/dukerupert/kazna/internal/model"
	"github.com/dukerupert/kazna/internal/rollover"
	"github.com/dukerupert/kazna/internal/store"
)

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(sub *model.PushSubscription, payload Payload) error
}

// Notifier pushes treasury activity to every admin device.
type Notifier struct {
	sender Sender
	subs   *store.PushStore
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewNotifier(sender Sender, subs *store.PushStore, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		subs:   subs,
		logger: logger.With("component", "push"),
	}
}

// Observe sends in the background so commands never wait on push services.
func (n *Notifier) Observe(_ context.Context, e event.Event) {
	p, ok := payloadFor(e)
	if !ok {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliver(p)
	}()
}

// Wait blocks until every pending delivery has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) deliver(p Payload) {
	subs, err := n.subs.ListAdmin()
	if err != nil {
		n.logger.Error("list admin subscriptions", "error", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		err := n.sender.Send(sub, p)
		switch {
		case err == nil:
		case errors.Is(err, ErrExpired):
			n.logger.Info("removing expired subscription", "subscription_id", sub.ID)
			if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				n.logger.Error("delete expired subscription", "error", err)
			}
		default:
			n.logger.Warn("push failed", "subscription_id", sub.ID, "tag", p.Tag, "error", err)
		}
	}
}

func payloadFor(e event.Event) (Payload, bool) {
	switch {
	case e.Entity == event.EntityMember && e.Action == event.ActionPaid:
		res, ok := e.Payload.(*store.PaymentResult)
		if !ok || res.Deposit == nil {
			return Payload{}, false
		}
		return Payload{
			Title: "Payment received",
			Body: fmt.Sprintf("%s (%s) paid %s",
				res.Member.Name, res.FamilyName, res.Deposit.Amount.StringFixed(2)),
			URL: "/",
			Tag: "payment-" + res.Member.ID,
		}, true

	case e.Entity == event.EntityTransaction && e.Action == event.ActionWithdrawn:
		t, ok := e.Payload.(*model.Transaction)
		if !ok {
			return Payload{}, false
		}
		return Payload{
			Title: "Withdrawal recorded",
			Body:  fmt.Sprintf("%s: %s", t.Amount.StringFixed(2), t.Reason),
			URL:   "/",
			Tag:   "withdrawal-" + t.ID,
		}, true

	case e.Entity == event.EntityRollover && e.Action == event.ActionApplied:
		a, ok := e.Payload.(*rollover.Applied)
		if !ok {
			return Payload{}, false
		}
		return Payload{
			Title: "New month: " + a.Label,
			Body:  fmt.Sprintf("%d payment marks were cleared", a.Outcome.Cleared),
			URL:   "/",
			Tag:   "rollover-" + a.Outcome.Month,
		}, true
	}
	return Payload{}, false
}
