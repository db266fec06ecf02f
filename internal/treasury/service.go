// Package treasury implements the admin commands that change families,
// members and the transaction log, and the dashboard read model.
package treasury

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/kazna/internal/event"
	"github.com/dukerupert/kazna/internal/ledger"
	"github.com/dukerupert/kazna/internal/metrics"
	"github.com/dukerupert/kazna/internal/model"
	"github.com/dukerupert/kazna/internal/period"
	"github.com/dukerupert/kazna/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config holds the treasury rules that come from configuration.
type Config struct {
	DueAmount decimal.Decimal
	Location  *time.Location
	Locale    string
	// Now overrides the clock in tests.
	Now func() time.Time
}

type Service struct {
	families *store.FamilyStore
	txs      *store.TransactionStore
	treasury *store.TreasuryStore
	bus      *event.Bus
	metrics  *metrics.Metrics
	logger   *slog.Logger
	due      decimal.Decimal
	loc      *time.Location
	locale   string
	now      func() time.Time
}

func NewService(db *sql.DB, cfg Config, bus *event.Bus, m *metrics.Metrics, logger *slog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		families: store.NewFamilyStore(db),
		txs:      store.NewTransactionStore(db),
		treasury: store.NewTreasuryStore(db),
		bus:      bus,
		metrics:  m,
		logger:   logger.With("component", "treasury"),
		due:      cfg.DueAmount,
		loc:      cfg.Location,
		locale:   cfg.Locale,
		now:      cfg.Now,
	}
}

// DueAmount is the fixed monthly contribution recorded per paid member.
func (s *Service) DueAmount() decimal.Decimal { return s.due }

// Locale is the language used for month labels, "en" when unset.
func (s *Service) Locale() string {
	if s.locale == "" {
		return "en"
	}
	return s.locale
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) publish(ctx context.Context, entity, action, id string, payload any) {
	s.bus.Publish(ctx, event.Event{
		Entity:  entity,
		Action:  action,
		ID:      id,
		At:      s.clock(),
		Payload: payload,
	})
}

// finish records the command outcome and converts store errors.
func (s *Service) finish(command string, err error) error {
	err = translate(err)
	s.metrics.Command(command, err)
	return err
}

func (s *Service) AddFamily(ctx context.Context, name string) (_ *model.Family, err error) {
	defer func() { err = s.finish("add_family", err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "family name is required")
	}

	f, err := s.families.Create(ctx, uuid.NewString(), name, s.clock())
	if err != nil {
		return nil, err
	}
	s.logger.Info("family added", "family_id", f.ID, "name", f.Name)
	s.publish(ctx, event.EntityFamily, event.ActionCreated, f.ID, f)
	return f, nil
}

func (s *Service) AddMember(ctx context.Context, familyID, name string) (_ *model.Member, err error) {
	defer func() { err = s.finish("add_member", err) }()

	familyID = strings.TrimSpace(familyID)
	if familyID == "" {
		return nil, invalid("family_id", "select a family")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "member name is required")
	}

	m, err := s.families.AddMember(ctx, familyID, uuid.NewString(), name, s.clock())
	if err != nil {
		return nil, err
	}
	s.logger.Info("member added", "family_id", familyID, "member_id", m.ID, "name", m.Name)
	s.publish(ctx, event.EntityMember, event.ActionCreated, m.ID, m)
	return m, nil
}

// TogglePaymentInput addresses one member. ExpectedVersion is the version
// the caller last saw; zero skips the check.
type TogglePaymentInput struct {
	FamilyID        string
	MemberID        string
	ExpectedVersion int64
}

// TogglePayment flips a member's paid flag. Marking paid records a deposit
// of the due amount; marking unpaid deletes the deposit recorded by the
// earlier toggle.
func (s *Service) TogglePayment(ctx context.Context, in TogglePaymentInput) (_ *store.PaymentResult, err error) {
	defer func() { err = s.finish("toggle_payment", err) }()

	if in.FamilyID == "" || in.MemberID == "" {
		return nil, invalid("member_id", "family and member are required")
	}

	now := s.clock()
	res, err := s.treasury.TogglePayment(ctx, store.PaymentChange{
		FamilyID:        in.FamilyID,
		MemberID:        in.MemberID,
		ExpectedVersion: in.ExpectedVersion,
		Deposit: model.Transaction{
			ID:          uuid.NewString(),
			Amount:      s.due,
			Description: "Monthly due",
			Month:       period.Key(now),
			Date:        now,
		},
	})
	if err != nil {
		return nil, err
	}

	action := event.ActionUnpaid
	if res.Member.Paid {
		action = event.ActionPaid
	}
	s.logger.Info("payment toggled",
		"member_id", res.Member.ID,
		"member", res.Member.Name,
		"family", res.FamilyName,
		"paid", res.Member.Paid,
	)
	s.publish(ctx, event.EntityMember, action, res.Member.ID, res)
	return res, nil
}

// RecordWithdrawal appends a withdrawal of a positive amount with a reason.
func (s *Service) RecordWithdrawal(ctx context.Context, amount decimal.Decimal, reason string) (_ *model.Transaction, err error) {
	defer func() { err = s.finish("withdrawal", err) }()

	if !amount.IsPositive() {
		return nil, invalid("amount", "amount must be greater than zero")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason", "reason is required")
	}

	now := s.clock()
	t, err := s.txs.Create(ctx, model.Transaction{
		ID:          uuid.NewString(),
		Kind:        model.KindWithdrawal,
		Amount:      amount,
		Reason:      reason,
		Description: "Withdrawal from treasury",
		Month:       period.Key(now),
		Date:        now,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("withdrawal recorded", "transaction_id", t.ID, "amount", t.Amount.String(), "reason", t.Reason)
	s.publish(ctx, event.EntityTransaction, event.ActionWithdrawn, t.ID, t)
	return t, nil
}

// DeleteFamily removes a family with all its members. confirm must be true.
func (s *Service) DeleteFamily(ctx context.Context, familyID string, confirm bool) (_ *store.Removal, err error) {
	defer func() { err = s.finish("delete_family", err) }()

	if !confirm {
		return nil, ErrConfirmationRequired
	}

	now := s.clock()
	removal, err := s.treasury.DeleteFamily(ctx, familyID, func(f model.Family) model.Transaction {
		return s.systemTx(now, "Family deleted",
			fmt.Sprintf("Family %q was deleted with %d members", f.Name, len(f.Members)))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("family deleted", "family_id", familyID, "name", removal.Family.Name, "members", len(removal.Family.Members))
	s.publish(ctx, event.EntityFamily, event.ActionDeleted, familyID, removal)
	return removal, nil
}

// DeleteMember removes one member. confirmName must match the member's name.
func (s *Service) DeleteMember(ctx context.Context, familyID, memberID, confirmName string) (_ *store.Removal, err error) {
	defer func() { err = s.finish("delete_member", err) }()

	m, err := s.families.GetMember(ctx, familyID, memberID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound
	}
	if strings.TrimSpace(confirmName) != m.Name {
		return nil, ErrConfirmationRequired
	}

	now := s.clock()
	removal, err := s.treasury.DeleteMember(ctx, familyID, memberID, func(f model.Family, m model.Member) model.Transaction {
		return s.systemTx(now, "Member deleted",
			fmt.Sprintf("Member %q was removed from family %q", m.Name, f.Name))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("member deleted", "family_id", familyID, "member_id", memberID, "name", m.Name)
	s.publish(ctx, event.EntityMember, event.ActionDeleted, memberID, removal)
	return removal, nil
}

// ResetFamily clears the paid state of one family's members.
func (s *Service) ResetFamily(ctx context.Context, familyID string, confirm bool) (_ *store.FamilyReset, err error) {
	defer func() { err = s.finish("reset_family", err) }()

	if !confirm {
		return nil, ErrConfirmationRequired
	}
	f, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}
	if len(f.Members) == 0 {
		return nil, invalid("family_id", "family has no members")
	}

	now := s.clock()
	res, err := s.treasury.ResetFamily(ctx, familyID, func(f model.Family, cleared int) model.Transaction {
		return s.systemTx(now, "Family payments reset",
			fmt.Sprintf("Payment status of %d members of family %q was reset", cleared, f.Name))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("family reset", "family_id", familyID, "cleared", res.Cleared)
	s.publish(ctx, event.EntityFamily, event.ActionReset, familyID, res)
	return res, nil
}

func (s *Service) systemTx(now time.Time, reason, description string) model.Transaction {
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

// Dashboard is the read model behind the page, the API and the live feed.
type Dashboard struct {
	Summary      ledger.Summary      `json:"summary"`
	Families     []model.Family      `json:"families"`
	Transactions []model.Transaction `json:"transactions"`
	Month        string              `json:"month"`
	MonthLabel   string              `json:"month_label"`
	DueAmount    decimal.Decimal     `json:"due_amount"`
	Admin        bool                `json:"admin"`
}

// Dashboard loads the full state once. The summary always covers every
// transaction; Transactions is filtered for the viewer.
func (s *Service) Dashboard(ctx context.Context, admin bool) (*Dashboard, error) {
	families, txs, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.Assemble(families, txs, admin), nil
}

// Assemble builds a dashboard from already loaded lists so one load can
// serve both audiences.
func (s *Service) Assemble(families []model.Family, txs []model.Transaction, admin bool) *Dashboard {
	now := s.clock()
	return &Dashboard{
		Summary:      ledger.Summarize(families, txs),
		Families:     families,
		Transactions: ledger.Visible(txs, admin),
		Month:        period.Key(now),
		MonthLabel:   period.Label(now, s.locale),
		DueAmount:    s.due,
		Admin:        admin,
	}
}

// Snapshot loads the raw lists used by Assemble.
func (s *Service) Snapshot(ctx context.Context) ([]model.Family, []model.Transaction, error) {
	families, err := s.families.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	txs, err := s.txs.List(ctx, store.TransactionFilter{})
	if err != nil {
		return nil, nil, err
	}
	return families, txs, nil
}

func (s *Service) Families(ctx context.Context) ([]model.Family, error) {
	return s.families.List(ctx)
}

// Transactions lists history newest first, filtered for the viewer.
func (s *Service) Transactions(ctx context.Context, admin bool, f store.TransactionFilter) ([]model.Transaction, error) {
	if !admin {
		if f.Kind != "" && f.Kind != model.KindWithdrawal {
			return []model.Transaction{}, nil
		}
		f.Kind = model.KindWithdrawal
	}
	return s.txs.List(ctx, f)
}
