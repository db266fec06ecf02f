package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/kazna/internal/model"
	"github.com/dukerupert/kazna/internal/period"
)

// TreasuryStore performs the writes that must touch members, transactions
// and the reset marker together in one SQLite transaction.
type TreasuryStore struct {
	db *sql.DB
}

func NewTreasuryStore(db *sql.DB) *TreasuryStore {
	return &TreasuryStore{db: db}
}

// PaymentChange flips one member's paid flag. Deposit carries the id,
// amount, description, month and date of the deposit to record when the
// member becomes paid; member and family names are filled in here.
type PaymentChange struct {
	FamilyID        string
	MemberID        string
	ExpectedVersion int64
	Deposit         model.Transaction
}

type PaymentResult struct {
	Member     model.Member
	FamilyName string
	Deposit    *model.Transaction
	Retracted  *model.Transaction
}

// TogglePayment flips the member's paid flag. Becoming paid inserts the
// deposit and stores its id on the member; becoming unpaid deletes the
// deposit the member points at when it is dated in c.Deposit.Month. Deposits
// from earlier months stay in the history. A non-zero ExpectedVersion that does not
// match, or a concurrent write, yields ErrVersionConflict.
func (s *TreasuryStore) TogglePayment(ctx context.Context, c PaymentChange) (*PaymentResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	m, err := getMember(ctx, tx, c.FamilyID, c.MemberID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound
	}
	if c.ExpectedVersion != 0 && c.ExpectedVersion != m.Version {
		return nil, ErrVersionConflict
	}

	var familyName string
	err = tx.QueryRowContext(ctx, `SELECT name FROM families WHERE id = ?`, c.FamilyID).Scan(&familyName)
	if err != nil {
		return nil, fmt.Errorf("get family name: %w", err)
	}

	result := &PaymentResult{FamilyName: familyName}

	var res sql.Result
	if !m.Paid {
		deposit := c.Deposit
		deposit.Kind = model.KindDeposit
		deposit.MemberID = &m.ID
		deposit.MemberName = m.Name
		deposit.FamilyName = familyName
		if err := insertTransaction(ctx, tx, deposit); err != nil {
			return nil, err
		}
		result.Deposit = &deposit

		res, err = tx.ExecContext(ctx,
			`UPDATE members SET paid = 1, payment_date = ?, deposit_tx_id = ?, version = version + 1
			 WHERE id = ? AND version = ?`,
			deposit.Date.UTC(), deposit.ID, m.ID, m.Version,
		)
	} else {
		if m.DepositTxID != nil {
			retracted, err := getTransaction(ctx, tx, *m.DepositTxID)
			if err != nil {
				return nil, err
			}
			if retracted != nil && period.Contains(c.Deposit.Month, retracted.Date.In(c.Deposit.Date.Location())) {
				if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, retracted.ID); err != nil {
					return nil, fmt.Errorf("delete deposit: %w", err)
				}
				result.Retracted = retracted
			}
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE members SET paid = 0, payment_date = NULL, deposit_tx_id = NULL, version = version + 1
			 WHERE id = ? AND version = ?`,
			m.ID, m.Version,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("update member payment: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, ErrVersionConflict
	}

	updated, err := getMember(ctx, tx, c.FamilyID, c.MemberID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	result.Member = *updated
	return result, nil
}

// Removal describes a deleted family or member together with the audit
// transaction recorded for it.
type Removal struct {
	Family model.Family
	Member *model.Member
	Audit  model.Transaction
}

// DeleteFamily removes the family and its members and records the audit
// transaction built from the family as it was before deletion.
func (s *TreasuryStore) DeleteFamily(ctx context.Context, familyID string, audit func(model.Family) model.Transaction) (*Removal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	f, err := getFamily(ctx, tx, familyID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM families WHERE id = ?`, familyID); err != nil {
		return nil, fmt.Errorf("delete family: %w", err)
	}

	rec := audit(*f)
	if err := insertTransaction(ctx, tx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &Removal{Family: *f, Audit: rec}, nil
}

// DeleteMember removes one member of the family and records the audit
// transaction built from it.
func (s *TreasuryStore) DeleteMember(ctx context.Context, familyID, memberID string, audit func(model.Family, model.Member) model.Transaction) (*Removal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	f, err := getFamily(ctx, tx, familyID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}
	m, err := getMember(ctx, tx, familyID, memberID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, memberID); err != nil {
		return nil, fmt.Errorf("delete member: %w", err)
	}

	rec := audit(*f, *m)
	if err := insertTransaction(ctx, tx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &Removal{Family: *f, Member: m, Audit: rec}, nil
}

// FamilyReset is the outcome of clearing one family's payments.
type FamilyReset struct {
	Family  model.Family
	Cleared int
	Audit   *model.Transaction
}

// ResetFamily clears the paid state of every member of one family. The audit
// transaction is recorded only when at least one member was paid.
func (s *TreasuryStore) ResetFamily(ctx context.Context, familyID string, audit func(f model.Family, cleared int) model.Transaction) (*FamilyReset, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	f, err := getFamily(ctx, tx, familyID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE members SET paid = 0, payment_date = NULL, deposit_tx_id = NULL, version = version + 1
		 WHERE family_id = ? AND paid = 1`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("clear family payments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}

	out := &FamilyReset{Family: *f, Cleared: int(n)}
	if n > 0 {
		rec := audit(*f, int(n))
		if err := insertTransaction(ctx, tx, rec); err != nil {
			return nil, err
		}
		out.Audit = &rec
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return out, nil
}

// RolloverParams drives one monthly rollover. Month is the marker value to
// store. Force clears payments even when the marker already equals Month and
// always records the audit transaction. Audit builds the system transaction
// from the number of members being cleared.
type RolloverParams struct {
	Month string
	Force bool
	At    time.Time
	Audit func(cleared int) model.Transaction
}

// RolloverOutcome reports what a rollover did. Families holds the state
// before any flag was cleared.
type RolloverOutcome struct {
	PreviousMonth string
	Month         string
	Applied       bool
	Cleared       int
	Families      []model.Family
	Audit         *model.Transaction
}

// Rollover checks the shared reset marker and, when it differs from
// p.Month (or p.Force is set), clears every paid member, records the audit
// transaction when anything was cleared, and advances the marker with a
// compare-and-set. Everything happens in one transaction.
func (s *TreasuryStore) Rollover(ctx context.Context, p RolloverParams) (*RolloverOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	prev, err := getState(ctx, tx, LastResetMonthKey)
	if err != nil {
		return nil, err
	}

	out := &RolloverOutcome{PreviousMonth: prev, Month: p.Month}
	if prev == p.Month && !p.Force {
		return out, nil
	}

	families, err := listFamilies(ctx, tx)
	if err != nil {
		return nil, err
	}
	out.Families = families

	paid := 0
	for _, f := range families {
		paid += f.PaidCount()
	}

	if paid > 0 {
		res, err := tx.ExecContext(ctx,
			`UPDATE members SET paid = 0, payment_date = NULL, deposit_tx_id = NULL, version = version + 1
			 WHERE paid = 1`,
		)
		if err != nil {
			return nil, fmt.Errorf("clear payments: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		out.Cleared = int(n)
	}

	if out.Cleared > 0 || p.Force {
		rec := p.Audit(out.Cleared)
		if err := insertTransaction(ctx, tx, rec); err != nil {
			return nil, err
		}
		out.Audit = &rec
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE treasury_state SET value = ?, updated_at = ? WHERE key = ? AND value = ?`,
		p.Month, p.At.UTC(), LastResetMonthKey, prev,
	)
	if err != nil {
		return nil, fmt.Errorf("update reset marker: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, ErrVersionConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	out.Applied = true
	return out, nil
}
