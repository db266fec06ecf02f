// Package ledger derives the treasury aggregates from the raw family and
// transaction lists.
package ledger

import (
	"github.com/dukerupert/kazna/internal/model"
	"github.com/shopspring/decimal"
)

// Summary is the derived state shown in the dashboard header.
type Summary struct {
	Balance      decimal.Decimal `json:"balance"`
	Collected    decimal.Decimal `json:"collected"`
	Withdrawn    decimal.Decimal `json:"withdrawn"`
	PaidMembers  int             `json:"paid_members"`
	TotalMembers int             `json:"total_members"`
	Families     int             `json:"families"`
}

// Summarize recomputes the summary from scratch. Balance is the sum of
// deposits minus the sum of withdrawals; system transactions count for
// nothing.
func Summarize(families []model.Family, txs []model.Transaction) Summary {
	s := Summary{
		Balance:   decimal.Zero,
		Collected: decimal.Zero,
		Withdrawn: decimal.Zero,
		Families:  len(families),
	}

	for _, f := range families {
		s.TotalMembers += len(f.Members)
		s.PaidMembers += f.PaidCount()
	}

	for _, t := range txs {
		switch t.Kind {
		case model.KindDeposit:
			s.Collected = s.Collected.Add(t.Amount)
		case model.KindWithdrawal:
			s.Withdrawn = s.Withdrawn.Add(t.Amount)
		}
	}
	s.Balance = s.Collected.Sub(s.Withdrawn)
	return s
}

// Visible filters the transaction history for the viewer: admins see
// everything, visitors see withdrawals only.
func Visible(txs []model.Transaction, admin bool) []model.Transaction {
	if admin {
		return txs
	}
	out := []model.Transaction{}
	for _, t := range txs {
		if t.Kind == model.KindWithdrawal {
			out = append(out, t)
		}
	}
	return out
}
