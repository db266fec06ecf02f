package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindDeposit    TransactionKind = "deposit"
	KindWithdrawal TransactionKind = "withdrawal"
	KindSystem     TransactionKind = "system"
)

// Valid reports whether k is one of the known transaction kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindSystem:
		return true
	}
	return false
}

type Transaction struct {
	ID          string          `json:"id"`
	Kind        TransactionKind `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	MemberID    *string         `json:"member_id,omitempty"`
	MemberName  string          `json:"member_name,omitempty"`
	FamilyName  string          `json:"family_name,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Description string          `json:"description,omitempty"`
	Month       string          `json:"month,omitempty"`
	Date        time.Time       `json:"date"`
}
