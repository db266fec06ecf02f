package model

import "time"

type Family struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Members   []Member  `json:"members"`
}

// Member is a person whose monthly due is tracked. Paid is true exactly when
// PaymentDate is set; DepositTxID points at the deposit recorded for the
// current period while Paid is true.
type Member struct {
	ID          string     `json:"id"`
	FamilyID    string     `json:"family_id"`
	Name        string     `json:"name"`
	Paid        bool       `json:"paid"`
	PaymentDate *time.Time `json:"payment_date"`
	DepositTxID *string    `json:"deposit_tx_id,omitempty"`
	Position    int        `json:"position"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PaidCount returns how many members of the family are marked paid.
func (f Family) PaidCount() int {
	n := 0
	for _, m := range f.Members {
		if m.Paid {
			n++
		}
	}
	return n
}
