package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/kazna/internal/model"
)

type TransactionStore struct {
	db *sql.DB
}

func NewTransactionStore(db *sql.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// TransactionFilter narrows List. Zero values match everything.
type TransactionFilter struct {
	Kind  model.TransactionKind
	Month string
	Limit int
}

const transactionCols = `id, type, amount, member_id, member_name, family_name, reason, description, month, date`

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.Transaction, error) {
	var t model.Transaction
	var memberID sql.NullString
	err := scanner.Scan(&t.ID, &t.Kind, &t.Amount, &memberID, &t.MemberName, &t.FamilyName, &t.Reason, &t.Description, &t.Month, &t.Date)
	if err != nil {
		return nil, err
	}
	if memberID.Valid {
		t.MemberID = &memberID.String
	}
	return &t, nil
}

func (s *TransactionStore) Create(ctx context.Context, t model.Transaction) (*model.Transaction, error) {
	if err := insertTransaction(ctx, s.db, t); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, t.ID)
}

func (s *TransactionStore) GetByID(ctx context.Context, id string) (*model.Transaction, error) {
	return getTransaction(ctx, s.db, id)
}

// List returns transactions newest first.
func (s *TransactionStore) List(ctx context.Context, f TransactionFilter) ([]model.Transaction, error) {
	var where []string
	var args []any
	if f.Kind != "" {
		where = append(where, "type = ?")
		args = append(args, f.Kind)
	}
	if f.Month != "" {
		where = append(where, "month = ?")
		args = append(args, f.Month)
	}

	query := `SELECT ` + transactionCols + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date DESC, rowid DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func insertTransaction(ctx context.Context, q querier, t model.Transaction) error {
	if !t.Kind.Valid() {
		return fmt.Errorf("insert transaction: unknown type %q", t.Kind)
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Kind, t.Amount.String(), t.MemberID, t.MemberName, t.FamilyName, t.Reason, t.Description, t.Month, t.Date.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func getTransaction(ctx context.Context, q querier, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+transactionCols+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}
