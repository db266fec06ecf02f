package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/kazna/internal/model"
)

type FamilyStore struct {
	db *sql.DB
}

func NewFamilyStore(db *sql.DB) *FamilyStore {
	return &FamilyStore{db: db}
}

const familyCols = `id, name, created_at`

const memberCols = `id, family_id, name, paid, payment_date, deposit_tx_id, position, version, created_at`

func scanFamily(scanner interface{ Scan(...any) error }) (*model.Family, error) {
	var f model.Family
	if err := scanner.Scan(&f.ID, &f.Name, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.Members = []model.Member{}
	return &f, nil
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	var paymentDate sql.NullTime
	var depositTxID sql.NullString
	err := scanner.Scan(&m.ID, &m.FamilyID, &m.Name, &m.Paid, &paymentDate, &depositTxID, &m.Position, &m.Version, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if paymentDate.Valid {
		m.PaymentDate = &paymentDate.Time
	}
	if depositTxID.Valid {
		m.DepositTxID = &depositTxID.String
	}
	return &m, nil
}

func (s *FamilyStore) Create(ctx context.Context, id, name string, createdAt time.Time) (*model.Family, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO families (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, createdAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID returns the family with its members, or nil if it does not exist.
func (s *FamilyStore) GetByID(ctx context.Context, id string) (*model.Family, error) {
	return getFamily(ctx, s.db, id)
}

// List returns every family in creation order, each with its members in
// display order.
func (s *FamilyStore) List(ctx context.Context) ([]model.Family, error) {
	return listFamilies(ctx, s.db)
}

// AddMember appends a member after the family's current last member.
// It returns ErrNotFound when the family does not exist.
func (s *FamilyStore) AddMember(ctx context.Context, familyID, memberID, name string, createdAt time.Time) (*model.Member, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM families WHERE id = ?`, familyID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check family: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	var position int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM members WHERE family_id = ?`, familyID,
	).Scan(&position)
	if err != nil {
		return nil, fmt.Errorf("next member position: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO members (id, family_id, name, paid, position, version, created_at)
		 VALUES (?, ?, ?, 0, ?, 1, ?)`,
		memberID, familyID, name, position, createdAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}

	m, err := getMember(ctx, tx, familyID, memberID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return m, nil
}

// GetMember returns the member only when it belongs to the given family.
func (s *FamilyStore) GetMember(ctx context.Context, familyID, memberID string) (*model.Member, error) {
	return getMember(ctx, s.db, familyID, memberID)
}

func getFamily(ctx context.Context, q querier, id string) (*model.Family, error) {
	row := q.QueryRowContext(ctx, `SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+memberCols+` FROM members WHERE family_id = ? ORDER BY position, created_at`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list family members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		f.Members = append(f.Members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return f, nil
}

func listFamilies(ctx context.Context, q querier) ([]model.Family, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+familyCols+` FROM families ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list families: %w", err)
	}
	families := []model.Family{}
	index := map[string]int{}
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan family: %w", err)
		}
		index[f.ID] = len(families)
		families = append(families, *f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate families: %w", err)
	}

	rows, err = q.QueryContext(ctx,
		`SELECT `+memberCols+` FROM members ORDER BY family_id, position, created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if i, ok := index[m.FamilyID]; ok {
			families[i].Members = append(families[i].Members, *m)
		}
	}
	return families, rows.Err()
}

func getMember(ctx context.Context, q querier, familyID, memberID string) (*model.Member, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+memberCols+` FROM members WHERE id = ? AND family_id = ?`, memberID, familyID,
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}
