package store

import (
	"database/sql"
	"fmt"
)

// AdminStore manages the admins table. A row's existence alone grants
// administrator privilege.
type AdminStore struct {
	db *sql.DB
}

func NewAdminStore(db *sql.DB) *AdminStore {
	return &AdminStore{db: db}
}

func (s *AdminStore) Grant(userID int64) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO admins (user_id) VALUES (?)`, userID)
	if err != nil {
		return fmt.Errorf("grant admin: %w", err)
	}
	return nil
}

func (s *AdminStore) Revoke(userID int64) error {
	_, err := s.db.Exec(`DELETE FROM admins WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("revoke admin: %w", err)
	}
	return nil
}

func (s *AdminStore) IsAdmin(userID int64) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM admins WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return count > 0, nil
}
