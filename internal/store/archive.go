package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/kazna/internal/model"
)

type ArchiveStore struct {
	db *sql.DB
}

func NewArchiveStore(db *sql.DB) *ArchiveStore {
	return &ArchiveStore{db: db}
}

const archiveCols = `id, month, s3_key, status, size_bytes, error, created_at, completed_at`

func scanArchive(scanner interface{ Scan(...any) error }) (*model.Archive, error) {
	var a model.Archive
	var completedAt sql.NullTime
	err := scanner.Scan(&a.ID, &a.Month, &a.S3Key, &a.Status, &a.SizeBytes, &a.Error, &a.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return &a, nil
}

func (s *ArchiveStore) Create(month, s3Key string) (*model.Archive, error) {
	result, err := s.db.Exec(
		`INSERT INTO archives (month, s3_key, status, created_at) VALUES (?, ?, ?, ?)`,
		month, s3Key, model.ArchiveStatusPending, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ArchiveStore) GetByID(id int64) (*model.Archive, error) {
	row := s.db.QueryRow(`SELECT `+archiveCols+` FROM archives WHERE id = ?`, id)
	a, err := scanArchive(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get archive %d: %w", id, err)
	}
	return a, nil
}

func (s *ArchiveStore) List(limit int) ([]model.Archive, error) {
	rows, err := s.db.Query(
		`SELECT `+archiveCols+` FROM archives ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	var archives []model.Archive
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		archives = append(archives, *a)
	}
	return archives, rows.Err()
}

func (s *ArchiveStore) MarkUploading(id int64) error {
	_, err := s.db.Exec(`UPDATE archives SET status = ? WHERE id = ?`, model.ArchiveStatusUploading, id)
	if err != nil {
		return fmt.Errorf("mark archive uploading: %w", err)
	}
	return nil
}

func (s *ArchiveStore) MarkCompleted(id, sizeBytes int64) error {
	_, err := s.db.Exec(
		`UPDATE archives SET status = ?, size_bytes = ?, completed_at = ? WHERE id = ?`,
		model.ArchiveStatusCompleted, sizeBytes, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark archive completed: %w", err)
	}
	return nil
}

func (s *ArchiveStore) MarkFailed(id int64, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE archives SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		model.ArchiveStatusFailed, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark archive failed: %w", err)
	}
	return nil
}
