// Package archive uploads an encrypted statement of each closed month to
// S3-compatible storage when a rollover is applied.
package archive

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/kazna/internal/event"
	"github.com/dukerupert/kazna/internal/ledger"
	"github.com/dukerupert/kazna/internal/model"
	"github.com/dukerupert/kazna/internal/rollover"
	"github.com/dukerupert/kazna/internal/store"
)

var (
	ErrDisabled = errors.New("archive storage not configured")
	ErrNotFound = errors.New("archive not found")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

type Config struct {
	S3         S3Config
	Passphrase string
	Prefix     string
}

// Enabled reports whether uploads can run: bucket, credentials and a
// passphrase are all required.
func (c Config) Enabled() bool {
	return c.S3.Bucket != "" && c.S3.AccessKey != "" && c.S3.SecretKey != "" && c.Passphrase != ""
}

// Statement is the plaintext document stored for one closed month.
type Statement struct {
	Month        string              `json:"month"`
	Label        string              `json:"label"`
	Trigger      string              `json:"trigger"`
	ClosedAt     time.Time           `json:"closed_at"`
	Families     []model.Family      `json:"families"`
	Transactions []model.Transaction `json:"transactions"`
	// Summary covers the month's transactions only.
	Summary ledger.Summary `json:"summary"`
}

type Manager struct {
	cfg      Config
	client   s3Client
	archives *store.ArchiveStore
	txs      *store.TransactionStore
	logger   *slog.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		archives: store.NewArchiveStore(db),
		txs:      store.NewTransactionStore(db),
		logger:   logger.With("component", "archive"),
		now:      time.Now,
	}
	if cfg.Enabled() {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) Enabled() bool {
	return m.client != nil
}

// Observe archives the closing month of every applied rollover in the
// background.
func (m *Manager) Observe(ctx context.Context, e event.Event) {
	if m.client == nil || e.Entity != event.EntityRollover || e.Action != event.ActionApplied {
		return
	}
	applied, ok := e.Payload.(*rollover.Applied)
	if !ok {
		return
	}
	ctx = context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if _, err := m.Archive(ctx, applied); err != nil {
			m.logger.Error("archive failed", "month", applied.ClosingMonth, "error", err)
		}
	}()
}

// Wait blocks until background uploads finish.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Archive builds, encrypts and uploads the statement for a.ClosingMonth.
func (m *Manager) Archive(ctx context.Context, a *rollover.Applied) (*model.Archive, error) {
	if m.client == nil {
		return nil, ErrDisabled
	}

	txs, err := m.txs.List(ctx, store.TransactionFilter{Month: a.ClosingMonth})
	if err != nil {
		return nil, err
	}
	families := a.Outcome.Families
	if families == nil {
		families = []model.Family{}
	}
	now := m.now().UTC()
	plain, err := json.Marshal(Statement{
		Month:        a.ClosingMonth,
		Label:        a.Label,
		Trigger:      a.Trigger,
		ClosedAt:     now,
		Families:     families,
		Transactions: txs,
		Summary:      ledger.Summarize(families, txs),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal statement: %w", err)
	}

	key := fmt.Sprintf("%sstatement-%s-%s.json.enc", m.cfg.Prefix, a.ClosingMonth, now.Format("20060102T150405Z"))
	record, err := m.archives.Create(a.ClosingMonth, key)
	if err != nil {
		return nil, err
	}
	if err := m.archives.MarkUploading(record.ID); err != nil {
		return nil, err
	}

	sealed, err := Seal(plain, m.cfg.Passphrase)
	if err != nil {
		return nil, m.fail(record.ID, fmt.Errorf("encrypt: %w", err))
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return nil, m.fail(record.ID, fmt.Errorf("upload to s3: %w", err))
	}

	if err := m.archives.MarkCompleted(record.ID, int64(len(sealed))); err != nil {
		return nil, err
	}
	m.logger.Info("statement archived", "month", a.ClosingMonth, "key", key, "size", len(sealed))
	return m.archives.GetByID(record.ID)
}

func (m *Manager) fail(id int64, err error) error {
	if markErr := m.archives.MarkFailed(id, err.Error()); markErr != nil {
		m.logger.Error("mark archive failed", "archive_id", id, "error", markErr)
	}
	return err
}

// List returns the most recent archive records.
func (m *Manager) List(limit int) ([]model.Archive, error) {
	return m.archives.List(limit)
}

// Download streams an encrypted statement from storage.
func (m *Manager) Download(ctx context.Context, id int64) (io.ReadCloser, *model.Archive, error) {
	if m.client == nil {
		return nil, nil, ErrDisabled
	}

	record, err := m.archives.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if record == nil || record.Status != model.ArchiveStatusCompleted {
		return nil, nil, ErrNotFound
	}

	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("download from s3: %w", err)
	}
	return result.Body, record, nil
}
