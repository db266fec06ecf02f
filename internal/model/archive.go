package model

import "time"

type ArchiveStatus string

const (
	ArchiveStatusPending   ArchiveStatus = "pending"
	ArchiveStatusUploading ArchiveStatus = "uploading"
	ArchiveStatusCompleted ArchiveStatus = "completed"
	ArchiveStatusFailed    ArchiveStatus = "failed"
)

// Archive records one encrypted month-close statement upload.
type Archive struct {
	ID          int64         `json:"id"`
	Month       string        `json:"month"`
	S3Key       string        `json:"s3_key"`
	Status      ArchiveStatus `json:"status"`
	SizeBytes   int64         `json:"size_bytes"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}
