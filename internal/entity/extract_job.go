package entity

import (
	"time"

	"github.com/google/uuid"
)

// ExtractJob represents one import attempt of a document.
type ExtractJob struct {
	ID                   uuid.UUID  `json:"id"`
	DocumentID           string     `json:"document_id"`
	SourcePath           string     `json:"source_path"`
	Format               string     `json:"format"`
	Status               string     `json:"status"`
	StartedAt            time.Time  `json:"started_at"`
	FinishedAt           *time.Time `json:"finished_at,omitempty"`
	Method               *string    `json:"method,omitempty"`
	Language             *string    `json:"language,omitempty"`
	ExtractionConfidence *float64   `json:"extraction_confidence,omitempty"`
	NeedsReview          bool       `json:"needs_review"`
	ErrorMessage         *string    `json:"error_message,omitempty"`
}

// StoredPolicy is a persisted record plus bookkeeping columns.
type StoredPolicy struct {
	Record      PolicyRecord `json:"record"`
	SourcePath  string       `json:"source_path"`
	ContentHash string       `json:"content_hash"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
