package repositories

import (
	"context"
	"time"

	"github.com/carriershark/backend/internal/domain/entities"
)

// OCRUpdate carries everything persisted after a successful OCR + parse pass
type OCRUpdate struct {
	ExtractedText   string
	Provider        string
	JobID           string
	AvgConfidence   *float64 // normalized to [0,1]
	OCRCompletedAt  time.Time
	ParseResult     *entities.ParseResult
	ParseConfidence int
	ParsedAt        time.Time
	Status          entities.DocumentStatus
}

// InsuranceDocumentRepository defines persistence for insurance documents
type InsuranceDocumentRepository interface {
	// Create inserts a new document row
	Create(ctx context.Context, doc *entities.InsuranceDocument) error

	// GetByID retrieves a document by id
	GetByID(ctx context.Context, id string) (*entities.InsuranceDocument, error)

	// ListByCarrier retrieves all documents for a carrier, newest first
	ListByCarrier(ctx context.Context, carrierID int64) ([]*entities.InsuranceDocument, error)

	// Claim transitions the document to PROCESSING under a row lock.
	// Returns (doc, true) when the claim succeeded, (doc, false) when the
	// document is already DONE with a stored parse result, and a conflict
	// error when another run holds the document.
	Claim(ctx context.Context, id string) (*entities.InsuranceDocument, bool, error)

	// SaveOCRResult persists OCR output and parse results, marking the
	// document DONE
	SaveOCRResult(ctx context.Context, id string, update OCRUpdate) error

	// MarkFailed records a failure message and flips the document to FAILED.
	// Best-effort: callers surface the triggering error regardless.
	MarkFailed(ctx context.Context, id, message string) error
}
