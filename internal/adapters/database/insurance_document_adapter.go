package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/carriershark/backend/internal/domain/entities"
	"github.com/carriershark/backend/internal/domain/repositories"
	"github.com/carriershark/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/carriershark/backend/pkg/errors"
)

var documentColumns = []any{
	"id", "carrier_id", "uploader_role", "doc_type", "storage_key",
	"ocr_status", "ocr_provider", "ocr_job_id", "ocr_avg_confidence",
	"extracted_text", "parse_result", "parse_confidence", "status",
	"uploaded_at", "ocr_started_at", "ocr_completed_at", "parsed_at",
	"attempts", "last_error",
}

// InsuranceDocumentAdapter implements InsuranceDocumentRepository
type InsuranceDocumentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewInsuranceDocumentAdapter creates a new insurance document adapter
func NewInsuranceDocumentAdapter(client *postgres.Client) repositories.InsuranceDocumentRepository {
	return &InsuranceDocumentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a new document row
func (a *InsuranceDocumentAdapter) Create(ctx context.Context, doc *entities.InsuranceDocument) error {
	record := goqu.Record{
		"id":            doc.ID,
		"carrier_id":    doc.CarrierID,
		"uploader_role": doc.UploaderRole,
		"doc_type":      doc.DocType,
		"storage_key":   doc.StorageKey,
		"ocr_status":    doc.OCRStatus,
		"status":        doc.Status,
		"uploaded_at":   doc.UploadedAt,
		"attempts":      doc.Attempts,
	}

	query, args, err := a.db.Insert("insurance_documents").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create insurance document", err)
	}

	return nil
}

// GetByID retrieves a document by id
func (a *InsuranceDocumentAdapter) GetByID(ctx context.Context, id string) (*entities.InsuranceDocument, error) {
	query, args, err := a.db.Select(documentColumns...).
		From("insurance_documents").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	doc, err := scanDocument(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("insurance document %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get insurance document", err)
	}
	return doc, nil
}

// ListByCarrier retrieves all documents for a carrier, newest first
func (a *InsuranceDocumentAdapter) ListByCarrier(ctx context.Context, carrierID int64) ([]*entities.InsuranceDocument, error) {
	query, args, err := a.db.Select(documentColumns...).
		From("insurance_documents").
		Where(goqu.Ex{"carrier_id": carrierID}).
		Order(goqu.I("uploaded_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list insurance documents", err)
	}
	defer rows.Close()

	var docs []*entities.InsuranceDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan insurance document", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Claim transitions the document to PROCESSING under a row lock. The lock is
// held only for the claim transaction, never across network calls.
func (a *InsuranceDocumentAdapter) Claim(ctx context.Context, id string) (*entities.InsuranceDocument, bool, error) {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to begin claim transaction", err)
	}
	defer tx.Rollback()

	query, args, err := a.db.Select(documentColumns...).
		From("insurance_documents").
		Where(goqu.Ex{"id": id}).
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to build claim query", err)
	}

	doc, err := scanDocument(tx.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, false, apperrors.NewNotFoundError(fmt.Sprintf("insurance document %s not found", id))
	}
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to lock insurance document", err)
	}

	if doc.OCRStatus == entities.OCRStatusProcessing {
		return nil, false, apperrors.NewConflictError(fmt.Sprintf("insurance document %s is already processing", id))
	}

	if doc.OCRStatus == entities.OCRStatusDone && doc.ParseResult != nil {
		if err := tx.Commit(); err != nil {
			return nil, false, apperrors.NewInternalError("failed to commit claim transaction", err)
		}
		return doc, false, nil
	}

	now := time.Now().UTC()
	update, args, err := a.db.Update("insurance_documents").
		Set(goqu.Record{
			"ocr_status":     entities.OCRStatusProcessing,
			"attempts":       goqu.L("attempts + 1"),
			"ocr_started_at": now,
			"last_error":     "",
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to build claim update", err)
	}

	if _, err := tx.ExecContext(ctx, update, args...); err != nil {
		return nil, false, apperrors.NewInternalError("failed to claim insurance document", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, apperrors.NewInternalError("failed to commit claim transaction", err)
	}

	doc.OCRStatus = entities.OCRStatusProcessing
	doc.Attempts++
	doc.OCRStartedAt = &now
	doc.LastError = ""
	return doc, true, nil
}

// SaveOCRResult persists OCR output and parse results, marking the document
// DONE
func (a *InsuranceDocumentAdapter) SaveOCRResult(ctx context.Context, id string, update repositories.OCRUpdate) error {
	parseJSON, err := json.Marshal(update.ParseResult)
	if err != nil {
		return apperrors.NewInternalError("failed to encode parse result", err)
	}

	record := goqu.Record{
		"ocr_status":         entities.OCRStatusDone,
		"extracted_text":     update.ExtractedText,
		"ocr_provider":       update.Provider,
		"ocr_job_id":         update.JobID,
		"ocr_avg_confidence": update.AvgConfidence,
		"ocr_completed_at":   update.OCRCompletedAt,
		"parse_result":       parseJSON,
		"parse_confidence":   update.ParseConfidence,
		"parsed_at":          update.ParsedAt,
	}
	if update.Status != "" {
		record["status"] = update.Status
	}

	query, args, err := a.db.Update("insurance_documents").
		Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build result update", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to save OCR result", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("insurance document %s not found", id))
	}
	return nil
}

// MarkFailed records a failure message and flips the document to FAILED
func (a *InsuranceDocumentAdapter) MarkFailed(ctx context.Context, id, message string) error {
	query, args, err := a.db.Update("insurance_documents").
		Set(goqu.Record{
			"ocr_status":       entities.OCRStatusFailed,
			"last_error":       message,
			"ocr_completed_at": time.Now().UTC(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build failure update", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to mark insurance document failed", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*entities.InsuranceDocument, error) {
	doc := &entities.InsuranceDocument{}
	var (
		ocrProvider, ocrJobID, extractedText, lastError sql.NullString
		avgConfidence                                   sql.NullFloat64
		parseResult                                     []byte
		parseConfidence                                 sql.NullInt64
		ocrStartedAt, ocrCompletedAt, parsedAt          sql.NullTime
	)

	err := row.Scan(
		&doc.ID,
		&doc.CarrierID,
		&doc.UploaderRole,
		&doc.DocType,
		&doc.StorageKey,
		&doc.OCRStatus,
		&ocrProvider,
		&ocrJobID,
		&avgConfidence,
		&extractedText,
		&parseResult,
		&parseConfidence,
		&doc.Status,
		&doc.UploadedAt,
		&ocrStartedAt,
		&ocrCompletedAt,
		&parsedAt,
		&doc.Attempts,
		&lastError,
	)
	if err != nil {
		return nil, err
	}

	doc.OCRProvider = ocrProvider.String
	doc.OCRJobID = ocrJobID.String
	doc.ExtractedText = extractedText.String
	doc.LastError = lastError.String
	if avgConfidence.Valid {
		doc.OCRAvgConfidence = &avgConfidence.Float64
	}
	if parseConfidence.Valid {
		v := int(parseConfidence.Int64)
		doc.ParseConfidence = &v
	}
	if ocrStartedAt.Valid {
		doc.OCRStartedAt = &ocrStartedAt.Time
	}
	if ocrCompletedAt.Valid {
		doc.OCRCompletedAt = &ocrCompletedAt.Time
	}
	if parsedAt.Valid {
		doc.ParsedAt = &parsedAt.Time
	}
	if len(parseResult) > 0 {
		var pr entities.ParseResult
		if err := json.Unmarshal(parseResult, &pr); err == nil {
			doc.ParseResult = &pr
		}
	}
	return doc, nil
}
