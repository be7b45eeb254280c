package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carriershark/backend/internal/application/acord"
	"github.com/carriershark/backend/internal/domain/entities"
	"github.com/carriershark/backend/internal/domain/providers"
	"github.com/carriershark/backend/internal/domain/repositories"
	"github.com/carriershark/backend/internal/infrastructure/observability"
	apperrors "github.com/carriershark/backend/pkg/errors"
)

// PromotionThreshold is the minimum parse confidence that promotes a parse
// into the carrier's coverage snapshot. Below it the document is flagged for
// review instead.
const PromotionThreshold = 70

// ParseDocumentResult is the orchestrator's response for one parse request
type ParseDocumentResult struct {
	DocumentID      string                `json:"document_id"`
	CarrierID       int64                 `json:"carrier_id"`
	Provider        string                `json:"provider"`
	ParseResult     *entities.ParseResult `json:"parse_result"`
	Promoted        bool                  `json:"promoted"`
	SnapshotVersion *int                  `json:"snapshot_version"`
	Reused          bool                  `json:"reused"`
}

// DocumentParseService drives a document through OCR, parsing and snapshot
// promotion. One instance serves all documents; per-document exclusivity
// comes from the repository's row lock, not from this type.
type DocumentParseService struct {
	docs     repositories.InsuranceDocumentRepository
	coverage repositories.CoverageRepository
	storage  providers.ObjectStorage
	ocr      providers.DocumentOCRProvider
	bucket   string
	metrics  *observability.Metrics
}

// NewDocumentParseService creates a new document parse service. metrics may
// be nil.
func NewDocumentParseService(
	docs repositories.InsuranceDocumentRepository,
	coverage repositories.CoverageRepository,
	storage providers.ObjectStorage,
	ocr providers.DocumentOCRProvider,
	bucket string,
	metrics *observability.Metrics,
) *DocumentParseService {
	return &DocumentParseService{
		docs:     docs,
		coverage: coverage,
		storage:  storage,
		ocr:      ocr,
		bucket:   bucket,
		metrics:  metrics,
	}
}

// ParseDocument runs the full pipeline for one document. Re-invoking on a
// DONE document replays the stored result without new OCR work; a concurrent
// run on the same document fails fast with a conflict.
func (s *DocumentParseService) ParseDocument(ctx context.Context, documentID string) (*ParseDocumentResult, error) {
	if documentID == "" {
		return nil, apperrors.NewValidationError("document id is required")
	}

	doc, claimed, err := s.docs.Claim(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if !claimed {
		log.Info().Str("document_id", documentID).Msg("reusing stored parse result")
		return &ParseDocumentResult{
			DocumentID:  doc.ID,
			CarrierID:   doc.CarrierID,
			Provider:    doc.OCRProvider,
			ParseResult: doc.ParseResult,
			Reused:      true,
		}, nil
	}

	result, err := s.process(ctx, doc)
	if err != nil {
		// The claim transaction is already committed, so the failure write is
		// best-effort outside it; the triggering error is surfaced regardless
		if markErr := s.docs.MarkFailed(ctx, doc.ID, err.Error()); markErr != nil {
			log.Error().Err(markErr).Str("document_id", doc.ID).Msg("failed to record document failure")
		}
		return nil, err
	}
	return result, nil
}

// process runs Steps 1-5: fetch bytes, OCR, parse, persist, promote. External
// calls deliberately happen outside any open transaction so the row lock is
// never held across slow network I/O.
func (s *DocumentParseService) process(ctx context.Context, doc *entities.InsuranceDocument) (*ParseDocumentResult, error) {
	pdf, err := s.storage.Get(ctx, s.bucket, doc.StorageKey)
	if err != nil {
		return nil, err
	}

	ocrStarted := time.Now()
	normalized, err := s.ocr.NormalizeDocument(ctx, pdf, fmt.Sprintf("%d/%s", doc.CarrierID, doc.ID))
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		observability.RecordOCRJobMetric(ctx, s.metrics, normalized.Provider, time.Since(ocrStarted))
	}

	if strings.TrimSpace(normalized.FullText) == "" {
		return nil, apperrors.NewRemoteFailedError("OCR succeeded but produced no usable text")
	}

	parsed := acord.Parse(normalized.FullText, entities.OCRProvenance{
		Provider: normalized.Provider,
		Meta: map[string]any{
			"job_id":     normalized.JobID,
			"job_status": normalized.JobStatus,
			"pages":      normalized.Meta.Pages,
			"warnings":   normalized.Meta.Warnings,
		},
	})

	docLog := observability.DocumentLogger(ctx, doc.ID, doc.CarrierID)
	docLog.Info().
		Str("provider", normalized.Provider).
		Int("confidence", parsed.Confidence).
		Bool("acord_likely", parsed.ACORDLikely).
		Msg("certificate parsed")

	now := time.Now().UTC()
	update := repositories.OCRUpdate{
		ExtractedText:   normalized.FullText,
		Provider:        normalized.Provider,
		JobID:           normalized.JobID,
		AvgConfidence:   normalizeConfidence(normalized.Confidence.Average),
		OCRCompletedAt:  now,
		ParseResult:     &parsed,
		ParseConfidence: parsed.Confidence,
		ParsedAt:        now,
	}
	if parsed.Confidence < PromotionThreshold {
		update.Status = entities.DocumentStatusNeedsReview
	}

	if err := s.docs.SaveOCRResult(ctx, doc.ID, update); err != nil {
		return nil, err
	}

	result := &ParseDocumentResult{
		DocumentID:  doc.ID,
		CarrierID:   doc.CarrierID,
		Provider:    normalized.Provider,
		ParseResult: &parsed,
	}

	if parsed.Confidence >= PromotionThreshold {
		limits := entities.CoverageLimits{
			AutoLiability:    parsed.Extracted.AutoLiabilityLimit,
			Cargo:            parsed.Extracted.CargoLimit,
			GeneralLiability: parsed.Extracted.GeneralLiabilityLimit,
		}
		version, err := s.coverage.Promote(ctx, doc.CarrierID, limits, &parsed, parsed.Extracted.DetectedCoverageTypes)
		if err != nil {
			return nil, err
		}
		result.Promoted = true
		result.SnapshotVersion = &version

		docLog.Info().
			Int("snapshot_version", version).
			Msg("coverage snapshot promoted")
	}

	if s.metrics != nil {
		observability.RecordParseMetric(ctx, s.metrics, parsed.Confidence, result.Promoted)
	}
	return result, nil
}

// normalizeConfidence converts the provider's 0-100 average to the [0,1]
// scale stored on the document. Providers hand the orchestrator 0-100 by
// contract (see ConfidenceSummary); out-of-range values are clamped.
func normalizeConfidence(avg *float64) *float64 {
	if avg == nil {
		return nil
	}
	v := *avg / 100
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return &v
}
