package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carriershark/backend/internal/domain/entities"
	"github.com/carriershark/backend/internal/domain/providers"
	"github.com/carriershark/backend/internal/domain/repositories"
	apperrors "github.com/carriershark/backend/pkg/errors"
)

// Upload limits. Certificates are single-page PDFs almost without exception;
// 15MB covers scanned multi-page files with margin.
const maxUploadBytes = 15 << 20

var validUploaderRoles = map[entities.UploaderRole]bool{
	entities.UploaderRoleCarrier:  true,
	entities.UploaderRoleAgent:    true,
	entities.UploaderRoleCustomer: true,
}

var validDocTypes = map[entities.DocumentType]bool{
	entities.DocumentTypeCOI:   true,
	entities.DocumentTypeOther: true,
}

// UploadDocumentInput carries one upload request
type UploadDocumentInput struct {
	CarrierID    int64
	UploaderRole entities.UploaderRole
	DocType      entities.DocumentType
	FileName     string
	Data         []byte
}

// DocumentService handles document upload and retrieval
type DocumentService struct {
	docs      repositories.InsuranceDocumentRepository
	storage   providers.ObjectStorage
	bucket    string
	keyPrefix string
}

// NewDocumentService creates a new document service
func NewDocumentService(docs repositories.InsuranceDocumentRepository, storage providers.ObjectStorage, bucket, keyPrefix string) *DocumentService {
	return &DocumentService{
		docs:      docs,
		storage:   storage,
		bucket:    bucket,
		keyPrefix: keyPrefix,
	}
}

// Upload validates the file, stores it in object storage and records the
// document row. The new document starts ON_FILE with OCR status NONE; parsing
// is a separate, explicit step.
func (s *DocumentService) Upload(ctx context.Context, input UploadDocumentInput) (*entities.InsuranceDocument, error) {
	if input.CarrierID <= 0 {
		return nil, apperrors.NewValidationError("carrier id is required")
	}
	if len(input.Data) == 0 {
		return nil, apperrors.NewValidationError("document file is empty")
	}
	if len(input.Data) > maxUploadBytes {
		return nil, apperrors.NewValidationError(fmt.Sprintf("document exceeds %dMB limit", maxUploadBytes>>20))
	}
	if !validUploaderRoles[input.UploaderRole] {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid uploader role: %s", input.UploaderRole))
	}
	if input.DocType == "" {
		input.DocType = entities.DocumentTypeCOI
	}
	if !validDocTypes[input.DocType] {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid document type: %s", input.DocType))
	}

	id := uuid.New().String()
	key := s.objectKey(input.CarrierID, id, input.FileName)

	if err := s.storage.Put(ctx, s.bucket, key, input.Data, "application/pdf"); err != nil {
		return nil, err
	}

	doc := &entities.InsuranceDocument{
		ID:           id,
		CarrierID:    input.CarrierID,
		UploaderRole: input.UploaderRole,
		DocType:      input.DocType,
		StorageKey:   key,
		OCRStatus:    entities.OCRStatusNone,
		Status:       entities.DocumentStatusOnFile,
		UploadedAt:   time.Now().UTC(),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	log.Info().
		Str("document_id", doc.ID).
		Int64("carrier_id", doc.CarrierID).
		Str("storage_key", key).
		Int("size_bytes", len(input.Data)).
		Msg("insurance document uploaded")

	return doc, nil
}

// GetDocument retrieves a document by id
func (s *DocumentService) GetDocument(ctx context.Context, id string) (*entities.InsuranceDocument, error) {
	if id == "" {
		return nil, apperrors.NewValidationError("document id is required")
	}
	return s.docs.GetByID(ctx, id)
}

// ListDocuments retrieves all documents for a carrier, newest first
func (s *DocumentService) ListDocuments(ctx context.Context, carrierID int64) ([]*entities.InsuranceDocument, error) {
	if carrierID <= 0 {
		return nil, apperrors.NewValidationError("carrier id is required")
	}
	return s.docs.ListByCarrier(ctx, carrierID)
}

func (s *DocumentService) objectKey(carrierID int64, id, fileName string) string {
	ext := ".pdf"
	if idx := strings.LastIndex(fileName, "."); idx >= 0 && idx < len(fileName)-1 {
		ext = strings.ToLower(fileName[idx:])
	}
	return fmt.Sprintf("%s/%d/%s%s", s.keyPrefix, carrierID, id, ext)
}
