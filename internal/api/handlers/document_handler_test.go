package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carriershark/backend/internal/api/handlers"
	"github.com/carriershark/backend/internal/application/services"
	"github.com/carriershark/backend/internal/domain/entities"
	"github.com/carriershark/backend/internal/domain/providers"
	"github.com/carriershark/backend/internal/domain/repositories"
	apperrors "github.com/carriershark/backend/pkg/errors"
)

// Stubs

type stubDocumentRepo struct {
	created   *entities.InsuranceDocument
	getDoc    *entities.InsuranceDocument
	getErr    error
	listDocs  []*entities.InsuranceDocument
	claimDoc  *entities.InsuranceDocument
	claimed   bool
	claimErr  error
	savedID   string
	failedMsg string
}

func (s *stubDocumentRepo) Create(ctx context.Context, doc *entities.InsuranceDocument) error {
	s.created = doc
	return nil
}

func (s *stubDocumentRepo) GetByID(ctx context.Context, id string) (*entities.InsuranceDocument, error) {
	return s.getDoc, s.getErr
}

func (s *stubDocumentRepo) ListByCarrier(ctx context.Context, carrierID int64) ([]*entities.InsuranceDocument, error) {
	return s.listDocs, nil
}

func (s *stubDocumentRepo) Claim(ctx context.Context, id string) (*entities.InsuranceDocument, bool, error) {
	return s.claimDoc, s.claimed, s.claimErr
}

func (s *stubDocumentRepo) SaveOCRResult(ctx context.Context, id string, update repositories.OCRUpdate) error {
	s.savedID = id
	return nil
}

func (s *stubDocumentRepo) MarkFailed(ctx context.Context, id, message string) error {
	s.failedMsg = message
	return nil
}

type stubStorage struct {
	putKey string
	data   map[string][]byte
}

func (s *stubStorage) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	s.putKey = key
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.data[key] = data
	return nil
}

func (s *stubStorage) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	return []byte("%PDF-1.4"), nil
}

func (s *stubStorage) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	return nil, nil
}

type stubOCR struct {
	doc *providers.NormalizedDocument
	err error
}

func (s *stubOCR) Name() string { return "textract" }

func (s *stubOCR) NormalizeDocument(ctx context.Context, pdf []byte, keyHint string) (*providers.NormalizedDocument, error) {
	return s.doc, s.err
}

type stubCoverageRepo struct {
	version  int
	snapshot *entities.CoverageSnapshot
	lines    []*entities.CoverageLine
	snapErr  error
}

func (s *stubCoverageRepo) Promote(ctx context.Context, carrierID int64, limits entities.CoverageLimits, raw *entities.ParseResult, coverageTypes []entities.CoverageType) (int, error) {
	return s.version, nil
}

func (s *stubCoverageRepo) GetSnapshot(ctx context.Context, carrierID int64) (*entities.CoverageSnapshot, error) {
	return s.snapshot, s.snapErr
}

func (s *stubCoverageRepo) GetLines(ctx context.Context, carrierID int64, version int) ([]*entities.CoverageLine, error) {
	return s.lines, nil
}

// Helpers

func newHandler(docs *stubDocumentRepo, coverage *stubCoverageRepo, ocr *stubOCR) *handlers.DocumentHandler {
	storage := &stubStorage{}
	documentService := services.NewDocumentService(docs, storage, "test-bucket", "coi")
	parseService := services.NewDocumentParseService(docs, coverage, storage, ocr, "test-bucket", nil)
	return handlers.NewDocumentHandler(documentService, parseService)
}

func multipartBody(t *testing.T, fileName string, content []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("uploader_role", "AGENT"))
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

// Tests

func TestUploadDocument(t *testing.T) {
	t.Run("creates document from multipart upload", func(t *testing.T) {
		docs := &stubDocumentRepo{}
		handler := newHandler(docs, &stubCoverageRepo{}, &stubOCR{})

		body, contentType := multipartBody(t, "certificate.pdf", []byte("%PDF-1.4"))
		req := httptest.NewRequest(http.MethodPost, "/api/carriers/42/documents", body)
		req.Header.Set("Content-Type", contentType)
		req.SetPathValue("carrierId", "42")
		rec := httptest.NewRecorder()

		handler.UploadDocument(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		require.NotNil(t, docs.created)
		assert.Equal(t, int64(42), docs.created.CarrierID)
		assert.Equal(t, entities.UploaderRoleAgent, docs.created.UploaderRole)
		assert.Equal(t, entities.OCRStatusNone, docs.created.OCRStatus)

		var payload entities.InsuranceDocument
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Equal(t, docs.created.ID, payload.ID)
	})

	t.Run("rejects non-numeric carrier id", func(t *testing.T) {
		handler := newHandler(&stubDocumentRepo{}, &stubCoverageRepo{}, &stubOCR{})

		req := httptest.NewRequest(http.MethodPost, "/api/carriers/abc/documents", nil)
		req.SetPathValue("carrierId", "abc")
		rec := httptest.NewRecorder()

		handler.UploadDocument(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects missing file part", func(t *testing.T) {
		handler := newHandler(&stubDocumentRepo{}, &stubCoverageRepo{}, &stubOCR{})

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		require.NoError(t, writer.WriteField("uploader_role", "AGENT"))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/carriers/42/documents", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.SetPathValue("carrierId", "42")
		rec := httptest.NewRecorder()

		handler.UploadDocument(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects invalid uploader role", func(t *testing.T) {
		handler := newHandler(&stubDocumentRepo{}, &stubCoverageRepo{}, &stubOCR{})

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "certificate.pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4"))
		require.NoError(t, err)
		require.NoError(t, writer.WriteField("uploader_role", "INTRUDER"))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/carriers/42/documents", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.SetPathValue("carrierId", "42")
		rec := httptest.NewRecorder()

		handler.UploadDocument(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetDocument(t *testing.T) {
	t.Run("returns document", func(t *testing.T) {
		docs := &stubDocumentRepo{
			getDoc: &entities.InsuranceDocument{ID: "doc-1", CarrierID: 42, Status: entities.DocumentStatusOnFile},
		}
		handler := newHandler(docs, &stubCoverageRepo{}, &stubOCR{})

		req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-1", nil)
		req.SetPathValue("id", "doc-1")
		rec := httptest.NewRecorder()

		handler.GetDocument(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("maps not found to 404", func(t *testing.T) {
		docs := &stubDocumentRepo{getErr: apperrors.NewNotFoundError("insurance document missing not found")}
		handler := newHandler(docs, &stubCoverageRepo{}, &stubOCR{})

		req := httptest.NewRequest(http.MethodGet, "/api/documents/missing", nil)
		req.SetPathValue("id", "missing")
		rec := httptest.NewRecorder()

		handler.GetDocument(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestParseDocument(t *testing.T) {
	highConfidence := `CERTIFICATE OF LIABILITY INSURANCE
PRODUCER
INSURED
COVERAGES
AUTOMOBILE LIABILITY 04/01/2024 04/01/2025
COMBINED SINGLE LIMIT $1,000,000
DESCRIPTION OF OPERATIONS`

	t.Run("runs the pipeline and promotes", func(t *testing.T) {
		avg := 98.2
		docs := &stubDocumentRepo{
			claimDoc: &entities.InsuranceDocument{ID: "doc-1", CarrierID: 42, StorageKey: "coi/42/doc-1.pdf"},
			claimed:  true,
		}
		ocr := &stubOCR{doc: &providers.NormalizedDocument{
			Provider:   "textract",
			JobID:      "job-1",
			JobStatus:  "SUCCEEDED",
			FullText:   highConfidence,
			Confidence: providers.ConfidenceSummary{Average: &avg, LineCount: 7},
		}}
		handler := newHandler(docs, &stubCoverageRepo{version: 2}, ocr)

		req := httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/parse", nil)
		req.SetPathValue("id", "doc-1")
		rec := httptest.NewRecorder()

		handler.ParseDocument(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var result services.ParseDocumentResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.Promoted)
		require.NotNil(t, result.SnapshotVersion)
		assert.Equal(t, 2, *result.SnapshotVersion)
		assert.Equal(t, "doc-1", docs.savedID)
	})

	t.Run("maps single-flight conflict to 409", func(t *testing.T) {
		docs := &stubDocumentRepo{claimErr: apperrors.NewConflictError("insurance document doc-1 is already processing")}
		handler := newHandler(docs, &stubCoverageRepo{}, &stubOCR{})

		req := httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/parse", nil)
		req.SetPathValue("id", "doc-1")
		rec := httptest.NewRecorder()

		handler.ParseDocument(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("maps OCR timeout to 504", func(t *testing.T) {
		docs := &stubDocumentRepo{
			claimDoc: &entities.InsuranceDocument{ID: "doc-1", CarrierID: 42, StorageKey: "coi/42/doc-1.pdf"},
			claimed:  true,
		}
		ocr := &stubOCR{err: apperrors.NewTimeoutError("document analysis timed out after 150s (last status IN_PROGRESS)")}
		handler := newHandler(docs, &stubCoverageRepo{}, ocr)

		req := httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/parse", nil)
		req.SetPathValue("id", "doc-1")
		rec := httptest.NewRecorder()

		handler.ParseDocument(rec, req)

		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
		assert.NotEmpty(t, docs.failedMsg)
	})

	t.Run("replays stored result", func(t *testing.T) {
		docs := &stubDocumentRepo{
			claimDoc: &entities.InsuranceDocument{
				ID:          "doc-1",
				CarrierID:   42,
				OCRStatus:   entities.OCRStatusDone,
				OCRProvider: "textract",
				ParseResult: &entities.ParseResult{ACORDLikely: true, Confidence: 85},
			},
			claimed: false,
		}
		handler := newHandler(docs, &stubCoverageRepo{}, &stubOCR{})

		req := httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/parse", nil)
		req.SetPathValue("id", "doc-1")
		rec := httptest.NewRecorder()

		handler.ParseDocument(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var result services.ParseDocumentResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.Reused)
	})
}

func TestListDocuments(t *testing.T) {
	docs := &stubDocumentRepo{
		listDocs: []*entities.InsuranceDocument{
			{ID: "doc-2", CarrierID: 42, UploadedAt: time.Now().UTC()},
			{ID: "doc-1", CarrierID: 42, UploadedAt: time.Now().UTC().Add(-time.Hour)},
		},
	}
	handler := newHandler(docs, &stubCoverageRepo{}, &stubOCR{})

	req := httptest.NewRequest(http.MethodGet, "/api/carriers/42/documents", nil)
	req.SetPathValue("carrierId", "42")
	rec := httptest.NewRecorder()

	handler.ListDocuments(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Documents []*entities.InsuranceDocument `json:"documents"`
		Count     int                           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, "doc-2", payload.Documents[0].ID)
}

func TestGetCoverage(t *testing.T) {
	t.Run("returns snapshot with lines", func(t *testing.T) {
		auto := int64(1_000_000)
		coverage := &stubCoverageRepo{
			snapshot: &entities.CoverageSnapshot{
				CarrierID:          42,
				AutoLiabilityLimit: &auto,
				Source:             entities.CoverageSourceParsed,
				SnapshotVersion:    3,
			},
			lines: []*entities.CoverageLine{
				{ID: "line-1", CarrierID: 42, SnapshotVersion: 3, CoverageType: entities.CoverageTypeAuto, Limits: map[string]int64{"combined_single_limit": 1_000_000}},
			},
		}
		handler := handlers.NewCoverageHandler(coverage)

		req := httptest.NewRequest(http.MethodGet, "/api/carriers/42/coverage", nil)
		req.SetPathValue("carrierId", "42")
		rec := httptest.NewRecorder()

		handler.GetCoverage(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var payload struct {
			Snapshot entities.CoverageSnapshot `json:"snapshot"`
			Lines    []entities.CoverageLine   `json:"lines"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Equal(t, 3, payload.Snapshot.SnapshotVersion)
		require.Len(t, payload.Lines, 1)
		assert.Equal(t, entities.CoverageTypeAuto, payload.Lines[0].CoverageType)
	})

	t.Run("maps missing snapshot to 404", func(t *testing.T) {
		coverage := &stubCoverageRepo{snapErr: apperrors.NewNotFoundError("no coverage snapshot for carrier 99")}
		handler := handlers.NewCoverageHandler(coverage)

		req := httptest.NewRequest(http.MethodGet, "/api/carriers/99/coverage", nil)
		req.SetPathValue("carrierId", "99")
		rec := httptest.NewRecorder()

		handler.GetCoverage(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
