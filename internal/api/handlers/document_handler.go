package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/carriershark/backend/internal/application/services"
	"github.com/carriershark/backend/internal/domain/entities"
	apperrors "github.com/carriershark/backend/pkg/errors"
)

// DocumentHandler handles insurance document HTTP requests
type DocumentHandler struct {
	documentService *services.DocumentService
	parseService    *services.DocumentParseService
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documentService *services.DocumentService, parseService *services.DocumentParseService) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		parseService:    parseService,
	}
}

// UploadDocument handles POST /api/carriers/{carrierId}/documents.
// Expects multipart form data with a "file" part and optional
// "uploader_role" and "doc_type" fields.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	carrierID, err := strconv.ParseInt(r.PathValue("carrierId"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid carrier id")
		return
	}

	if err := r.ParseMultipartForm(16 << 20); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	role := entities.UploaderRole(r.FormValue("uploader_role"))
	if role == "" {
		role = entities.UploaderRoleCarrier
	}

	doc, err := h.documentService.Upload(r.Context(), services.UploadDocumentInput{
		CarrierID:    carrierID,
		UploaderRole: role,
		DocType:      entities.DocumentType(r.FormValue("doc_type")),
		FileName:     header.Filename,
		Data:         data,
	})
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, doc)
}

// GetDocument handles GET /api/documents/{id}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documentService.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, doc)
}

// ListDocuments handles GET /api/carriers/{carrierId}/documents
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	carrierID, err := strconv.ParseInt(r.PathValue("carrierId"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid carrier id")
		return
	}

	docs, err := h.documentService.ListDocuments(r.Context(), carrierID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

// ParseDocument handles POST /api/documents/{id}/parse. The call is
// synchronous: it blocks until OCR and parsing complete or fail.
func (h *DocumentHandler) ParseDocument(w http.ResponseWriter, r *http.Request) {
	result, err := h.parseService.ParseDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// Helper functions

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps the application error taxonomy onto HTTP status
// codes. Unknown errors hide their message behind a generic 500.
func respondWithAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case apperrors.ErrorTypeValidation:
			respondWithError(w, http.StatusBadRequest, appErr.Message)
		case apperrors.ErrorTypeNotFound:
			respondWithError(w, http.StatusNotFound, appErr.Message)
		case apperrors.ErrorTypeConflict:
			respondWithError(w, http.StatusConflict, appErr.Message)
		case apperrors.ErrorTypeExternal, apperrors.ErrorTypeRemoteFailed:
			respondWithError(w, http.StatusBadGateway, appErr.Message)
		case apperrors.ErrorTypeTimeout:
			respondWithError(w, http.StatusGatewayTimeout, appErr.Message)
		default:
			respondWithError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	respondWithError(w, http.StatusInternalServerError, "internal server error")
}
