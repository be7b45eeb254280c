package routes

import (
	"net/http"

	"github.com/carriershark/backend/internal/api/handlers"
	"github.com/carriershark/backend/internal/api/middleware"
	"github.com/carriershark/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	documentHandler *handlers.DocumentHandler
	coverageHandler *handlers.CoverageHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	documentHandler *handlers.DocumentHandler,
	coverageHandler *handlers.CoverageHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		documentHandler: documentHandler,
		coverageHandler: coverageHandler,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Document endpoints
	r.mux.HandleFunc("POST /api/carriers/{carrierId}/documents", r.documentHandler.UploadDocument)
	r.mux.HandleFunc("GET /api/carriers/{carrierId}/documents", r.documentHandler.ListDocuments)
	r.mux.HandleFunc("GET /api/documents/{id}", r.documentHandler.GetDocument)
	r.mux.HandleFunc("POST /api/documents/{id}/parse", r.documentHandler.ParseDocument)

	// Coverage endpoints
	r.mux.HandleFunc("GET /api/carriers/{carrierId}/coverage", r.coverageHandler.GetCoverage)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	return handler
}
