package handlers

import (
	"net/http"
	"strconv"

	"github.com/carriershark/backend/internal/domain/repositories"
)

// CoverageHandler handles coverage snapshot HTTP requests
type CoverageHandler struct {
	coverageRepo repositories.CoverageRepository
}

// NewCoverageHandler creates a new coverage handler
func NewCoverageHandler(coverageRepo repositories.CoverageRepository) *CoverageHandler {
	return &CoverageHandler{
		coverageRepo: coverageRepo,
	}
}

// GetCoverage handles GET /api/carriers/{carrierId}/coverage. The response
// combines the carrier's current snapshot with its itemized lines.
func (h *CoverageHandler) GetCoverage(w http.ResponseWriter, r *http.Request) {
	carrierID, err := strconv.ParseInt(r.PathValue("carrierId"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid carrier id")
		return
	}

	snapshot, err := h.coverageRepo.GetSnapshot(r.Context(), carrierID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	lines, err := h.coverageRepo.GetLines(r.Context(), carrierID, snapshot.SnapshotVersion)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot": snapshot,
		"lines":    lines,
	})
}
