package repositories

import (
	"context"

	"github.com/carriershark/backend/internal/domain/entities"
)

// CoverageRepository defines persistence for coverage snapshots and lines
type CoverageRepository interface {
	// Promote upserts the carrier's snapshot, atomically incrementing the
	// snapshot version, and fully replaces the itemized lines for the new
	// version. Returns the resulting version (1 on first promotion).
	Promote(ctx context.Context, carrierID int64, limits entities.CoverageLimits, raw *entities.ParseResult, coverageTypes []entities.CoverageType) (int, error)

	// GetSnapshot retrieves the carrier's current snapshot
	GetSnapshot(ctx context.Context, carrierID int64) (*entities.CoverageSnapshot, error)

	// GetLines retrieves the itemized lines for a carrier and version
	GetLines(ctx context.Context, carrierID int64, version int) ([]*entities.CoverageLine, error)
}
