package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/carriershark/backend/internal/domain/entities"
	"github.com/carriershark/backend/internal/domain/providers"
	"github.com/carriershark/backend/internal/domain/repositories"
)

// CachedCoverageAdapter wraps CoverageAdapter with read caching. Promotions
// write through and invalidate so readers never see a stale version.
type CachedCoverageAdapter struct {
	adapter repositories.CoverageRepository
	cache   providers.CacheProvider
}

// NewCachedCoverageAdapter creates a new cached coverage adapter
func NewCachedCoverageAdapter(adapter repositories.CoverageRepository, cache providers.CacheProvider) repositories.CoverageRepository {
	return &CachedCoverageAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// Cache TTL (in seconds)
const snapshotTTL = 300

func snapshotCacheKey(carrierID int64) string {
	return fmt.Sprintf("coverage:snapshot:%d", carrierID)
}

// Promote delegates to the underlying adapter and invalidates the carrier's
// cached snapshot
func (a *CachedCoverageAdapter) Promote(ctx context.Context, carrierID int64, limits entities.CoverageLimits, raw *entities.ParseResult, coverageTypes []entities.CoverageType) (int, error) {
	version, err := a.adapter.Promote(ctx, carrierID, limits, raw, coverageTypes)
	if err != nil {
		return 0, err
	}

	if err := a.cache.Delete(ctx, snapshotCacheKey(carrierID)); err != nil {
		log.Warn().Err(err).Int64("carrier_id", carrierID).Msg("failed to invalidate coverage cache")
	}
	return version, nil
}

// GetSnapshot retrieves the carrier's current snapshot with caching
func (a *CachedCoverageAdapter) GetSnapshot(ctx context.Context, carrierID int64) (*entities.CoverageSnapshot, error) {
	cacheKey := snapshotCacheKey(carrierID)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var snapshot entities.CoverageSnapshot
		if err := json.Unmarshal(cached, &snapshot); err == nil {
			return &snapshot, nil
		}
	}

	snapshot, err := a.adapter.GetSnapshot(ctx, carrierID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(snapshot); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, snapshotTTL); err != nil {
			log.Warn().Err(err).Int64("carrier_id", carrierID).Msg("failed to cache coverage snapshot")
		}
	}
	return snapshot, nil
}

// GetLines retrieves the itemized lines for a carrier and version. Lines are
// immutable per version so they are safe to serve uncached.
func (a *CachedCoverageAdapter) GetLines(ctx context.Context, carrierID int64, version int) ([]*entities.CoverageLine, error) {
	return a.adapter.GetLines(ctx, carrierID, version)
}
