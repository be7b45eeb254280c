package database_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carriershark/backend/internal/adapters/database"
	"github.com/carriershark/backend/internal/domain/entities"
)

type fakeCache struct {
	store   map[string][]byte
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := c.store[key]
	if !ok {
		return nil, errors.New("key not found")
	}
	return data, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.store[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.deleted = append(c.deleted, key)
	delete(c.store, key)
	return nil
}

func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := c.store[key]
	return ok, nil
}

type countingCoverageRepo struct {
	snapshot     *entities.CoverageSnapshot
	snapshotGets int
	promotions   int
}

func (r *countingCoverageRepo) Promote(ctx context.Context, carrierID int64, limits entities.CoverageLimits, raw *entities.ParseResult, coverageTypes []entities.CoverageType) (int, error) {
	r.promotions++
	return r.promotions, nil
}

func (r *countingCoverageRepo) GetSnapshot(ctx context.Context, carrierID int64) (*entities.CoverageSnapshot, error) {
	r.snapshotGets++
	return r.snapshot, nil
}

func (r *countingCoverageRepo) GetLines(ctx context.Context, carrierID int64, version int) ([]*entities.CoverageLine, error) {
	return nil, nil
}

func TestCachedCoverageAdapter_GetSnapshotCachesReads(t *testing.T) {
	underlying := &countingCoverageRepo{
		snapshot: &entities.CoverageSnapshot{CarrierID: 42, SnapshotVersion: 1},
	}
	cache := newFakeCache()
	adapter := database.NewCachedCoverageAdapter(underlying, cache)

	first, err := adapter.GetSnapshot(context.Background(), 42)
	require.NoError(t, err)

	second, err := adapter.GetSnapshot(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, first.SnapshotVersion, second.SnapshotVersion)
	assert.Equal(t, 1, underlying.snapshotGets)
}

func TestCachedCoverageAdapter_PromoteInvalidatesCache(t *testing.T) {
	underlying := &countingCoverageRepo{
		snapshot: &entities.CoverageSnapshot{CarrierID: 42, SnapshotVersion: 1},
	}
	cache := newFakeCache()
	adapter := database.NewCachedCoverageAdapter(underlying, cache)

	_, err := adapter.GetSnapshot(context.Background(), 42)
	require.NoError(t, err)

	version, err := adapter.Promote(context.Background(), 42, entities.CoverageLimits{}, &entities.ParseResult{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	// The stale snapshot is gone, so the next read goes to the database
	assert.Contains(t, cache.deleted, "coverage:snapshot:42")
	underlying.snapshot = &entities.CoverageSnapshot{CarrierID: 42, SnapshotVersion: 2}

	refreshed, err := adapter.GetSnapshot(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed.SnapshotVersion)
	assert.Equal(t, 2, underlying.snapshotGets)
}

func TestCachedCoverageAdapter_CorruptCacheEntryFallsThrough(t *testing.T) {
	underlying := &countingCoverageRepo{
		snapshot: &entities.CoverageSnapshot{CarrierID: 42, SnapshotVersion: 3},
	}
	cache := newFakeCache()
	cache.store["coverage:snapshot:42"] = []byte("not json")
	adapter := database.NewCachedCoverageAdapter(underlying, cache)

	snapshot, err := adapter.GetSnapshot(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, 3, snapshot.SnapshotVersion)
	assert.Equal(t, 1, underlying.snapshotGets)

	// The bad entry was overwritten with the fresh snapshot
	var cached entities.CoverageSnapshot
	require.NoError(t, json.Unmarshal(cache.store["coverage:snapshot:42"], &cached))
	assert.Equal(t, 3, cached.SnapshotVersion)
}
