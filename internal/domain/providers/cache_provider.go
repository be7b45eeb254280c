package providers

import (
	"context"
)

// CacheProvider is the port for byte-oriented caching. Coverage snapshot
// reads go through it; values are JSON-encoded entities keyed by carrier.
type CacheProvider interface {
	// Get retrieves a value from cache; a miss returns an error
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration in seconds
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)
}
