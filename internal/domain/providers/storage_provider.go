package providers

import (
	"context"
)

// ObjectStorage is the minimal blob-store capability the pipeline needs.
// Read-after-write within seconds is assumed; eventual consistency beyond
// that is not required.
type ObjectStorage interface {
	// Put stores data under bucket/key with the given content type
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error

	// Get retrieves the object stored under bucket/key
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// List returns the keys under the given prefix
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}
