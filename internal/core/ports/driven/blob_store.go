package driven

import "context"

// BlobStore supplies raw uploaded bytes given a storage path. Backed by
// object storage (MinIO); the engine never keeps blob contents beyond a
// single processing job.
type BlobStore interface {
	// Put stores a blob under the given path
	Put(ctx context.Context, path string, data []byte, contentType string) error

	// Get retrieves the blob at the given path.
	// Returns domain.ErrNotFound if no such object exists.
	Get(ctx context.Context, path string) ([]byte, error)

	// Delete removes the blob at the given path
	Delete(ctx context.Context, path string) error

	// Ping checks if the blob backend is reachable
	Ping(ctx context.Context) error
}
