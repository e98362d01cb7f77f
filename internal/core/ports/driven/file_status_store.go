package driven

import (
	"context"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

// FileStatusStore holds transient per-upload processing state so the API
// can report pipeline progress. Records are short-lived: the Redis
// implementation expires them via TTL, the Postgres fallback prunes on
// write.
type FileStatusStore interface {
	// Save stores or replaces the upload record
	Save(ctx context.Context, file *domain.UploadedFile) error

	// Get retrieves an upload record by ID.
	// Returns domain.ErrNotFound once the record has expired.
	Get(ctx context.Context, id string) (*domain.UploadedFile, error)

	// ListByUser lists a user's live upload records
	ListByUser(ctx context.Context, userID string) ([]*domain.UploadedFile, error)

	// Delete removes an upload record
	Delete(ctx context.Context, id string) error
}
