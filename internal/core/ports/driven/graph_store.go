package driven

import (
	"context"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

// GraphStore persists Document and Chunk graph records. The storage
// engine must provide atomic check-and-create so that a document with a
// partial chunk set is never observable, and an indexed lookup by
// (user_id, file_hash) for deduplication.
type GraphStore interface {
	// CheckDuplicate returns the ID of an existing document with the
	// same (user, content hash), or domain.ErrNotFound. Pipelines call
	// this before any parse work.
	CheckDuplicate(ctx context.Context, userID, fileHash string) (string, error)

	// CreateDocumentWithChunks persists the document and all its chunks
	// in one transaction. A concurrent insert of the same
	// (user, file hash) surfaces as domain.ErrDuplicateDocument.
	CreateDocumentWithChunks(ctx context.Context, doc *domain.Document, chunks []*domain.Chunk) error

	// GetDocument retrieves a document by ID
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetChunks retrieves a document's chunks ordered by index
	GetChunks(ctx context.Context, documentID string) ([]*domain.Chunk, error)

	// ListByUser retrieves a user's documents, newest first
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Document, error)

	// ListNeedingReview retrieves a user's documents flagged by the
	// quality scorer and still pending review
	ListNeedingReview(ctx context.Context, userID string) ([]*domain.Document, error)

	// UpdateReviewStatus resolves the review flag on a document
	UpdateReviewStatus(ctx context.Context, documentID string, status domain.ReviewStatus) error

	// DeleteDocument removes a document and its chunks
	DeleteDocument(ctx context.Context, id string) error

	// CountByUser returns the number of documents a user owns
	CountByUser(ctx context.Context, userID string) (int, error)
}
