package driving

import (
	"context"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

// DocumentService exposes persisted graph documents and the review loop
// over low-confidence extractions.
type DocumentService interface {
	// Get retrieves a document by ID.
	// Callers only see their own documents.
	Get(ctx context.Context, userID, documentID string) (*domain.Document, error)

	// GetWithChunks retrieves a document with its ordered chunks
	GetWithChunks(ctx context.Context, userID, documentID string) (*domain.DocumentWithChunks, error)

	// List retrieves a user's documents, newest first
	List(ctx context.Context, userID string, limit, offset int) ([]*domain.Document, error)

	// ListNeedingReview retrieves documents flagged by the quality scorer
	// and still awaiting a verdict
	ListNeedingReview(ctx context.Context, userID string) ([]*domain.Document, error)

	// UpdateReviewStatus records a review verdict on a flagged document
	UpdateReviewStatus(ctx context.Context, userID, documentID string, status domain.ReviewStatus) error
}
