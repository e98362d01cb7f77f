package services

import (
	"context"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
	"github.com/engram-labs/engram-core/internal/core/ports/driving"
)

// Ensure documentService implements DocumentService
var _ driving.DocumentService = (*documentService)(nil)

// documentService exposes graph documents and the review loop. Every
// lookup is ownership-checked: a document belonging to someone else is
// indistinguishable from a missing one.
type documentService struct {
	graphStore driven.GraphStore
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(graphStore driven.GraphStore) driving.DocumentService {
	return &documentService{graphStore: graphStore}
}

// Get retrieves one of the caller's documents
func (s *documentService) Get(ctx context.Context, userID, documentID string) (*domain.Document, error) {
	return s.getOwned(ctx, userID, documentID)
}

// GetWithChunks retrieves a document with its ordered chunks
func (s *documentService) GetWithChunks(ctx context.Context, userID, documentID string) (*domain.DocumentWithChunks, error) {
	doc, err := s.getOwned(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}

	chunks, err := s.graphStore.GetChunks(ctx, documentID)
	if err != nil {
		return nil, err
	}

	return &domain.DocumentWithChunks{
		Document: doc,
		Chunks:   chunks,
	}, nil
}

// List retrieves a user's documents, newest first
func (s *documentService) List(ctx context.Context, userID string, limit, offset int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return s.graphStore.ListByUser(ctx, userID, limit, offset)
}

// ListNeedingReview retrieves documents flagged by the quality scorer and
// still awaiting a verdict
func (s *documentService) ListNeedingReview(ctx context.Context, userID string) ([]*domain.Document, error) {
	return s.graphStore.ListNeedingReview(ctx, userID)
}

// UpdateReviewStatus records a review verdict on a flagged document
func (s *documentService) UpdateReviewStatus(ctx context.Context, userID, documentID string, status domain.ReviewStatus) error {
	switch status {
	case domain.ReviewStatusApproved, domain.ReviewStatusRejected, domain.ReviewStatusPending:
	default:
		return domain.ErrInvalidInput
	}

	if _, err := s.getOwned(ctx, userID, documentID); err != nil {
		return err
	}
	return s.graphStore.UpdateReviewStatus(ctx, documentID, status)
}

func (s *documentService) getOwned(ctx context.Context, userID, documentID string) (*domain.Document, error) {
	doc, err := s.graphStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}
