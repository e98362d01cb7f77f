package services

import (
	"context"
	"errors"
	"testing"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven/mocks"
)

func seedDocument(t *testing.T, graph *mocks.MockGraphStore, userID string, needsReview bool) *domain.Document {
	t.Helper()
	doc := domain.NewDocument(userID, domain.GenerateID(), "notes.txt", domain.FileTypeText)
	doc.NeedsReview = needsReview
	if needsReview {
		doc.ReviewStatus = domain.ReviewStatusPending
	}
	chunks := []*domain.Chunk{
		{ID: domain.GenerateID(), DocumentID: doc.ID, UserID: userID, Index: 0, Content: "first chunk of the document"},
		{ID: domain.GenerateID(), DocumentID: doc.ID, UserID: userID, Index: 1, Content: "second chunk of the document"},
	}
	doc.ChunkCount = len(chunks)
	if err := graph.CreateDocumentWithChunks(context.Background(), doc, chunks); err != nil {
		t.Fatalf("failed to seed document: %v", err)
	}
	return doc
}

func TestDocumentService_Get_OwnershipScoped(t *testing.T) {
	graph := mocks.NewMockGraphStore()
	svc := NewDocumentService(graph)
	doc := seedDocument(t, graph, "user-1", false)

	got, err := svc.Get(context.Background(), "user-1", doc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != doc.ID {
		t.Errorf("expected document %s, got %s", doc.ID, got.ID)
	}

	// Another user's lookup must not reveal the document exists
	if _, err := svc.Get(context.Background(), "user-2", doc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign document, got %v", err)
	}
}

func TestDocumentService_GetWithChunks(t *testing.T) {
	graph := mocks.NewMockGraphStore()
	svc := NewDocumentService(graph)
	doc := seedDocument(t, graph, "user-1", false)

	got, err := svc.GetWithChunks(context.Background(), "user-1", doc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got.Chunks))
	}
	if got.Chunks[0].Index != 0 || got.Chunks[1].Index != 1 {
		t.Error("expected chunks ordered by index")
	}
}

func TestDocumentService_List_ClampsLimit(t *testing.T) {
	graph := mocks.NewMockGraphStore()
	svc := NewDocumentService(graph)
	for i := 0; i < 3; i++ {
		seedDocument(t, graph, "user-1", false)
	}

	docs, err := svc.List(context.Background(), "user-1", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 3 {
		t.Errorf("expected default limit to cover 3 documents, got %d", len(docs))
	}

	docs, err = svc.List(context.Background(), "user-1", 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("expected limit 2 respected, got %d", len(docs))
	}
}

func TestDocumentService_ReviewLoop(t *testing.T) {
	graph := mocks.NewMockGraphStore()
	svc := NewDocumentService(graph)
	flagged := seedDocument(t, graph, "user-1", true)
	seedDocument(t, graph, "user-1", false)

	pending, err := svc.ListNeedingReview(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != flagged.ID {
		t.Fatalf("expected only the flagged document pending, got %d", len(pending))
	}

	if err := svc.UpdateReviewStatus(context.Background(), "user-1", flagged.ID, domain.ReviewStatusApproved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, err = svc.ListNeedingReview(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected review queue drained after approval, got %d", len(pending))
	}
}

func TestDocumentService_UpdateReviewStatus_Validation(t *testing.T) {
	graph := mocks.NewMockGraphStore()
	svc := NewDocumentService(graph)
	doc := seedDocument(t, graph, "user-1", true)

	if err := svc.UpdateReviewStatus(context.Background(), "user-1", doc.ID, domain.ReviewStatus("maybe")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown status, got %v", err)
	}
	if err := svc.UpdateReviewStatus(context.Background(), "user-2", doc.ID, domain.ReviewStatusApproved); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign document, got %v", err)
	}
}
