package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// Ensure MockGraphStore implements GraphStore
var _ driven.GraphStore = (*MockGraphStore)(nil)

// MockGraphStore is an in-memory GraphStore for testing. It enforces the
// same (user, file hash) uniqueness the Postgres adapter does.
type MockGraphStore struct {
	mu     sync.RWMutex
	docs   map[string]*domain.Document
	chunks map[string][]*domain.Chunk
	byHash map[string]string // userID|fileHash -> documentID

	CheckDuplicateFn           func(userID, fileHash string) (string, error)
	CreateDocumentWithChunksFn func(doc *domain.Document, chunks []*domain.Chunk) error
}

// NewMockGraphStore creates a new MockGraphStore
func NewMockGraphStore() *MockGraphStore {
	return &MockGraphStore{
		docs:   make(map[string]*domain.Document),
		chunks: make(map[string][]*domain.Chunk),
		byHash: make(map[string]string),
	}
}

func hashKey(userID, fileHash string) string {
	return userID + "|" + fileHash
}

func (m *MockGraphStore) CheckDuplicate(ctx context.Context, userID, fileHash string) (string, error) {
	if m.CheckDuplicateFn != nil {
		return m.CheckDuplicateFn(userID, fileHash)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byHash[hashKey(userID, fileHash)]
	if !ok {
		return "", domain.ErrNotFound
	}
	return id, nil
}

func (m *MockGraphStore) CreateDocumentWithChunks(ctx context.Context, doc *domain.Document, chunks []*domain.Chunk) error {
	if m.CreateDocumentWithChunksFn != nil {
		return m.CreateDocumentWithChunksFn(doc, chunks)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := hashKey(doc.UserID, doc.FileHash)
	if _, exists := m.byHash[key]; exists {
		return domain.ErrDuplicateDocument
	}
	m.docs[doc.ID] = doc
	m.chunks[doc.ID] = chunks
	m.byHash[key] = doc.ID
	return nil
}

func (m *MockGraphStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (m *MockGraphStore) GetChunks(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chunks := m.chunks[documentID]
	sorted := make([]*domain.Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	return sorted, nil
}

func (m *MockGraphStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Document
	for _, doc := range m.docs {
		if doc.UserID == userID {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if offset > 0 {
		if offset >= len(result) {
			return nil, nil
		}
		result = result[offset:]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockGraphStore) ListNeedingReview(ctx context.Context, userID string) ([]*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Document
	for _, doc := range m.docs {
		if doc.UserID == userID && doc.NeedsReview && doc.ReviewStatus == domain.ReviewStatusPending {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *MockGraphStore) UpdateReviewStatus(ctx context.Context, documentID string, status domain.ReviewStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[documentID]
	if !ok {
		return domain.ErrNotFound
	}
	doc.ReviewStatus = status
	doc.UpdatedAt = time.Now()
	return nil
}

func (m *MockGraphStore) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(m.byHash, hashKey(doc.UserID, doc.FileHash))
	delete(m.docs, id)
	delete(m.chunks, id)
	return nil
}

func (m *MockGraphStore) CountByUser(ctx context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, doc := range m.docs {
		if doc.UserID == userID {
			count++
		}
	}
	return count, nil
}

// Helper methods for testing

// DocumentCount returns the total number of stored documents.
func (m *MockGraphStore) DocumentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Reset clears all state.
func (m *MockGraphStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]*domain.Document)
	m.chunks = make(map[string][]*domain.Chunk)
	m.byHash = make(map[string]string)
}
