package mocks

import (
	"context"
	"sync"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// Ensure MockBlobStore implements BlobStore
var _ driven.BlobStore = (*MockBlobStore)(nil)

// MockBlobStore is an in-memory BlobStore for testing
type MockBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	GetFn func(path string) ([]byte, error)
	PutFn func(path string, data []byte, contentType string) error
}

// NewMockBlobStore creates a new MockBlobStore
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{blobs: make(map[string][]byte)}
}

func (m *MockBlobStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if m.PutFn != nil {
		return m.PutFn(path, data, contentType)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.blobs[path] = buf
	return nil
}

func (m *MockBlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	if m.GetFn != nil {
		return m.GetFn(path)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (m *MockBlobStore) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, path)
	return nil
}

func (m *MockBlobStore) Ping(ctx context.Context) error {
	return nil
}

// Helper methods for testing

// Has reports whether a blob exists at the path.
func (m *MockBlobStore) Has(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[path]
	return ok
}

// Reset clears all blobs.
func (m *MockBlobStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs = make(map[string][]byte)
}
