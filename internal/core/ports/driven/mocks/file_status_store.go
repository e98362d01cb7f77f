package mocks

import (
	"context"
	"sync"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// Ensure MockFileStatusStore implements FileStatusStore
var _ driven.FileStatusStore = (*MockFileStatusStore)(nil)

// MockFileStatusStore is an in-memory FileStatusStore for testing
type MockFileStatusStore struct {
	mu    sync.RWMutex
	files map[string]*domain.UploadedFile

	SaveFn func(file *domain.UploadedFile) error
}

// NewMockFileStatusStore creates a new MockFileStatusStore
func NewMockFileStatusStore() *MockFileStatusStore {
	return &MockFileStatusStore{files: make(map[string]*domain.UploadedFile)}
}

func (m *MockFileStatusStore) Save(ctx context.Context, file *domain.UploadedFile) error {
	if m.SaveFn != nil {
		return m.SaveFn(file)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[file.ID] = file
	return nil
}

func (m *MockFileStatusStore) Get(ctx context.Context, id string) (*domain.UploadedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	file, ok := m.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return file, nil
}

func (m *MockFileStatusStore) ListByUser(ctx context.Context, userID string) ([]*domain.UploadedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.UploadedFile
	for _, file := range m.files {
		if file.UserID == userID {
			result = append(result, file)
		}
	}
	return result, nil
}

func (m *MockFileStatusStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, id)
	return nil
}

// Helper methods for testing

// Reset clears all records.
func (m *MockFileStatusStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = make(map[string]*domain.UploadedFile)
}
