package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// Ensure MockSyncStateStore implements SyncStateStore
var _ driven.SyncStateStore = (*MockSyncStateStore)(nil)

// MockSyncStateStore is an in-memory SyncStateStore for testing.
// GetUsersNeedingSync returns a seeded list rather than deriving
// eligibility, so tests control the fan-out population directly.
type MockSyncStateStore struct {
	mu     sync.RWMutex
	states map[string]*domain.SyncState
	users  map[domain.SyncSource][]string

	GetUsersNeedingSyncFn func(source domain.SyncSource, threshold time.Duration) ([]string, error)
	MarkSyncCompletedFn   func(userID string, source domain.SyncSource) error
	MarkSyncFailedFn      func(userID string, source domain.SyncSource, reason string) error
}

// NewMockSyncStateStore creates a new MockSyncStateStore
func NewMockSyncStateStore() *MockSyncStateStore {
	return &MockSyncStateStore{
		states: make(map[string]*domain.SyncState),
		users:  make(map[domain.SyncSource][]string),
	}
}

func stateKey(userID string, source domain.SyncSource) string {
	return userID + "|" + string(source)
}

func (m *MockSyncStateStore) GetUsersNeedingSync(ctx context.Context, source domain.SyncSource, threshold time.Duration) ([]string, error) {
	if m.GetUsersNeedingSyncFn != nil {
		return m.GetUsersNeedingSyncFn(source, threshold)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users[source], nil
}

func (m *MockSyncStateStore) MarkSyncCompleted(ctx context.Context, userID string, source domain.SyncSource) error {
	if m.MarkSyncCompletedFn != nil {
		return m.MarkSyncCompletedFn(userID, source)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.states[stateKey(userID, source)] = &domain.SyncState{
		UserID:       userID,
		Source:       source,
		LastSyncedAt: &now,
		UpdatedAt:    now,
	}
	return nil
}

func (m *MockSyncStateStore) MarkSyncFailed(ctx context.Context, userID string, source domain.SyncSource, reason string) error {
	if m.MarkSyncFailedFn != nil {
		return m.MarkSyncFailedFn(userID, source, reason)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	key := stateKey(userID, source)
	state, ok := m.states[key]
	if !ok {
		state = &domain.SyncState{UserID: userID, Source: source}
		m.states[key] = state
	}
	state.LastFailureAt = &now
	state.LastFailureReason = reason
	state.UpdatedAt = now
	return nil
}

func (m *MockSyncStateStore) Get(ctx context.Context, userID string, source domain.SyncSource) (*domain.SyncState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[stateKey(userID, source)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return state, nil
}

func (m *MockSyncStateStore) ListByUser(ctx context.Context, userID string) ([]*domain.SyncState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.SyncState
	for _, state := range m.states {
		if state.UserID == userID {
			result = append(result, state)
		}
	}
	return result, nil
}

func (m *MockSyncStateStore) ListBySource(ctx context.Context, source domain.SyncSource) ([]*domain.SyncState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.SyncState
	for _, state := range m.states {
		if state.Source == source {
			result = append(result, state)
		}
	}
	return result, nil
}

func (m *MockSyncStateStore) Delete(ctx context.Context, userID string, source domain.SyncSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, stateKey(userID, source))
	return nil
}

// Helper methods for testing

// SeedUsersNeedingSync sets the user IDs GetUsersNeedingSync returns for a source.
func (m *MockSyncStateStore) SeedUsersNeedingSync(source domain.SyncSource, userIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[source] = userIDs
}

// SeedState stores a state directly.
func (m *MockSyncStateStore) SeedState(state *domain.SyncState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[stateKey(state.UserID, state.Source)] = state
}

// Reset clears all state.
func (m *MockSyncStateStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[string]*domain.SyncState)
	m.users = make(map[domain.SyncSource][]string)
}
