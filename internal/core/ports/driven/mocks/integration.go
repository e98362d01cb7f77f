package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// Ensure mocks implement their ports
var (
	_ driven.IntegrationClient  = (*MockIntegrationClient)(nil)
	_ driven.IntegrationFactory = (*MockIntegrationFactory)(nil)
	_ driven.IntegrationStore   = (*MockIntegrationStore)(nil)
)

// MockIntegrationClient is a mock implementation of IntegrationClient for testing
type MockIntegrationClient struct {
	SourceFn         func() domain.SyncSource
	FetchRecordsFn   func(ctx context.Context, since *time.Time) ([]*domain.SyncRecord, error)
	TestConnectionFn func(ctx context.Context) error
}

// NewMockIntegrationClient creates a new MockIntegrationClient
func NewMockIntegrationClient() *MockIntegrationClient {
	return &MockIntegrationClient{}
}

func (m *MockIntegrationClient) Source() domain.SyncSource {
	if m.SourceFn != nil {
		return m.SourceFn()
	}
	return domain.SourceCalendar
}

func (m *MockIntegrationClient) FetchRecords(ctx context.Context, since *time.Time) ([]*domain.SyncRecord, error) {
	if m.FetchRecordsFn != nil {
		return m.FetchRecordsFn(ctx, since)
	}
	return nil, nil
}

func (m *MockIntegrationClient) TestConnection(ctx context.Context) error {
	if m.TestConnectionFn != nil {
		return m.TestConnectionFn(ctx)
	}
	return nil
}

// MockIntegrationFactory is a mock implementation of IntegrationFactory for
// testing. By default every user resolves to the configured client; set
// ClientForFn to return domain.ErrNoIntegration for unprovisioned users.
type MockIntegrationFactory struct {
	ClientForFn        func(ctx context.Context, userID string, source domain.SyncSource) (driven.IntegrationClient, error)
	SupportedSourcesFn func() []domain.SyncSource
	client             *MockIntegrationClient
}

// NewMockIntegrationFactory creates a factory resolving every user to one shared client
func NewMockIntegrationFactory() *MockIntegrationFactory {
	return &MockIntegrationFactory{client: NewMockIntegrationClient()}
}

func (m *MockIntegrationFactory) ClientFor(ctx context.Context, userID string, source domain.SyncSource) (driven.IntegrationClient, error) {
	if m.ClientForFn != nil {
		return m.ClientForFn(ctx, userID, source)
	}
	return m.client, nil
}

func (m *MockIntegrationFactory) SupportedSources() []domain.SyncSource {
	if m.SupportedSourcesFn != nil {
		return m.SupportedSourcesFn()
	}
	return domain.AllSyncSources
}

// Client returns the shared default client for configuring expectations.
func (m *MockIntegrationFactory) Client() *MockIntegrationClient {
	return m.client
}

// MockIntegrationStore is an in-memory IntegrationStore for testing
type MockIntegrationStore struct {
	mu           sync.RWMutex
	integrations map[string]*domain.Integration
}

// NewMockIntegrationStore creates a new MockIntegrationStore
func NewMockIntegrationStore() *MockIntegrationStore {
	return &MockIntegrationStore{integrations: make(map[string]*domain.Integration)}
}

func (m *MockIntegrationStore) Save(ctx context.Context, integration *domain.Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.integrations[integration.ID] = integration
	return nil
}

func (m *MockIntegrationStore) Get(ctx context.Context, userID string, source domain.SyncSource) (*domain.Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, integration := range m.integrations {
		if integration.UserID == userID && integration.Source == source {
			return integration, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockIntegrationStore) ListByUser(ctx context.Context, userID string) ([]*domain.IntegrationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.IntegrationSummary
	for _, integration := range m.integrations {
		if integration.UserID == userID {
			result = append(result, integration.ToSummary())
		}
	}
	return result, nil
}

func (m *MockIntegrationStore) UpdateSecrets(ctx context.Context, id string, secrets *domain.IntegrationSecrets, expiry *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	integration, ok := m.integrations[id]
	if !ok {
		return domain.ErrNotFound
	}
	integration.Secrets = secrets
	integration.TokenExpiry = expiry
	integration.UpdatedAt = time.Now()
	return nil
}

func (m *MockIntegrationStore) TouchLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	integration, ok := m.integrations[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	integration.LastUsedAt = &now
	return nil
}

func (m *MockIntegrationStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.integrations, id)
	return nil
}
