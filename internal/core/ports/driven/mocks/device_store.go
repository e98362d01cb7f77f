package mocks

import (
	"context"
	"sync"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// Ensure MockDeviceStore implements DeviceStore
var _ driven.DeviceStore = (*MockDeviceStore)(nil)

// MockDeviceStore is an in-memory DeviceStore for testing
type MockDeviceStore struct {
	mu      sync.RWMutex
	devices map[string]*domain.Device
}

// NewMockDeviceStore creates a new MockDeviceStore
func NewMockDeviceStore() *MockDeviceStore {
	return &MockDeviceStore{devices: make(map[string]*domain.Device)}
}

func (m *MockDeviceStore) Save(ctx context.Context, device *domain.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[device.ID] = device
	return nil
}

func (m *MockDeviceStore) Get(ctx context.Context, id string) (*domain.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	device, ok := m.devices[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return device, nil
}

func (m *MockDeviceStore) ListByUser(ctx context.Context, userID string) ([]*domain.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Device
	for _, device := range m.devices {
		if device.UserID == userID {
			result = append(result, device)
		}
	}
	return result, nil
}

func (m *MockDeviceStore) ListForeground(ctx context.Context) ([]*domain.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Device
	for _, device := range m.devices {
		if device.Foreground {
			result = append(result, device)
		}
	}
	return result, nil
}

func (m *MockDeviceStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.devices, id)
	return nil
}

// Helper methods for testing

// Count returns the number of stored devices.
func (m *MockDeviceStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices)
}
