package services

import (
	"context"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
	"github.com/engram-labs/engram-core/internal/core/ports/driving"
)

// Ensure syncStatusService implements SyncStatusReader
var _ driving.SyncStatusReader = (*syncStatusService)(nil)

// syncStatusService exposes per-(user, source) sync state to the API
type syncStatusService struct {
	syncStore driven.SyncStateStore
}

// NewSyncStatusService creates a new SyncStatusReader
func NewSyncStatusService(syncStore driven.SyncStateStore) driving.SyncStatusReader {
	return &syncStatusService{syncStore: syncStore}
}

// GetSyncState retrieves the state for one (user, source) pair
func (s *syncStatusService) GetSyncState(ctx context.Context, userID string, source domain.SyncSource) (*domain.SyncState, error) {
	if _, err := domain.ParseSyncSource(string(source)); err != nil {
		return nil, err
	}
	return s.syncStore.Get(ctx, userID, source)
}

// ListSyncStates retrieves all states for one user
func (s *syncStatusService) ListSyncStates(ctx context.Context, userID string) ([]*domain.SyncState, error) {
	return s.syncStore.ListByUser(ctx, userID)
}

// ListSourceStates retrieves all states for one source
func (s *syncStatusService) ListSourceStates(ctx context.Context, source domain.SyncSource) ([]*domain.SyncState, error) {
	if _, err := domain.ParseSyncSource(string(source)); err != nil {
		return nil, err
	}
	return s.syncStore.ListBySource(ctx, source)
}
