package driven

import (
	"context"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

// SyncStateStore handles per-(user, source) sync state persistence
// (PostgreSQL). States are written only by the worker path and read by
// the fan-out step; the store never gates execution itself.
type SyncStateStore interface {
	// GetUsersNeedingSync returns IDs of active users who have never
	// synced the source or whose last success is older than threshold.
	GetUsersNeedingSync(ctx context.Context, source domain.SyncSource, threshold time.Duration) ([]string, error)

	// MarkSyncCompleted upserts the state with a fresh last_synced_at
	// and clears the failure fields.
	MarkSyncCompleted(ctx context.Context, userID string, source domain.SyncSource) error

	// MarkSyncFailed upserts the failure timestamp and reason. It is
	// diagnostics only: callers ignore its error so the original sync
	// failure is what propagates.
	MarkSyncFailed(ctx context.Context, userID string, source domain.SyncSource, reason string) error

	// Get retrieves the state for one (user, source) pair
	Get(ctx context.Context, userID string, source domain.SyncSource) (*domain.SyncState, error)

	// ListByUser retrieves all states for one user
	ListByUser(ctx context.Context, userID string) ([]*domain.SyncState, error)

	// ListBySource retrieves all states for one source
	ListBySource(ctx context.Context, source domain.SyncSource) ([]*domain.SyncState, error)

	// Delete removes the state for one (user, source) pair
	Delete(ctx context.Context, userID string, source domain.SyncSource) error
}
