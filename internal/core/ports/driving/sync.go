package driving

import (
	"context"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

// SyncScheduler manages recurring fan-out triggers and on-demand sync jobs.
// Every enqueue adds 0-5000ms of random jitter on top of the caller's delay
// so recurring triggers never hit external APIs in synchronized bursts.
type SyncScheduler interface {
	// EnqueueSyncJob enqueues a sync job and returns its task ID.
	// An empty userID enqueues a fan-out across all eligible users;
	// otherwise the job syncs one source for one user.
	EnqueueSyncJob(ctx context.Context, source domain.SyncSource, userID string, extraDelay time.Duration) (string, error)

	// StartSyncScheduler installs one recurring fan-out trigger per source
	// on the given cron pattern. Triggers left behind by a previous process
	// are removed first, so calling it twice leaves exactly one trigger per
	// source.
	StartSyncScheduler(ctx context.Context, cronPattern string) error

	// StopSyncScheduler removes the triggers this instance installed.
	StopSyncScheduler(ctx context.Context) error

	// Status reports queue depth and the installed recurring triggers.
	Status(ctx context.Context) (*SchedulerStatus, error)
}

// SyncStatusReader exposes per-(user, source) sync state to the API
type SyncStatusReader interface {
	// GetSyncState retrieves the state for one (user, source) pair
	GetSyncState(ctx context.Context, userID string, source domain.SyncSource) (*domain.SyncState, error)

	// ListSyncStates retrieves all states for one user
	ListSyncStates(ctx context.Context, userID string) ([]*domain.SyncState, error)

	// ListSourceStates retrieves all states for one source (operator surface)
	ListSourceStates(ctx context.Context, source domain.SyncSource) ([]*domain.SyncState, error)
}

// QueueDepth summarizes the queue substrate's task counts
type QueueDepth struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// SchedulerStatus is the operator view of the scheduler
type SchedulerStatus struct {
	Running       bool       `json:"running"`
	CronPattern   string     `json:"cron_pattern,omitempty"`
	RecurringJobs []string   `json:"recurring_jobs"`
	Queue         QueueDepth `json:"queue"`
}
