package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
	"github.com/engram-labs/engram-core/internal/core/ports/driving"
)

// triggerPrefix namespaces the recurring fan-out triggers this scheduler
// installs on the queue substrate. A restarted process reconciles by
// listing triggers under this prefix, so the prefix must stay stable
// across releases.
const triggerPrefix = "engram-sync:"

// syncTriggerName builds the substrate name for one source's trigger
func syncTriggerName(source domain.SyncSource) string {
	return triggerPrefix + string(source)
}

// Scheduler manages the recurring sync fan-out triggers and is the single
// entry point for enqueuing sync jobs. Every enqueue, recurring or
// on-demand, gets 0-5s of random jitter so jobs never hit external APIs
// in synchronized bursts.
//
// The scheduler keeps no schedule state of its own: triggers live on the
// queue substrate and fire there. The injected SchedulerRegistry only
// tracks what this instance installed so Stop can remove exactly that.
type Scheduler struct {
	queue    driven.TaskQueue
	registry *domain.SchedulerRegistry
	logger   *slog.Logger

	mu          sync.Mutex
	running     bool
	cronPattern string
}

// SchedulerConfig holds dependencies for the scheduler
type SchedulerConfig struct {
	Queue    driven.TaskQueue
	Registry *domain.SchedulerRegistry
	Logger   *slog.Logger
}

// NewScheduler creates a scheduler with no triggers installed
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = domain.NewSchedulerRegistry()
	}

	return &Scheduler{
		queue:    cfg.Queue,
		registry: registry,
		logger:   logger,
	}
}

// Ensure Scheduler implements the driving port
var _ driving.SyncScheduler = (*Scheduler)(nil)

// EnqueueSyncJob enqueues a sync job and returns its task ID. An empty
// userID enqueues a fan-out across all eligible users; otherwise the job
// syncs one source for one user. Queue errors surface to the caller.
func (s *Scheduler) EnqueueSyncJob(ctx context.Context, source domain.SyncSource, userID string, extraDelay time.Duration) (string, error) {
	if _, err := domain.ParseSyncSource(string(source)); err != nil {
		return "", err
	}

	if userID == "" {
		return s.submit(ctx, domain.NewSyncFanOutTask(source), extraDelay)
	}
	return s.submit(ctx, domain.NewUserSyncTask(source, userID, -1), extraDelay)
}

// enqueueUserSync is the fan-out path: it keeps the batch index on the
// task for diagnostics while still routing through the shared jitter.
func (s *Scheduler) enqueueUserSync(ctx context.Context, source domain.SyncSource, userID string, index int, extraDelay time.Duration) (string, error) {
	return s.submit(ctx, domain.NewUserSyncTask(source, userID, index), extraDelay)
}

// submit applies jitter on top of the caller's delay and enqueues
func (s *Scheduler) submit(ctx context.Context, task *domain.Task, extraDelay time.Duration) (string, error) {
	delay := extraDelay + domain.Jitter()
	task.ScheduledFor = time.Now().Add(delay)

	if err := s.queue.Enqueue(ctx, task); err != nil {
		return "", fmt.Errorf("failed to enqueue %s task: %w", task.Type, err)
	}

	s.logger.Debug("sync job enqueued",
		"task_id", task.ID,
		"type", task.Type,
		"source", task.Source(),
		"user_id", task.UserID,
		"delay", delay,
	)
	return task.ID, nil
}

// StartSyncScheduler installs one recurring fan-out trigger per source on
// the given cron pattern. Triggers left on the substrate by a previous
// process are removed first, so a crash-restart cycle always converges to
// exactly one trigger per source.
func (s *Scheduler) StartSyncScheduler(ctx context.Context, cronPattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reconcile(ctx); err != nil {
		return err
	}

	for _, source := range domain.AllSyncSources {
		name := syncTriggerName(source)
		job := &domain.RepeatableJob{
			Name:      name,
			Type:      domain.TaskTypeSyncFanOut,
			Payload:   map[string]string{"source": string(source)},
			CronSpec:  cronPattern,
			CreatedAt: time.Now(),
		}
		if err := s.queue.EnqueueRepeatable(ctx, job); err != nil {
			return fmt.Errorf("failed to install sync trigger %s: %w", name, err)
		}
		s.registry.Add(name)
	}

	s.running = true
	s.cronPattern = cronPattern
	s.logger.Info("sync scheduler started",
		"cron_pattern", cronPattern,
		"sources", len(domain.AllSyncSources),
	)
	return nil
}

// reconcile removes triggers under our prefix from the queue substrate.
// The substrate is the source of truth: the registry of a dead process is
// gone, but its triggers are still installed and would double-fire.
func (s *Scheduler) reconcile(ctx context.Context) error {
	jobs, err := s.queue.ListRepeatable(ctx, triggerPrefix)
	if err != nil {
		return fmt.Errorf("failed to list recurring jobs: %w", err)
	}

	for _, job := range jobs {
		if err := s.queue.RemoveRepeatable(ctx, job.Name); err != nil {
			return fmt.Errorf("failed to remove stale trigger %s: %w", job.Name, err)
		}
		s.registry.Remove(job.Name)
		s.logger.Info("removed stale sync trigger", "name", job.Name)
	}
	return nil
}

// StopSyncScheduler removes the triggers this instance installed
func (s *Scheduler) StopSyncScheduler(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.registry.Names() {
		if err := s.queue.RemoveRepeatable(ctx, name); err != nil {
			return fmt.Errorf("failed to remove sync trigger %s: %w", name, err)
		}
		s.registry.Remove(name)
	}

	s.running = false
	s.logger.Info("sync scheduler stopped")
	return nil
}

// Status reports queue depth and the installed recurring triggers
func (s *Scheduler) Status(ctx context.Context) (*driving.SchedulerStatus, error) {
	stats, err := s.queue.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	s.mu.Lock()
	running := s.running
	cronPattern := s.cronPattern
	s.mu.Unlock()

	names := s.registry.Names()
	sort.Strings(names)

	return &driving.SchedulerStatus{
		Running:       running,
		CronPattern:   cronPattern,
		RecurringJobs: names,
		Queue: driving.QueueDepth{
			Pending:    stats.PendingCount,
			Processing: stats.ProcessingCount,
			Completed:  stats.CompletedCount,
			Failed:     stats.FailedCount,
		},
	}, nil
}
