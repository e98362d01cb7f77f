package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// SyncRunner is the slice of the sync service the worker drives.
type SyncRunner interface {
	EnqueueAllUserSyncs(ctx context.Context, source domain.SyncSource) (int, error)
	SyncUser(ctx context.Context, userID string, source domain.SyncSource) (*domain.SyncResult, error)
}

// FileProcessor is the slice of the ingest service the worker drives.
type FileProcessor interface {
	ProcessStoredFile(ctx context.Context, fileID string) error
}

// Hooks receives task lifecycle notifications. All fields are optional.
// Hooks observe, they never steer: a panicking hook is recovered and the
// task outcome stands.
type Hooks struct {
	// OnComplete fires after a task succeeded and was acked.
	OnComplete func(task *domain.Task, result *domain.TaskResult)

	// OnError fires when an attempt failed but retries remain.
	OnError func(task *domain.Task, err error)

	// OnFail fires when the final attempt failed.
	OnFail func(task *domain.Task, err error)

	// OnStalled fires when the worker picks up a task reclaimed from a
	// consumer that died mid-flight.
	OnStalled func(task *domain.Task)
}

// Worker pulls tasks off the queue and dispatches them to the sync runner
// and the ingest pipeline. Throughput is bounded twice: a fixed number of
// processor goroutines caps in-flight work, and an optional sliding-window
// rate limiter caps task starts per interval.
type Worker struct {
	taskQueue driven.TaskQueue
	runner    SyncRunner
	files     FileProcessor
	limiter   *RateLimiter
	logger    *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds

	// Internal state
	mu      sync.RWMutex
	running bool
	hooks   []Hooks
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	SyncRunner     SyncRunner
	Files          FileProcessor
	Logger         *slog.Logger
	Concurrency    int           // Number of concurrent task processors
	DequeueTimeout int           // Seconds to wait for a task before checking again
	RateLimit      int           // Max task starts per RateWindow, 0 disables
	RateWindow     time.Duration // Rolling window the rate limit applies to
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		runner:         cfg.SyncRunner,
		files:          cfg.Files,
		limiter:        NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Observe registers lifecycle hooks. Safe to call before or after Start.
func (w *Worker) Observe(hooks Hooks) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hooks = append(w.hooks, hooks)
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
		"rate_limited", w.limiter != nil,
	)

	// Start processor goroutines
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	// Wait for all processors to finish
	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	// Wait for processors to finish
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		// Dequeue a task with timeout
		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if task == nil {
			// No task available, continue
			continue
		}

		// The task is already claimed, so waiting for a rate slot here
		// holds this goroutine's concurrency slot. That is the point:
		// a saturated window must slow intake, not stack up claims.
		if err := w.limiter.Wait(ctx); err != nil {
			logger.Info("rate limit wait cancelled", "task_id", task.ID)
			return
		}

		// Process the task
		w.processTask(ctx, task, logger)
	}
}

// processTask processes a single task.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "user_id", task.UserID)

	if task.Reclaimed {
		logger.Warn("picked up task abandoned by a dead consumer")
		w.notifyStalled(task)
	}

	logger.Info("processing task", "attempt", task.Attempts)

	startTime := time.Now()
	items, err := w.dispatch(ctx, task)
	duration := time.Since(startTime)

	if err != nil {
		willRetry := task.CanRetry()
		logger.Error("task failed",
			"duration", duration,
			"will_retry", willRetry,
			"error", err,
		)

		// Nack the task; the queue retries it or parks it as failed
		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}

		if willRetry {
			w.notifyError(task, err)
		} else {
			w.notifyFail(task, err)
		}
		return
	}

	logger.Info("task completed", "duration", duration, "items", items)

	// Ack the task
	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}

	w.notifyComplete(task, &domain.TaskResult{
		TaskID:     task.ID,
		Success:    true,
		Duration:   duration,
		ItemsCount: items,
	})
}

// dispatch routes a task to its handler and reports how many items the
// handler touched, for diagnostics.
func (w *Worker) dispatch(ctx context.Context, task *domain.Task) (int, error) {
	switch task.Type {
	case domain.TaskTypeSyncFanOut:
		return w.handleSyncFanOut(ctx, task)
	case domain.TaskTypeSyncUser:
		return w.handleUserSync(ctx, task)
	case domain.TaskTypeFileProcess:
		return w.handleFileProcess(ctx, task)
	default:
		return 0, fmt.Errorf("unknown task type: %s", task.Type)
	}
}

// handleSyncFanOut expands a recurring trigger into per-user sync tasks.
func (w *Worker) handleSyncFanOut(ctx context.Context, task *domain.Task) (int, error) {
	source := task.Source()
	if source == "" {
		return 0, fmt.Errorf("source not found in task payload")
	}
	return w.runner.EnqueueAllUserSyncs(ctx, source)
}

// handleUserSync runs one source sync for one user.
func (w *Worker) handleUserSync(ctx context.Context, task *domain.Task) (int, error) {
	source := task.Source()
	if source == "" {
		return 0, fmt.Errorf("source not found in task payload")
	}
	if task.UserID == "" {
		return 0, fmt.Errorf("user_id not set on sync task")
	}

	result, err := w.runner.SyncUser(ctx, task.UserID, source)
	if err != nil {
		return 0, err
	}
	if !result.Success {
		return 0, fmt.Errorf("sync failed: %s", result.Error)
	}
	return result.Stats.Total(), nil
}

// handleFileProcess runs the ingest pipeline for a stored upload.
func (w *Worker) handleFileProcess(ctx context.Context, task *domain.Task) (int, error) {
	fileID := task.FileID()
	if fileID == "" {
		return 0, fmt.Errorf("file_id not found in task payload")
	}
	return 0, w.files.ProcessStoredFile(ctx, fileID)
}

func (w *Worker) notifyComplete(task *domain.Task, result *domain.TaskResult) {
	for _, h := range w.snapshotHooks() {
		if h.OnComplete != nil {
			w.callHook(func() { h.OnComplete(task, result) })
		}
	}
}

func (w *Worker) notifyError(task *domain.Task, err error) {
	for _, h := range w.snapshotHooks() {
		if h.OnError != nil {
			w.callHook(func() { h.OnError(task, err) })
		}
	}
}

func (w *Worker) notifyFail(task *domain.Task, err error) {
	for _, h := range w.snapshotHooks() {
		if h.OnFail != nil {
			w.callHook(func() { h.OnFail(task, err) })
		}
	}
}

func (w *Worker) notifyStalled(task *domain.Task) {
	for _, h := range w.snapshotHooks() {
		if h.OnStalled != nil {
			w.callHook(func() { h.OnStalled(task) })
		}
	}
}

func (w *Worker) snapshotHooks() []Hooks {
	w.mu.RLock()
	defer w.mu.RUnlock()
	hooks := make([]Hooks, len(w.hooks))
	copy(hooks, w.hooks)
	return hooks
}

// callHook isolates observer panics from task processing.
func (w *Worker) callHook(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker hook panicked", "panic", r)
		}
	}()
	fn()
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	// Check queue health
	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
