package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven/mocks"
)

// stubQueue wraps the shared mock with the overrides worker tests need:
// a dequeue delay so loops don't spin, and ack/nack/ping interceptors.
type stubQueue struct {
	*mocks.MockTaskQueue

	dequeueDelay time.Duration
	pingFn       func() error
	ackFn        func(taskID string) error
	nackFn       func(taskID, reason string) error
}

func newStubQueue() *stubQueue {
	return &stubQueue{MockTaskQueue: mocks.NewMockTaskQueue()}
}

func (q *stubQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	if q.dequeueDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.dequeueDelay):
		}
	}
	return q.MockTaskQueue.DequeueWithTimeout(ctx, timeout)
}

func (q *stubQueue) Ack(ctx context.Context, taskID string) error {
	if q.ackFn != nil {
		return q.ackFn(taskID)
	}
	return q.MockTaskQueue.Ack(ctx, taskID)
}

func (q *stubQueue) Nack(ctx context.Context, taskID string, reason string) error {
	if q.nackFn != nil {
		return q.nackFn(taskID, reason)
	}
	return q.MockTaskQueue.Nack(ctx, taskID, reason)
}

func (q *stubQueue) Ping(ctx context.Context) error {
	if q.pingFn != nil {
		return q.pingFn()
	}
	return nil
}

// stubRunner implements SyncRunner with overridable behavior.
type stubRunner struct {
	mu         sync.Mutex
	fanOutFn   func(ctx context.Context, source domain.SyncSource) (int, error)
	syncUserFn func(ctx context.Context, userID string, source domain.SyncSource) (*domain.SyncResult, error)
	synced     []string
}

func (s *stubRunner) EnqueueAllUserSyncs(ctx context.Context, source domain.SyncSource) (int, error) {
	if s.fanOutFn != nil {
		return s.fanOutFn(ctx, source)
	}
	return 0, nil
}

func (s *stubRunner) SyncUser(ctx context.Context, userID string, source domain.SyncSource) (*domain.SyncResult, error) {
	s.mu.Lock()
	s.synced = append(s.synced, userID)
	s.mu.Unlock()
	if s.syncUserFn != nil {
		return s.syncUserFn(ctx, userID, source)
	}
	return &domain.SyncResult{UserID: userID, Source: source, Success: true}, nil
}

func (s *stubRunner) syncedUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.synced))
	copy(out, s.synced)
	return out
}

// stubFiles implements FileProcessor and records processed file IDs.
type stubFiles struct {
	mu        sync.Mutex
	processFn func(ctx context.Context, fileID string) error
	processed []string
}

func (s *stubFiles) ProcessStoredFile(ctx context.Context, fileID string) error {
	s.mu.Lock()
	s.processed = append(s.processed, fileID)
	s.mu.Unlock()
	if s.processFn != nil {
		return s.processFn(ctx, fileID)
	}
	return nil
}

func (s *stubFiles) processedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.processed))
	copy(out, s.processed)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(queue *stubQueue, runner *stubRunner, files *stubFiles) *Worker {
	return NewWorker(WorkerConfig{
		TaskQueue:   queue,
		SyncRunner:  runner,
		Files:       files,
		Logger:      testLogger(),
		Concurrency: 1,
	})
}

func TestNewWorker(t *testing.T) {
	queue := newStubQueue()

	w := NewWorker(WorkerConfig{
		TaskQueue:      queue,
		Logger:         testLogger(),
		Concurrency:    2,
		DequeueTimeout: 5,
		RateLimit:      10,
		RateWindow:     time.Minute,
	})

	if w == nil {
		t.Fatal("expected non-nil worker")
	}
	if w.concurrency != 2 {
		t.Errorf("expected concurrency 2, got %d", w.concurrency)
	}
	if w.dequeueTimeout != 5 {
		t.Errorf("expected dequeue timeout 5, got %d", w.dequeueTimeout)
	}
	if w.limiter == nil {
		t.Error("expected rate limiter to be configured")
	}
}

func TestNewWorker_Defaults(t *testing.T) {
	queue := newStubQueue()

	w := NewWorker(WorkerConfig{
		TaskQueue:      queue,
		Concurrency:    0, // Should default to 1
		DequeueTimeout: 0, // Should default to 5
	})

	if w.concurrency != 1 {
		t.Errorf("expected default concurrency 1, got %d", w.concurrency)
	}
	if w.dequeueTimeout != 5 {
		t.Errorf("expected default dequeue timeout 5, got %d", w.dequeueTimeout)
	}
	if w.logger == nil {
		t.Error("expected default logger")
	}
	if w.limiter != nil {
		t.Error("expected no rate limiter when unconfigured")
	}
}

func TestWorker_StartStop(t *testing.T) {
	queue := newStubQueue()
	// Add delay so workers don't spin too fast
	queue.dequeueDelay = 100 * time.Millisecond

	w := NewWorker(WorkerConfig{
		TaskQueue:      queue,
		Logger:         testLogger(),
		Concurrency:    1,
		DequeueTimeout: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}

	health := w.Health(ctx)
	if !health.Running {
		t.Error("expected worker to be running")
	}

	// Start again should be no-op
	if err := w.Start(ctx); err != nil {
		t.Errorf("second start should not error: %v", err)
	}

	w.Stop()

	health = w.Health(ctx)
	if health.Running {
		t.Error("expected worker to be stopped")
	}

	// Stop again should be no-op
	w.Stop() // Should not panic
}

func TestWorker_Health_QueueError(t *testing.T) {
	queue := newStubQueue()
	queue.pingFn = func() error {
		return errors.New("connection failed")
	}

	w := newTestWorker(queue, &stubRunner{}, &stubFiles{})

	health := w.Health(context.Background())
	if health.QueueHealth {
		t.Error("expected queue to be unhealthy")
	}
	if health.Error != "connection failed" {
		t.Errorf("expected error message, got %q", health.Error)
	}
}

func TestWorker_ProcessTask_FanOut(t *testing.T) {
	queue := newStubQueue()
	runner := &stubRunner{
		fanOutFn: func(ctx context.Context, source domain.SyncSource) (int, error) {
			if source != domain.SourceCalendar {
				t.Errorf("expected calendar source, got %s", source)
			}
			return 3, nil
		},
	}
	w := newTestWorker(queue, runner, &stubFiles{})

	var completed []*domain.TaskResult
	w.Observe(Hooks{
		OnComplete: func(task *domain.Task, result *domain.TaskResult) {
			completed = append(completed, result)
		},
	})

	task := domain.NewSyncFanOutTask(domain.SourceCalendar)
	if err := queue.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	w.processTask(context.Background(), task, testLogger())

	got, err := queue.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != domain.TaskStatusCompleted {
		t.Errorf("expected task completed, got %s", got.Status)
	}
	if len(completed) != 1 {
		t.Fatalf("expected 1 completion hook call, got %d", len(completed))
	}
	if completed[0].ItemsCount != 3 {
		t.Errorf("expected 3 items in result, got %d", completed[0].ItemsCount)
	}
}

func TestWorker_ProcessTask_UserSync(t *testing.T) {
	queue := newStubQueue()
	runner := &stubRunner{
		syncUserFn: func(ctx context.Context, userID string, source domain.SyncSource) (*domain.SyncResult, error) {
			return &domain.SyncResult{
				UserID:  userID,
				Source:  source,
				Success: true,
				Stats:   domain.SyncStats{RecordsAdded: 4, RecordsUpdated: 1},
			}, nil
		},
	}
	w := newTestWorker(queue, runner, &stubFiles{})

	var result *domain.TaskResult
	w.Observe(Hooks{
		OnComplete: func(task *domain.Task, r *domain.TaskResult) { result = r },
	})

	task := domain.NewUserSyncTask(domain.SourceContacts, "user-1", 0)
	if err := queue.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	w.processTask(context.Background(), task, testLogger())

	if got := runner.syncedUsers(); len(got) != 1 || got[0] != "user-1" {
		t.Errorf("expected user-1 synced, got %v", got)
	}
	if result == nil {
		t.Fatal("expected completion hook to fire")
	}
	if result.ItemsCount != 5 {
		t.Errorf("expected 5 records in result, got %d", result.ItemsCount)
	}
}

func TestWorker_ProcessTask_SyncError_Retries(t *testing.T) {
	queue := newStubQueue()
	runner := &stubRunner{
		syncUserFn: func(ctx context.Context, userID string, source domain.SyncSource) (*domain.SyncResult, error) {
			return nil, errors.New("upstream 503")
		},
	}
	w := newTestWorker(queue, runner, &stubFiles{})

	var errored, failed int
	w.Observe(Hooks{
		OnError: func(task *domain.Task, err error) { errored++ },
		OnFail:  func(task *domain.Task, err error) { failed++ },
	})

	task := domain.NewUserSyncTask(domain.SourceCalendar, "user-1", -1)
	if err := queue.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task.MarkProcessing() // first attempt

	w.processTask(context.Background(), task, testLogger())

	if errored != 1 {
		t.Errorf("expected OnError once, got %d", errored)
	}
	if failed != 0 {
		t.Errorf("expected no OnFail while retries remain, got %d", failed)
	}
	got, _ := queue.GetTask(context.Background(), task.ID)
	if got.Status != domain.TaskStatusPending {
		t.Errorf("expected task requeued as pending, got %s", got.Status)
	}
}

func TestWorker_ProcessTask_FinalAttemptFails(t *testing.T) {
	queue := newStubQueue()
	runner := &stubRunner{
		syncUserFn: func(ctx context.Context, userID string, source domain.SyncSource) (*domain.SyncResult, error) {
			return nil, errors.New("upstream 503")
		},
	}
	w := newTestWorker(queue, runner, &stubFiles{})

	var errored, failed int
	w.Observe(Hooks{
		OnError: func(task *domain.Task, err error) { errored++ },
		OnFail:  func(task *domain.Task, err error) { failed++ },
	})

	task := domain.NewUserSyncTask(domain.SourceCalendar, "user-1", -1)
	if err := queue.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task.Attempts = task.MaxAttempts // no retries left

	w.processTask(context.Background(), task, testLogger())

	if failed != 1 {
		t.Errorf("expected OnFail once, got %d", failed)
	}
	if errored != 0 {
		t.Errorf("expected no OnError on final attempt, got %d", errored)
	}
	got, _ := queue.GetTask(context.Background(), task.ID)
	if got.Status != domain.TaskStatusFailed {
		t.Errorf("expected task failed, got %s", got.Status)
	}
}

func TestWorker_ProcessTask_FileProcess(t *testing.T) {
	queue := newStubQueue()
	files := &stubFiles{}
	w := newTestWorker(queue, &stubRunner{}, files)

	task := domain.NewFileProcessTask("user-1", "file-42")
	if err := queue.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	w.processTask(context.Background(), task, testLogger())

	if got := files.processedFiles(); len(got) != 1 || got[0] != "file-42" {
		t.Errorf("expected file-42 processed, got %v", got)
	}
	got, _ := queue.GetTask(context.Background(), task.ID)
	if got.Status != domain.TaskStatusCompleted {
		t.Errorf("expected task completed, got %s", got.Status)
	}
}

func TestWorker_ProcessTask_UnknownType(t *testing.T) {
	queue := newStubQueue()

	var nacked []string
	queue.nackFn = func(taskID, reason string) error {
		nacked = append(nacked, taskID)
		return nil
	}

	task := &domain.Task{
		ID:     "task-123",
		Type:   domain.TaskType("unknown_type"),
		UserID: "user-1",
	}

	w := newTestWorker(queue, &stubRunner{}, &stubFiles{})
	w.processTask(context.Background(), task, testLogger())

	if len(nacked) != 1 {
		t.Errorf("expected 1 nack for unknown type, got %d", len(nacked))
	}
}

func TestWorker_ProcessTask_MissingSource(t *testing.T) {
	queue := newStubQueue()

	var nacked []string
	queue.nackFn = func(taskID, reason string) error {
		nacked = append(nacked, taskID)
		return nil
	}

	task := &domain.Task{
		ID:      "task-123",
		Type:    domain.TaskTypeSyncUser,
		UserID:  "user-1",
		Payload: nil, // No source
	}

	runner := &stubRunner{}
	w := newTestWorker(queue, runner, &stubFiles{})
	w.processTask(context.Background(), task, testLogger())

	if len(nacked) != 1 {
		t.Errorf("expected 1 nack for missing source, got %d", len(nacked))
	}
	if len(runner.syncedUsers()) != 0 {
		t.Error("expected runner not to be invoked")
	}
}

func TestWorker_ProcessTask_StalledNotification(t *testing.T) {
	queue := newStubQueue()
	w := newTestWorker(queue, &stubRunner{}, &stubFiles{})

	var stalled []string
	w.Observe(Hooks{
		OnStalled: func(task *domain.Task) { stalled = append(stalled, task.ID) },
	})

	task := domain.NewUserSyncTask(domain.SourceHealth, "user-1", -1)
	task.Reclaimed = true
	if err := queue.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	w.processTask(context.Background(), task, testLogger())

	if len(stalled) != 1 || stalled[0] != task.ID {
		t.Errorf("expected stalled hook for %s, got %v", task.ID, stalled)
	}
	// Reclaimed tasks still process normally
	got, _ := queue.GetTask(context.Background(), task.ID)
	if got.Status != domain.TaskStatusCompleted {
		t.Errorf("expected task completed, got %s", got.Status)
	}
}

func TestWorker_HookPanicDoesNotAffectOutcome(t *testing.T) {
	queue := newStubQueue()
	w := newTestWorker(queue, &stubRunner{}, &stubFiles{})

	var second int
	w.Observe(Hooks{
		OnComplete: func(task *domain.Task, result *domain.TaskResult) { panic("observer bug") },
	})
	w.Observe(Hooks{
		OnComplete: func(task *domain.Task, result *domain.TaskResult) { second++ },
	})

	task := domain.NewUserSyncTask(domain.SourceCalendar, "user-1", -1)
	if err := queue.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	w.processTask(context.Background(), task, testLogger())

	got, _ := queue.GetTask(context.Background(), task.ID)
	if got.Status != domain.TaskStatusCompleted {
		t.Errorf("expected task completed despite panicking hook, got %s", got.Status)
	}
	if second != 1 {
		t.Errorf("expected later hook to still fire, got %d calls", second)
	}
}

func TestWorker_ProcessLoop_WithTasks(t *testing.T) {
	queue := newStubQueue()
	queue.dequeueDelay = 5 * time.Millisecond

	files := &stubFiles{}
	w := NewWorker(WorkerConfig{
		TaskQueue:      queue,
		SyncRunner:     &stubRunner{},
		Files:          files,
		Logger:         testLogger(),
		Concurrency:    2,
		DequeueTimeout: 1,
	})

	done := make(chan string, 2)
	w.Observe(Hooks{
		OnComplete: func(task *domain.Task, result *domain.TaskResult) { done <- task.ID },
	})

	ctx := context.Background()
	for _, fileID := range []string{"file-1", "file-2"} {
		if err := queue.Enqueue(ctx, domain.NewFileProcessTask("user-1", fileID)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for task %d", i+1)
		}
	}

	if got := files.processedFiles(); len(got) != 2 {
		t.Errorf("expected 2 files processed, got %v", got)
	}
}

func TestWorker_ContextCancellation(t *testing.T) {
	queue := newStubQueue()
	queue.dequeueDelay = 500 * time.Millisecond

	w := NewWorker(WorkerConfig{
		TaskQueue:      queue,
		SyncRunner:     &stubRunner{},
		Files:          &stubFiles{},
		Logger:         testLogger(),
		Concurrency:    1,
		DequeueTimeout: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())

	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	cancel()

	waited := make(chan struct{})
	go func() {
		w.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after context cancellation")
	}
}

func TestWorker_RateLimitThrottles(t *testing.T) {
	queue := newStubQueue()
	queue.dequeueDelay = time.Millisecond

	w := NewWorker(WorkerConfig{
		TaskQueue:      queue,
		SyncRunner:     &stubRunner{},
		Files:          &stubFiles{},
		Logger:         testLogger(),
		Concurrency:    2,
		DequeueTimeout: 1,
		RateLimit:      1,
		RateWindow:     150 * time.Millisecond,
	})

	done := make(chan struct{}, 3)
	w.Observe(Hooks{
		OnComplete: func(task *domain.Task, result *domain.TaskResult) { done <- struct{}{} },
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		task := domain.NewUserSyncTask(domain.SourceCalendar, "user-1", i)
		if err := queue.Enqueue(ctx, task); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	start := time.Now()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for task %d", i+1)
		}
	}
	elapsed := time.Since(start)

	// One start per 150ms window: the third task cannot begin before ~300ms.
	if elapsed < 250*time.Millisecond {
		t.Errorf("expected rate limiting to spread 3 tasks over at least 250ms, finished in %s", elapsed)
	}
}
