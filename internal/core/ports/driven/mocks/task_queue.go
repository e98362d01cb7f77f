package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// Ensure MockTaskQueue implements TaskQueue
var _ driven.TaskQueue = (*MockTaskQueue)(nil)

// MockTaskQueue is an in-memory TaskQueue for testing. Enqueued tasks are
// kept in arrival order so tests can assert on delays and payloads.
// Optional function hooks override individual methods.
type MockTaskQueue struct {
	mu         sync.Mutex
	tasks      map[string]*domain.Task
	order      []string
	repeatable map[string]*domain.RepeatableJob

	EnqueueFn           func(task *domain.Task) error
	DequeueFn           func() (*domain.Task, error)
	EnqueueRepeatableFn func(job *domain.RepeatableJob) error
	RemoveRepeatableFn  func(name string) error
	ListRepeatableFn    func(namePrefix string) ([]*domain.RepeatableJob, error)
}

// NewMockTaskQueue creates a new MockTaskQueue
func NewMockTaskQueue() *MockTaskQueue {
	return &MockTaskQueue{
		tasks:      make(map[string]*domain.Task),
		repeatable: make(map[string]*domain.RepeatableJob),
	}
}

func (m *MockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	if m.EnqueueFn != nil {
		return m.EnqueueFn(task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
	m.order = append(m.order, task.ID)
	return nil
}

func (m *MockTaskQueue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	for _, task := range tasks {
		if err := m.Enqueue(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockTaskQueue) Dequeue(ctx context.Context) (*domain.Task, error) {
	if m.DequeueFn != nil {
		return m.DequeueFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		task := m.tasks[id]
		if task.Status == domain.TaskStatusPending {
			task.MarkProcessing()
			return task, nil
		}
	}
	return nil, nil
}

func (m *MockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	return m.Dequeue(ctx)
}

func (m *MockTaskQueue) Ack(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	task.MarkCompleted()
	return nil
}

func (m *MockTaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	if task.CanRetry() {
		task.Retry(reason)
	} else {
		task.MarkFailed(reason)
	}
	return nil
}

func (m *MockTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return task, nil
}

func (m *MockTaskQueue) ListTasks(ctx context.Context, filter driven.TaskFilter) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Task
	for _, id := range m.order {
		task := m.tasks[id]
		if filter.UserID != "" && task.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Type != "" && task.Type != filter.Type {
			continue
		}
		result = append(result, task)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *MockTaskQueue) CancelTask(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	if task.Status != domain.TaskStatusPending {
		return domain.ErrInvalidInput
	}
	task.MarkFailed("cancelled")
	return nil
}

func (m *MockTaskQueue) PurgeTasks(ctx context.Context, olderThan int) (int, error) {
	return 0, nil
}

func (m *MockTaskQueue) EnqueueRepeatable(ctx context.Context, job *domain.RepeatableJob) error {
	if m.EnqueueRepeatableFn != nil {
		return m.EnqueueRepeatableFn(job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeatable[job.Name] = job
	return nil
}

func (m *MockTaskQueue) RemoveRepeatable(ctx context.Context, name string) error {
	if m.RemoveRepeatableFn != nil {
		return m.RemoveRepeatableFn(name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.repeatable, name)
	return nil
}

func (m *MockTaskQueue) ListRepeatable(ctx context.Context, namePrefix string) ([]*domain.RepeatableJob, error) {
	if m.ListRepeatableFn != nil {
		return m.ListRepeatableFn(namePrefix)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.RepeatableJob
	for name, job := range m.repeatable {
		if strings.HasPrefix(name, namePrefix) {
			result = append(result, job)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *MockTaskQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &driven.QueueStats{}
	for _, task := range m.tasks {
		switch task.Status {
		case domain.TaskStatusPending:
			stats.PendingCount++
		case domain.TaskStatusProcessing:
			stats.ProcessingCount++
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

func (m *MockTaskQueue) Ping(ctx context.Context) error {
	return nil
}

func (m *MockTaskQueue) Close() error {
	return nil
}

// Helper methods for testing

// Enqueued returns all enqueued tasks in arrival order.
func (m *MockTaskQueue) Enqueued() []*domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Task, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.tasks[id])
	}
	return result
}

// EnqueuedOfType returns enqueued tasks of one type in arrival order.
func (m *MockTaskQueue) EnqueuedOfType(taskType domain.TaskType) []*domain.Task {
	var result []*domain.Task
	for _, task := range m.Enqueued() {
		if task.Type == taskType {
			result = append(result, task)
		}
	}
	return result
}

// RepeatableNames returns the names of installed triggers, sorted.
func (m *MockTaskQueue) RepeatableNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.repeatable))
	for name := range m.repeatable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SeedRepeatable installs a trigger directly, bypassing hooks.
func (m *MockTaskQueue) SeedRepeatable(job *domain.RepeatableJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeatable[job.Name] = job
}

// Reset clears all state.
func (m *MockTaskQueue) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = make(map[string]*domain.Task)
	m.order = nil
	m.repeatable = make(map[string]*domain.RepeatableJob)
}
