package domain

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"strconv"
	"sync"
	"time"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// MaxJitter bounds the random delay added to every sync enqueue so that
// recurring triggers do not hit external APIs in synchronized bursts.
const MaxJitter = 5 * time.Second

// Jitter returns a random duration in [0, MaxJitter).
func Jitter() time.Duration {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(MaxJitter)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeSyncFanOut expands into one per-user sync task per eligible user
	TaskTypeSyncFanOut TaskType = "sync_fanout"
	// TaskTypeSyncUser syncs one source for one user
	TaskTypeSyncUser TaskType = "sync_user"
	// TaskTypeFileProcess runs the ingest pipeline for an uploaded file
	TaskTypeFileProcess TaskType = "file_process"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a background job to be processed by workers
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Type identifies what kind of task this is
	Type TaskType `json:"type"`

	// UserID scopes the task to one user. Empty on fan-out tasks,
	// which expand across all eligible users.
	UserID string `json:"user_id,omitempty"`

	// Payload contains task-specific data
	// For sync_fanout: {"source": "calendar"}
	// For sync_user:   {"source": "calendar", "fanout_index": "3"}
	// For file_process: {"file_id": "..."}
	Payload map[string]string `json:"payload"`

	// Status is the current state of the task
	Status TaskStatus `json:"status"`

	// Priority determines processing order (higher = more urgent)
	// Default is 0, range is -100 to 100
	Priority int `json:"priority"`

	// Attempts is how many times this task has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum retry count before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	// CreatedAt is when the task was enqueued
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the task was last modified
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt is when processing began (nil if not started)
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when processing finished (nil if not complete)
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task should be processed (for delayed tasks)
	ScheduledFor time.Time `json:"scheduled_for"`

	// Reclaimed marks a task taken back from a consumer that stopped
	// heartbeating. Queue adapters set it on dequeue; never persisted.
	Reclaimed bool `json:"-"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, userID string, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           GenerateID(),
		Type:         taskType,
		UserID:       userID,
		Payload:      payload,
		Status:       TaskStatusPending,
		Priority:     0,
		Attempts:     0,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewSyncFanOutTask creates a task that fans out one source across all eligible users
func NewSyncFanOutTask(source SyncSource) *Task {
	return NewTask(TaskTypeSyncFanOut, "", map[string]string{
		"source": string(source),
	})
}

// NewUserSyncTask creates a task to sync one source for one user.
// The fan-out index is retained for diagnostics on staggered batches;
// a negative index marks an on-demand sync outside any batch.
func NewUserSyncTask(source SyncSource, userID string, fanOutIndex int) *Task {
	payload := map[string]string{"source": string(source)}
	if fanOutIndex >= 0 {
		payload["fanout_index"] = strconv.Itoa(fanOutIndex)
	}
	return NewTask(TaskTypeSyncUser, userID, payload)
}

// NewFileProcessTask creates a task to run the ingest pipeline for a stored upload
func NewFileProcessTask(userID, fileID string) *Task {
	return NewTask(TaskTypeFileProcess, userID, map[string]string{
		"file_id": fileID,
	})
}

// Source extracts the sync source from the payload (for sync tasks)
func (t *Task) Source() SyncSource {
	if t.Payload == nil {
		return ""
	}
	return SyncSource(t.Payload["source"])
}

// FileID extracts the file_id from the payload (for file_process tasks)
func (t *Task) FileID() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload["file_id"]
}

// FanOutIndex extracts the position this task held in its fan-out batch.
// Returns -1 for tasks that were not part of a fan-out.
func (t *Task) FanOutIndex() int {
	if t.Payload == nil {
		return -1
	}
	idx, err := strconv.Atoi(t.Payload["fanout_index"])
	if err != nil {
		return -1
	}
	return idx
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && time.Now().After(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.UpdatedAt = now
	t.Error = err
}

// Retry resets the task for retry with exponential backoff.
// Backoff starts at 1s and doubles per consumed attempt, capped at 5 minutes.
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err

	backoff := time.Duration(1<<t.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	t.ScheduledFor = now.Add(backoff)
}

// TaskResult represents the outcome of processing a task
type TaskResult struct {
	TaskID      string        `json:"task_id"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	ItemsCount  int           `json:"items_count,omitempty"`  // e.g., records synced or users fanned out
	ErrorsCount int           `json:"errors_count,omitempty"` // e.g., records failed
}

// RepeatableJob is a recurring trigger installed on the queue substrate.
// Name carries the owning scheduler's prefix so a restarted process can
// find and remove triggers left behind by a predecessor.
type RepeatableJob struct {
	// Name uniquely identifies the trigger on the substrate
	Name string `json:"name"`

	// Type is the task type created on each fire
	Type TaskType `json:"type"`

	// Payload is copied into every fired task
	Payload map[string]string `json:"payload"`

	// CronSpec is the schedule in standard cron syntax
	CronSpec string `json:"cron_spec"`

	// NextRun is when the trigger next fires
	NextRun time.Time `json:"next_run"`

	// CreatedAt is when the trigger was installed
	CreatedAt time.Time `json:"created_at"`
}

// SchedulerRegistry tracks the recurring triggers one scheduler instance
// installed. It is injected into the scheduler rather than held as package
// state, and it is advisory only: the queue substrate is the source of
// truth, and the scheduler reconciles against it on start.
type SchedulerRegistry struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewSchedulerRegistry creates an empty registry
func NewSchedulerRegistry() *SchedulerRegistry {
	return &SchedulerRegistry{names: make(map[string]struct{})}
}

// Add records an installed trigger name
func (r *SchedulerRegistry) Add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[name] = struct{}{}
}

// Remove forgets a trigger name
func (r *SchedulerRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.names, name)
}

// Names returns the tracked trigger names in no particular order
func (r *SchedulerRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	return names
}

// Clear removes every tracked name
func (r *SchedulerRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = make(map[string]struct{})
}
