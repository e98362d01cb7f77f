package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

const (
	// How long a processing task may go without updates before another
	// worker may reclaim it
	claimTimeout = 5 * time.Minute

	// How many finished tasks are kept for inspection
	completedRetain = 100
	failedRetain    = 500
)

// Ensure Queue implements TaskQueue
var _ driven.TaskQueue = (*Queue)(nil)

const taskColumns = `id, type, user_id, payload, status, priority,
	attempts, max_attempts, error, created_at, updated_at,
	started_at, completed_at, scheduled_for`

// Queue implements TaskQueue using PostgreSQL with SKIP LOCKED for reliable
// task processing. This is the fallback queue when Redis is not available.
type Queue struct {
	db *sql.DB
}

// NewQueue creates a new PostgreSQL-backed task queue.
// Assumes the tasks and repeatable_jobs tables exist (see schema.sql).
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// Enqueue adds a task to the queue
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return fmt.Errorf("%w: task is required", domain.ErrInvalidInput)
	}
	return insertTask(ctx, q.db, task)
}

// EnqueueBatch adds multiple tasks atomically
func (q *Queue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, task := range tasks {
		if task == nil {
			continue
		}
		if err := insertTask(ctx, tx, task); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func insertTask(ctx context.Context, ex execer, task *domain.Task) error {
	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload for task %s: %w", task.ID, err)
	}

	query := `
		INSERT INTO tasks (
			id, type, user_id, payload, status, priority,
			attempts, max_attempts, error, created_at, updated_at, scheduled_for
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = ex.ExecContext(ctx, query,
		task.ID,
		task.Type,
		task.UserID,
		payload,
		task.Status,
		task.Priority,
		task.Attempts,
		task.MaxAttempts,
		task.Error,
		task.CreatedAt,
		task.UpdatedAt,
		task.ScheduledFor,
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", task.ID, err)
	}

	return nil
}

// Dequeue retrieves the next available task using SELECT FOR UPDATE SKIP LOCKED.
// This ensures only one worker gets each task even with multiple workers.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Task, error) {
	return q.dequeue(ctx, 0)
}

// DequeueWithTimeout retrieves the next task, waiting up to timeout seconds
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	return q.dequeue(ctx, timeout)
}

func (q *Queue) dequeue(ctx context.Context, timeoutSeconds int) (*domain.Task, error) {
	// Both are best effort - the select below works regardless
	if err := q.fireDueRepeatables(ctx); err != nil {
		_ = err
	}

	if task, err := q.reclaimStalledTask(ctx); err == nil && task != nil {
		return task, nil
	}

	// Use a transaction to atomically select and update
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Select next available task with SKIP LOCKED to avoid contention
	selectQuery := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = $1
		  AND scheduled_for <= NOW()
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	task, err := scanTask(tx.QueryRowContext(ctx, selectQuery, domain.TaskStatusPending))
	if errors.Is(err, domain.ErrNotFound) {
		// No tasks available
		_ = tx.Rollback()

		// If timeout specified, wait and retry
		if timeoutSeconds > 0 {
			select {
			case <-ctx.Done():
				return nil, nil
			case <-time.After(time.Duration(timeoutSeconds) * time.Second):
				// Retry after timeout
				return q.dequeue(ctx, 0)
			}
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select task: %w", err)
	}

	// Mark task as processing
	now := time.Now()
	updateQuery := `
		UPDATE tasks
		SET status = $1, started_at = $2, updated_at = $3, attempts = attempts + 1
		WHERE id = $4
	`
	_, err = tx.ExecContext(ctx, updateQuery,
		domain.TaskStatusProcessing,
		now,
		now,
		task.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	// Update in-memory task state
	task.Status = domain.TaskStatusProcessing
	task.StartedAt = &now
	task.UpdatedAt = now
	task.Attempts++

	return task, nil
}

// reclaimStalledTask takes over a processing task whose worker stopped
// updating it. The returned task carries the Reclaimed marker so workers can
// report it.
func (q *Queue) reclaimStalledTask(ctx context.Context) (*domain.Task, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	selectQuery := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = $1
		  AND updated_at < NOW() - make_interval(secs => $2)
		ORDER BY updated_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	task, err := scanTask(tx.QueryRowContext(ctx, selectQuery,
		domain.TaskStatusProcessing, claimTimeout.Seconds()))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select stalled task: %w", err)
	}

	now := time.Now()
	updateQuery := `
		UPDATE tasks
		SET started_at = $1, updated_at = $2, attempts = attempts + 1
		WHERE id = $3
	`
	if _, err := tx.ExecContext(ctx, updateQuery, now, now, task.ID); err != nil {
		return nil, fmt.Errorf("update stalled task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	task.StartedAt = &now
	task.UpdatedAt = now
	task.Attempts++
	task.Reclaimed = true

	return task, nil
}

// Ack marks a task as completed and trims the completed retention window
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	now := time.Now()
	query := `
		UPDATE tasks
		SET status = $1, completed_at = $2, updated_at = $3, error = ''
		WHERE id = $4
	`

	result, err := q.db.ExecContext(ctx, query,
		domain.TaskStatusCompleted,
		now,
		now,
		taskID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	q.trimFinished(ctx, domain.TaskStatusCompleted, completedRetain)
	return nil
}

// Nack marks a task as failed, potentially scheduling a retry
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	// First get the task to check retry count
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}

	now := time.Now()

	if task.CanRetry() {
		// Schedule retry with exponential backoff
		backoff := time.Duration(1<<task.Attempts) * time.Second
		if backoff > 5*time.Minute {
			backoff = 5 * time.Minute
		}

		query := `
			UPDATE tasks
			SET status = $1, error = $2, updated_at = $3, scheduled_for = $4
			WHERE id = $5
		`
		_, err = q.db.ExecContext(ctx, query,
			domain.TaskStatusPending,
			reason,
			now,
			now.Add(backoff),
			taskID,
		)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	}

	// Max retries exceeded, mark as failed
	query := `
		UPDATE tasks
		SET status = $1, error = $2, updated_at = $3
		WHERE id = $4
	`
	_, err = q.db.ExecContext(ctx, query,
		domain.TaskStatusFailed,
		reason,
		now,
		taskID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	q.trimFinished(ctx, domain.TaskStatusFailed, failedRetain)
	return nil
}

// GetTask retrieves a task by ID
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(q.db.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query task: %w", err)
	}

	return task, nil
}

// ListTasks retrieves tasks matching the filter
func (q *Queue) ListTasks(ctx context.Context, filter driven.TaskFilter) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	args := []any{}
	argIndex := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, filter.UserID)
		argIndex++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argIndex)
		args = append(args, filter.Type)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		argIndex++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, nil
}

// CancelTask cancels a pending task
func (q *Queue) CancelTask(ctx context.Context, taskID string) error {
	query := `
		UPDATE tasks
		SET status = $1, updated_at = $2, error = 'cancelled'
		WHERE id = $3 AND status = $4
	`

	result, err := q.db.ExecContext(ctx, query,
		domain.TaskStatusFailed,
		time.Now(),
		taskID,
		domain.TaskStatusPending,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish unknown tasks from tasks past cancellation
		if _, err := q.GetTask(ctx, taskID); err != nil {
			return err
		}
		return fmt.Errorf("%w: task %s is not pending", domain.ErrInvalidInput, taskID)
	}

	return nil
}

// PurgeTasks removes old completed/failed tasks
func (q *Queue) PurgeTasks(ctx context.Context, olderThanSeconds int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(olderThanSeconds) * time.Second)

	query := `
		DELETE FROM tasks
		WHERE status IN ($1, $2)
		  AND updated_at < $3
	`

	result, err := q.db.ExecContext(ctx, query,
		domain.TaskStatusCompleted,
		domain.TaskStatusFailed,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return int(rows), nil
}

// EnqueueRepeatable installs or replaces a named recurring trigger.
// The cron spec must parse; next_run is derived from it when unset.
func (q *Queue) EnqueueRepeatable(ctx context.Context, job *domain.RepeatableJob) error {
	if job == nil || job.Name == "" {
		return fmt.Errorf("%w: repeatable job requires a name", domain.ErrInvalidInput)
	}

	schedule, err := cron.ParseStandard(job.CronSpec)
	if err != nil {
		return fmt.Errorf("%w: invalid cron spec %q: %v", domain.ErrInvalidInput, job.CronSpec, err)
	}
	if job.NextRun.IsZero() {
		job.NextRun = schedule.Next(time.Now())
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO repeatable_jobs (name, type, payload, cron_spec, next_run, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			type = EXCLUDED.type,
			payload = EXCLUDED.payload,
			cron_spec = EXCLUDED.cron_spec,
			next_run = EXCLUDED.next_run
	`

	_, err = q.db.ExecContext(ctx, query,
		job.Name,
		job.Type,
		payload,
		job.CronSpec,
		job.NextRun,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert repeatable job: %w", err)
	}

	return nil
}

// RemoveRepeatable deletes a recurring trigger. Unknown names are not an error.
func (q *Queue) RemoveRepeatable(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM repeatable_jobs WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete repeatable job: %w", err)
	}
	return nil
}

// ListRepeatable returns recurring triggers whose name starts with namePrefix,
// sorted by name. An empty prefix returns all of them.
func (q *Queue) ListRepeatable(ctx context.Context, namePrefix string) ([]*domain.RepeatableJob, error) {
	query := `
		SELECT name, type, payload, cron_spec, next_run, created_at
		FROM repeatable_jobs
		WHERE name LIKE $1 || '%'
		ORDER BY name
	`

	rows, err := q.db.QueryContext(ctx, query, namePrefix)
	if err != nil {
		return nil, fmt.Errorf("query repeatable jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.RepeatableJob
	for rows.Next() {
		var job domain.RepeatableJob
		var payload []byte
		if err := rows.Scan(&job.Name, &job.Type, &payload, &job.CronSpec, &job.NextRun, &job.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan repeatable job: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &job.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal payload: %w", err)
			}
		}
		jobs = append(jobs, &job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repeatable jobs: %w", err)
	}

	return jobs, nil
}

// fireDueRepeatables enqueues a task for every recurring trigger whose
// next_run has passed and advances its schedule. Row locks keep concurrent
// workers from firing the same trigger twice.
func (q *Queue) fireDueRepeatables(ctx context.Context) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		SELECT name, type, payload, cron_spec, next_run
		FROM repeatable_jobs
		WHERE next_run <= NOW()
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query due jobs: %w", err)
	}

	type dueJob struct {
		name     string
		taskType domain.TaskType
		payload  map[string]string
		cronSpec string
	}
	var due []dueJob

	for rows.Next() {
		var job dueJob
		var payload []byte
		var nextRun time.Time
		if err := rows.Scan(&job.name, &job.taskType, &payload, &job.cronSpec, &nextRun); err != nil {
			rows.Close()
			return fmt.Errorf("scan due job: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &job.payload); err != nil {
				rows.Close()
				return fmt.Errorf("unmarshal payload: %w", err)
			}
		}
		due = append(due, job)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate due jobs: %w", err)
	}

	if len(due) == 0 {
		return nil
	}

	now := time.Now()
	for _, job := range due {
		schedule, err := cron.ParseStandard(job.cronSpec)
		if err != nil {
			// Unparseable spec cannot fire again; drop it
			if _, err := tx.ExecContext(ctx, `DELETE FROM repeatable_jobs WHERE name = $1`, job.name); err != nil {
				return fmt.Errorf("delete broken job: %w", err)
			}
			continue
		}

		task := domain.NewTask(job.taskType, "", job.payload)
		if err := insertTask(ctx, tx, task); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE repeatable_jobs SET next_run = $1 WHERE name = $2`,
			schedule.Next(now), job.name,
		)
		if err != nil {
			return fmt.Errorf("advance job schedule: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Stats returns queue statistics
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	// Count by status
	query := `
		SELECT status, COUNT(*) FROM tasks GROUP BY status
	`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}

		switch domain.TaskStatus(status) {
		case domain.TaskStatusPending:
			stats.PendingCount = count
		case domain.TaskStatusProcessing:
			stats.ProcessingCount = count
		case domain.TaskStatusCompleted:
			stats.CompletedCount = count
		case domain.TaskStatusFailed:
			stats.FailedCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}

	// Get oldest pending task age
	ageQuery := `
		SELECT EXTRACT(EPOCH FROM (NOW() - MIN(created_at)))::bigint
		FROM tasks
		WHERE status = $1
	`
	var age sql.NullInt64
	err = q.db.QueryRowContext(ctx, ageQuery, domain.TaskStatusPending).Scan(&age)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("query oldest age: %w", err)
	}
	if age.Valid {
		stats.OldestPendingAge = age.Int64
	}

	return stats, nil
}

// Ping checks database connectivity
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close is a no-op for the Postgres queue (db connection managed externally)
func (q *Queue) Close() error {
	return nil
}

// trimFinished deletes finished tasks beyond the retention window, newest
// kept. Best effort: retention never fails the ack that triggered it.
func (q *Queue) trimFinished(ctx context.Context, status domain.TaskStatus, retain int) {
	query := `
		DELETE FROM tasks
		WHERE id IN (
			SELECT id FROM tasks
			WHERE status = $1
			ORDER BY updated_at DESC
			OFFSET $2
		)
	`
	_, _ = q.db.ExecContext(ctx, query, status, retain)
}

func scanTask(row scanner) (*domain.Task, error) {
	var task domain.Task
	var payload []byte
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.Type,
		&task.UserID,
		&payload,
		&task.Status,
		&task.Priority,
		&task.Attempts,
		&task.MaxAttempts,
		&task.Error,
		&task.CreatedAt,
		&task.UpdatedAt,
		&startedAt,
		&completedAt,
		&task.ScheduledFor,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}

	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}

	return &task, nil
}
