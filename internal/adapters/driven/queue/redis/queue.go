package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

const (
	// Stream names
	taskStream     = "engram:tasks"
	taskGroup      = "engram:workers"
	scheduledTasks = "engram:scheduled"

	// Repeatable triggers live in a hash keyed by trigger name
	repeatableJobs = "engram:repeatable"

	// Retention lists for finished tasks, newest first
	completedTasks = "engram:done:completed"
	failedTasks    = "engram:done:failed"

	// Key prefixes
	taskKeyPrefix  = "engram:task:"
	firedKeyPrefix = "engram:repeatable:fired:"

	// Default consumer name prefix
	consumerPrefix = "worker-"

	// Claim timeout - how long before a task is considered abandoned
	claimTimeout = 5 * time.Minute

	// Task records expire on their own if retention never touches them
	taskTTL = 24 * time.Hour

	// Fire guard keys only need to outlive the cron slot they protect
	firedGuardTTL = time.Hour

	// How many finished tasks are kept for inspection
	completedRetain = 100
	failedRetain    = 500
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue using Redis Streams.
// Redis Streams provide reliable message queuing with consumer groups,
// automatic acknowledgment tracking, and abandoned-task reclaim. Delayed
// tasks wait in a sorted set, repeatable triggers in a hash; both are
// promoted into the stream by whichever consumer polls first.
type Queue struct {
	client       *redis.Client
	consumerName string
}

// NewQueue creates a new Redis-backed task queue.
// The consumerName should be unique per worker instance (e.g., hostname + PID).
func NewQueue(client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("%s%d", consumerPrefix, time.Now().UnixNano())
	}

	q := &Queue{
		client:       client,
		consumerName: consumerName,
	}

	// Create consumer group if it doesn't exist
	ctx := context.Background()
	err := q.client.XGroupCreateMkStream(ctx, taskStream, taskGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return q, nil
}

// Enqueue adds a task to the queue for processing.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return fmt.Errorf("%w: task is required", domain.ErrInvalidInput)
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	// Use pipeline for atomic operations
	pipe := q.client.Pipeline()
	pipe.Set(ctx, taskKey(task.ID), taskData, taskTTL)

	if task.ScheduledFor.After(time.Now()) {
		// Add to sorted set for delayed execution
		pipe.ZAdd(ctx, scheduledTasks, redis.Z{
			Score:  float64(task.ScheduledFor.Unix()),
			Member: task.ID,
		})
	} else {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: taskStream,
			Values: streamFields(task),
		})
	}

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// EnqueueBatch adds multiple tasks to the queue atomically.
func (q *Queue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	pipe := q.client.Pipeline()
	now := time.Now()

	for _, task := range tasks {
		if task == nil {
			continue
		}

		taskData, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
		}

		pipe.Set(ctx, taskKey(task.ID), taskData, taskTTL)

		if task.ScheduledFor.After(now) {
			pipe.ZAdd(ctx, scheduledTasks, redis.Z{
				Score:  float64(task.ScheduledFor.Unix()),
				Member: task.ID,
			})
		} else {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: taskStream,
				Values: streamFields(task),
			})
		}
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to enqueue batch: %w", err)
	}

	return nil
}

// Dequeue retrieves the next available task for processing.
// This blocks until a task is available or context is cancelled.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Task, error) {
	return q.DequeueWithTimeout(ctx, 0) // 0 means block forever
}

// DequeueWithTimeout retrieves the next available task, waiting up to timeout seconds.
// Each call also fires due repeatable triggers, promotes due scheduled tasks,
// and reclaims tasks abandoned by consumers that stopped acknowledging.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	// Both are best effort - the stream read below works regardless
	if err := q.fireDueRepeatables(ctx); err != nil {
		_ = err
	}
	if err := q.promoteScheduledTasks(ctx); err != nil {
		_ = err
	}

	// Try to claim abandoned tasks first
	task, err := q.claimAbandonedTask(ctx)
	if err == nil && task != nil {
		return task, nil
	}

	// Read new tasks from stream
	blockDuration := time.Duration(timeout) * time.Second
	if timeout == 0 {
		blockDuration = 0 // Block forever
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumerName,
		Streams:  []string{taskStream, ">"},
		Count:    1,
		Block:    blockDuration,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No tasks available
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	msg := streams[0].Messages[0]
	taskID, ok := msg.Values["task_id"].(string)
	if !ok {
		// Invalid message, acknowledge and skip
		q.client.XAck(ctx, taskStream, taskGroup, msg.ID)
		return nil, nil
	}

	// Fetch full task data
	task, err = q.getTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task data: %w", err)
	}

	if task == nil {
		// Task record expired, acknowledge and skip
		q.client.XAck(ctx, taskStream, taskGroup, msg.ID)
		return nil, nil
	}

	// Update task status
	task.MarkProcessing()

	// Store updated task and message ID for ack/nack
	if err := q.saveTask(ctx, task); err != nil {
		return nil, err
	}
	q.client.Set(ctx, msgKey(task.ID), msg.ID, taskTTL)

	return task, nil
}

// Ack acknowledges successful completion of a task.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	// Get the message ID
	msgID, err := q.client.Get(ctx, msgKey(taskID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get message ID: %w", err)
	}

	pipe := q.client.Pipeline()

	// Acknowledge the message in the stream
	if msgID != "" {
		pipe.XAck(ctx, taskStream, taskGroup, msgID)
		pipe.XDel(ctx, taskStream, msgID)
	}

	// Update task status
	task, err := q.getTask(ctx, taskID)
	if err == nil && task != nil {
		task.MarkCompleted()
		taskData, _ := json.Marshal(task)
		pipe.Set(ctx, taskKey(taskID), taskData, taskTTL)
	}

	// Clean up message ID key
	pipe.Del(ctx, msgKey(taskID))

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to ack task: %w", err)
	}

	q.recordFinished(ctx, completedTasks, taskID, completedRetain)
	return nil
}

// Nack indicates task processing failed and should be retried.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.getTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}
	if task == nil {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}

	// Get message ID for acknowledgment
	msgID, _ := q.client.Get(ctx, msgKey(taskID)).Result()

	pipe := q.client.Pipeline()

	// Acknowledge the current message (we'll re-enqueue if retrying)
	if msgID != "" {
		pipe.XAck(ctx, taskStream, taskGroup, msgID)
		pipe.XDel(ctx, taskStream, msgID)
	}

	// Check if task can be retried
	retrying := task.CanRetry()
	if retrying {
		task.Retry(reason)
		taskData, _ := json.Marshal(task)
		pipe.Set(ctx, taskKey(taskID), taskData, taskTTL)

		// Re-enqueue with delay (via scheduled set)
		pipe.ZAdd(ctx, scheduledTasks, redis.Z{
			Score:  float64(task.ScheduledFor.Unix()),
			Member: task.ID,
		})
	} else {
		// Mark as failed
		task.MarkFailed(reason)
		taskData, _ := json.Marshal(task)
		pipe.Set(ctx, taskKey(taskID), taskData, taskTTL)
	}

	// Clean up message ID key
	pipe.Del(ctx, msgKey(taskID))

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to nack task: %w", err)
	}

	if !retrying {
		q.recordFinished(ctx, failedTasks, taskID, failedRetain)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := q.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	return task, nil
}

// ListTasks retrieves tasks matching the filter criteria.
// Note: This is less efficient in Redis than Postgres for complex queries.
func (q *Queue) ListTasks(ctx context.Context, filter driven.TaskFilter) ([]*domain.Task, error) {
	all, err := q.scanTasks(ctx)
	if err != nil {
		return nil, err
	}

	tasks := make([]*domain.Task, 0, len(all))
	for _, task := range all {
		if filter.UserID != "" && task.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Type != "" && task.Type != filter.Type {
			continue
		}
		tasks = append(tasks, task)
	}

	// Scan order is arbitrary; newest first keeps pagination stable enough
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(tasks) {
			return []*domain.Task{}, nil
		}
		tasks = tasks[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(tasks) {
		tasks = tasks[:filter.Limit]
	}

	return tasks, nil
}

// CancelTask marks a pending task as cancelled.
func (q *Queue) CancelTask(ctx context.Context, taskID string) error {
	task, err := q.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}

	if task.Status != domain.TaskStatusPending {
		return fmt.Errorf("%w: cannot cancel task in status %s", domain.ErrInvalidInput, task.Status)
	}

	pipe := q.client.Pipeline()

	// Remove from scheduled set if present
	pipe.ZRem(ctx, scheduledTasks, taskID)

	// Update task status
	task.MarkFailed("cancelled")
	taskData, _ := json.Marshal(task)
	pipe.Set(ctx, taskKey(taskID), taskData, taskTTL)

	_, err = pipe.Exec(ctx)
	return err
}

// PurgeTasks removes completed/failed tasks older than the specified age.
func (q *Queue) PurgeTasks(ctx context.Context, olderThanSeconds int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(olderThanSeconds) * time.Second)

	all, err := q.scanTasks(ctx)
	if err != nil {
		return 0, err
	}

	var purged int
	for _, task := range all {
		if task.Status != domain.TaskStatusCompleted && task.Status != domain.TaskStatusFailed {
			continue
		}
		if task.UpdatedAt.After(cutoff) {
			continue
		}

		pipe := q.client.Pipeline()
		pipe.Del(ctx, taskKey(task.ID))
		pipe.Del(ctx, msgKey(task.ID))
		pipe.LRem(ctx, completedTasks, 0, task.ID)
		pipe.LRem(ctx, failedTasks, 0, task.ID)
		if _, err := pipe.Exec(ctx); err != nil {
			return purged, fmt.Errorf("failed to purge task %s: %w", task.ID, err)
		}
		purged++
	}

	return purged, nil
}

// EnqueueRepeatable installs or replaces a named recurring trigger.
// The cron spec must parse; NextRun is derived from it when unset.
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

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal repeatable job: %w", err)
	}

	if err := q.client.HSet(ctx, repeatableJobs, job.Name, data).Err(); err != nil {
		return fmt.Errorf("failed to store repeatable job: %w", err)
	}
	return nil
}

// RemoveRepeatable deletes a recurring trigger. Unknown names are not an error.
func (q *Queue) RemoveRepeatable(ctx context.Context, name string) error {
	if err := q.client.HDel(ctx, repeatableJobs, name).Err(); err != nil {
		return fmt.Errorf("failed to remove repeatable job: %w", err)
	}
	return nil
}

// ListRepeatable returns recurring triggers whose name starts with namePrefix,
// sorted by name. An empty prefix returns all of them.
func (q *Queue) ListRepeatable(ctx context.Context, namePrefix string) ([]*domain.RepeatableJob, error) {
	entries, err := q.client.HGetAll(ctx, repeatableJobs).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list repeatable jobs: %w", err)
	}

	jobs := make([]*domain.RepeatableJob, 0, len(entries))
	for name, raw := range entries {
		if namePrefix != "" && !strings.HasPrefix(name, namePrefix) {
			continue
		}
		var job domain.RepeatableJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		jobs = append(jobs, &job)
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs, nil
}

// Stats returns queue statistics. Completed and failed counts come from the
// retention lists, so they reflect recent history rather than all time.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	// Get pending count from stream
	info, err := q.client.XInfoStream(ctx, taskStream).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		// Stream might not exist yet
		if !isStreamNotExistsError(err) {
			return nil, fmt.Errorf("failed to get stream info: %w", err)
		}
	} else if err == nil {
		stats.PendingCount = info.Length
	}

	// Get scheduled count
	scheduledCount, err := q.client.ZCard(ctx, scheduledTasks).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get scheduled count: %w", err)
	}
	stats.PendingCount += scheduledCount

	// Get processing count from consumer group
	groups, err := q.client.XInfoGroups(ctx, taskStream).Result()
	if err == nil {
		for _, group := range groups {
			if group.Name == taskGroup {
				stats.ProcessingCount = group.Pending
				break
			}
		}
	}

	stats.CompletedCount, _ = q.client.LLen(ctx, completedTasks).Result()
	stats.FailedCount, _ = q.client.LLen(ctx, failedTasks).Result()
	stats.OldestPendingAge = q.oldestPendingAge(ctx)

	return stats, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close cleans up resources.
func (q *Queue) Close() error {
	// Redis client is shared, don't close it here
	return nil
}

// fireDueRepeatables enqueues a task for every recurring trigger whose
// NextRun has passed and advances its schedule. A short-lived guard key
// keeps concurrent consumers from firing the same slot twice.
func (q *Queue) fireDueRepeatables(ctx context.Context) error {
	entries, err := q.client.HGetAll(ctx, repeatableJobs).Result()
	if err != nil || len(entries) == 0 {
		return err
	}

	now := time.Now()
	for name, raw := range entries {
		var job domain.RepeatableJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			q.client.HDel(ctx, repeatableJobs, name)
			continue
		}
		if job.NextRun.After(now) {
			continue
		}

		schedule, err := cron.ParseStandard(job.CronSpec)
		if err != nil {
			q.client.HDel(ctx, repeatableJobs, name)
			continue
		}

		guardKey := fmt.Sprintf("%s%s:%d", firedKeyPrefix, name, job.NextRun.Unix())
		won, err := q.client.SetNX(ctx, guardKey, q.consumerName, firedGuardTTL).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire fire guard: %w", err)
		}

		// Advance the schedule even when another consumer won the guard,
		// so a consumer dying mid-fire cannot stall the trigger.
		job.NextRun = schedule.Next(now)
		if data, merr := json.Marshal(&job); merr == nil {
			q.client.HSet(ctx, repeatableJobs, name, data)
		}

		if !won {
			continue
		}

		task := domain.NewTask(job.Type, "", clonePayload(job.Payload))
		if err := q.Enqueue(ctx, task); err != nil {
			return fmt.Errorf("failed to fire repeatable job %s: %w", name, err)
		}
	}

	return nil
}

// promoteScheduledTasks moves due scheduled tasks to the main stream.
func (q *Queue) promoteScheduledTasks(ctx context.Context) error {
	now := time.Now().Unix()

	// Get tasks that are due
	taskIDs, err := q.client.ZRangeByScore(ctx, scheduledTasks, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now, 10),
	}).Result()
	if err != nil {
		return err
	}

	if len(taskIDs) == 0 {
		return nil
	}

	pipe := q.client.Pipeline()

	for _, taskID := range taskIDs {
		// Get task data
		task, err := q.getTask(ctx, taskID)
		if err != nil || task == nil {
			pipe.ZRem(ctx, scheduledTasks, taskID)
			continue
		}

		// Add to stream
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: taskStream,
			Values: streamFields(task),
		})

		// Remove from scheduled set
		pipe.ZRem(ctx, scheduledTasks, taskID)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// claimAbandonedTask tries to claim a task that was abandoned by another worker.
// The returned task carries the Reclaimed marker so workers can report it.
func (q *Queue) claimAbandonedTask(ctx context.Context) (*domain.Task, error) {
	// Get pending messages that have been idle too long
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: taskStream,
		Group:  taskGroup,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   claimTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		// Try to claim this message
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   taskStream,
			Group:    taskGroup,
			Consumer: q.consumerName,
			MinIdle:  claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}

		msg := claimed[0]
		taskID, ok := msg.Values["task_id"].(string)
		if !ok {
			// Invalid message, delete it
			q.client.XAck(ctx, taskStream, taskGroup, msg.ID)
			q.client.XDel(ctx, taskStream, msg.ID)
			continue
		}

		task, err := q.getTask(ctx, taskID)
		if err != nil || task == nil {
			q.client.XAck(ctx, taskStream, taskGroup, msg.ID)
			q.client.XDel(ctx, taskStream, msg.ID)
			continue
		}

		// Update task
		task.MarkProcessing()
		task.Reclaimed = true
		if err := q.saveTask(ctx, task); err != nil {
			return nil, err
		}
		q.client.Set(ctx, msgKey(task.ID), msg.ID, taskTTL)

		return task, nil
	}

	return nil, nil
}

// recordFinished pushes a finished task ID onto a retention list and evicts
// entries beyond the cap, deleting their task records. Best effort: retention
// never fails the ack that triggered it.
func (q *Queue) recordFinished(ctx context.Context, list, taskID string, retain int64) {
	length, err := q.client.LPush(ctx, list, taskID).Result()
	if err != nil || length <= retain {
		return
	}

	evicted, err := q.client.LRange(ctx, list, retain, -1).Result()
	if err != nil {
		return
	}
	for _, id := range evicted {
		q.client.Del(ctx, taskKey(id), msgKey(id))
	}
	q.client.LTrim(ctx, list, 0, retain-1)
}

// getTask loads a task record, returning (nil, nil) when missing so dequeue
// paths can skip expired records without treating them as failures.
func (q *Queue) getTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, taskKey(taskID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}

	return &task, nil
}

func (q *Queue) saveTask(ctx context.Context, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := q.client.Set(ctx, taskKey(task.ID), data, taskTTL).Err(); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// scanTasks walks all task records. This is O(N) - use sparingly.
func (q *Queue) scanTasks(ctx context.Context) ([]*domain.Task, error) {
	var tasks []*domain.Task
	var cursor uint64
	pattern := taskKeyPrefix + "*"

	for {
		keys, newCursor, err := q.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan tasks: %w", err)
		}

		for _, key := range keys {
			// Skip message ID keys
			if strings.HasSuffix(key, ":msg") {
				continue
			}

			data, err := q.client.Get(ctx, key).Result()
			if err != nil {
				continue
			}

			var task domain.Task
			if err := json.Unmarshal([]byte(data), &task); err != nil {
				continue
			}

			tasks = append(tasks, &task)
		}

		cursor = newCursor
		if cursor == 0 {
			break
		}
	}

	return tasks, nil
}

// oldestPendingAge reports the age in seconds of the oldest stream entry.
// Stream IDs embed their enqueue time in milliseconds.
func (q *Queue) oldestPendingAge(ctx context.Context) int64 {
	msgs, err := q.client.XRangeN(ctx, taskStream, "-", "+", 1).Result()
	if err != nil || len(msgs) == 0 {
		return 0
	}

	parts := strings.SplitN(msgs[0].ID, "-", 2)
	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0
	}

	age := time.Now().UnixMilli() - ms
	if age < 0 {
		return 0
	}
	return age / 1000
}

// Helper functions

func streamFields(task *domain.Task) map[string]interface{} {
	return map[string]interface{}{
		"task_id":  task.ID,
		"type":     string(task.Type),
		"user_id":  task.UserID,
		"priority": task.Priority,
	}
}

func taskKey(taskID string) string {
	return taskKeyPrefix + taskID
}

func msgKey(taskID string) string {
	return taskKeyPrefix + taskID + ":msg"
}

func clonePayload(payload map[string]string) map[string]string {
	if payload == nil {
		return nil
	}
	clone := make(map[string]string, len(payload))
	for k, v := range payload {
		clone[k] = v
	}
	return clone
}

func isGroupExistsError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

func isStreamNotExistsError(err error) bool {
	return err != nil && (err.Error() == "ERR no such key" ||
		err.Error() == "ERR The XINFO subcommand requires the key to exist")
}
