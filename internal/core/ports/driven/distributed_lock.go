package driven

import (
	"context"
	"time"
)

// SyncLeaseKey builds the lock name guarding one (user, source) sync so a
// manually triggered sync cannot race a scheduled one for the same pair.
func SyncLeaseKey(userID, source string) string {
	return "sync:user:" + userID + ":" + source
}

// DistributedLock provides distributed locking for coordinating work across
// engine instances. The engine takes two kinds of locks: the scheduler
// singleton (only one instance installs recurring triggers on startup) and
// the per-(user, source) sync lease held while a sync job runs.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns true if the lock was successfully acquired, false if already held
	// elsewhere. The lock expires on its own after TTL.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock.
	// This is best-effort; TTL expiry covers a crashed holder.
	// Safe to call even if the lock is not held or has expired.
	Release(ctx context.Context, name string) error

	// Extend extends the TTL of a currently held lock.
	// Returns error if the lock is not held by this instance.
	// Note: Not all implementations support TTL extension (e.g., PostgreSQL advisory locks).
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
