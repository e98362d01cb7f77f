package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, func() {
		client.Close()
		mr.Close()
	}
}

func TestLock_OwnerID_Unique(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	if lock1.OwnerID() == "" {
		t.Fatal("expected non-empty owner ID")
	}
	if lock1.OwnerID() == lock2.OwnerID() {
		t.Errorf("expected unique owner IDs, got same: %s", lock1.OwnerID())
	}
}

func TestLock_Acquire_Success(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "scheduler:leader", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Error("expected to acquire lock")
	}
}

func TestLock_Acquire_Contention(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	leader := NewLock(client)
	standby := NewLock(client)
	ctx := context.Background()

	acquired, err := leader.Acquire(ctx, "scheduler:leader", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected leader to acquire lock")
	}

	// A second instance cannot take the same lock
	acquired, err = standby.Acquire(ctx, "scheduler:leader", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected standby acquire to fail while leader holds the lock")
	}

	// Unrelated lock names are independent
	acquired, err = standby.Acquire(ctx, "sync:user-1:calendar", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Error("expected standby to acquire a different lock")
	}
}

func TestLock_Acquire_NotReentrant(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "scheduler:leader", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected to acquire lock")
	}

	acquired, err = lock.Acquire(ctx, "scheduler:leader", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected re-acquire by the same holder to fail")
	}
}

func TestLock_ReleaseAllowsReacquire(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	leader := NewLock(client)
	standby := NewLock(client)
	ctx := context.Background()

	acquired, err := leader.Acquire(ctx, "scheduler:leader", 10*time.Second)
	if err != nil || !acquired {
		t.Fatalf("acquire failed: acquired=%v err=%v", acquired, err)
	}

	if err := leader.Release(ctx, "scheduler:leader"); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}

	acquired, err = standby.Acquire(ctx, "scheduler:leader", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Error("expected standby to take over after release")
	}
}

func TestLock_Release_NotHeld(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)

	if err := lock.Release(context.Background(), "scheduler:leader"); err != nil {
		t.Errorf("unexpected error releasing unheld lock: %v", err)
	}
}

func TestLock_Release_ByDifferentOwner(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	leader := NewLock(client)
	intruder := NewLock(client)
	ctx := context.Background()

	acquired, err := leader.Acquire(ctx, "scheduler:leader", 10*time.Second)
	if err != nil || !acquired {
		t.Fatalf("acquire failed: acquired=%v err=%v", acquired, err)
	}

	// A different owner's release must not free the lock
	if err := intruder.Release(ctx, "scheduler:leader"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acquired, err = intruder.Acquire(ctx, "scheduler:leader", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected lock to still be held by the original owner")
	}
}

func TestLock_Extend(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "scheduler:leader", time.Second)
	if err != nil || !acquired {
		t.Fatalf("acquire failed: acquired=%v err=%v", acquired, err)
	}

	if err := lock.Extend(ctx, "scheduler:leader", 30*time.Second); err != nil {
		t.Errorf("unexpected extend error: %v", err)
	}
}

func TestLock_Extend_NotHeld(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)

	if err := lock.Extend(context.Background(), "scheduler:leader", 10*time.Second); err == nil {
		t.Error("expected error extending unheld lock")
	}
}

func TestLock_Extend_ByDifferentOwner(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	leader := NewLock(client)
	intruder := NewLock(client)
	ctx := context.Background()

	acquired, err := leader.Acquire(ctx, "scheduler:leader", 10*time.Second)
	if err != nil || !acquired {
		t.Fatalf("acquire failed: acquired=%v err=%v", acquired, err)
	}

	if err := intruder.Extend(ctx, "scheduler:leader", 30*time.Second); err == nil {
		t.Error("expected error when a different owner extends")
	}
}

func TestLock_Ping(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)

	if err := lock.Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
}
