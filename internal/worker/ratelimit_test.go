package worker

import (
	"context"
	"testing"
	"time"
)

func TestNewRateLimiter_DisabledOnZero(t *testing.T) {
	if l := NewRateLimiter(0, time.Second); l != nil {
		t.Error("expected nil limiter for zero limit")
	}
	if l := NewRateLimiter(5, 0); l != nil {
		t.Error("expected nil limiter for zero window")
	}
}

func TestRateLimiter_NilAdmitsEverything(t *testing.T) {
	var l *RateLimiter
	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatal("nil limiter should always allow")
		}
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter wait: %v", err)
	}
	if l.Pending() != 0 {
		t.Error("nil limiter should report zero pending")
	}
}

func TestRateLimiter_AllowCapsWindow(t *testing.T) {
	l := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("start %d should be allowed", i+1)
		}
	}
	if l.Allow() {
		t.Error("4th start within the window should be denied")
	}
	if got := l.Pending(); got != 3 {
		t.Errorf("expected 3 pending starts, got %d", got)
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	l := NewRateLimiter(1, 50*time.Millisecond)

	if !l.Allow() {
		t.Fatal("first start should be allowed")
	}
	if l.Allow() {
		t.Fatal("second start should be denied inside the window")
	}

	time.Sleep(70 * time.Millisecond)

	if !l.Allow() {
		t.Error("start should be allowed after the window slides")
	}
}

func TestRateLimiter_WaitBlocksUntilSlotFrees(t *testing.T) {
	l := NewRateLimiter(1, 100*time.Millisecond)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 80*time.Millisecond {
		t.Errorf("expected second wait to block ~100ms, blocked %s", elapsed)
	}
}

func TestRateLimiter_WaitCancelled(t *testing.T) {
	l := NewRateLimiter(1, time.Minute)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Wait(ctx)
	if err == nil {
		t.Fatal("expected context error from cancelled wait")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancelled wait took too long: %s", elapsed)
	}
}
