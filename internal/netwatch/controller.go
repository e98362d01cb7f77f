// Package netwatch adapts sync cadence to observed device conditions.
// Each device report maps network quality onto a cadence: excellent
// pushes continuously, good polls fast, poor polls slow, offline or
// backgrounded pauses. Poll timers are real tickers torn down on pause
// or background, never left running and ignored, so a sleeping device
// costs nothing. On foreground the cadence is recomputed from the
// report's quality rather than resumed from the previous state.
package netwatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driving"
)

// enqueueTimeout bounds one round of poll-tick enqueues
const enqueueTimeout = 10 * time.Second

// Config holds configuration for the controller
type Config struct {
	Scheduler driving.SyncScheduler
	Logger    *slog.Logger

	// Sources to enqueue on each poll tick; defaults to all sources
	Sources []domain.SyncSource

	// Poll interval overrides; zero selects the domain defaults
	FastPollInterval time.Duration
	SlowPollInterval time.Duration
}

// Controller drives one poll timer per device
type Controller struct {
	scheduler driving.SyncScheduler
	logger    *slog.Logger
	sources   []domain.SyncSource
	fastPoll  time.Duration
	slowPoll  time.Duration

	mu       sync.Mutex
	stopped  bool
	timers   map[string]*pollTimer
	cadences map[string]domain.SyncCadence
}

type pollTimer struct {
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewController creates a controller with no devices observed yet
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sources := cfg.Sources
	if len(sources) == 0 {
		sources = domain.AllSyncSources
	}
	fastPoll := cfg.FastPollInterval
	if fastPoll <= 0 {
		fastPoll = domain.FastPollInterval
	}
	slowPoll := cfg.SlowPollInterval
	if slowPoll <= 0 {
		slowPoll = domain.SlowPollInterval
	}

	return &Controller{
		scheduler: cfg.Scheduler,
		logger:    logger,
		sources:   sources,
		fastPoll:  fastPoll,
		slowPoll:  slowPoll,
		timers:    make(map[string]*pollTimer),
		cadences:  make(map[string]domain.SyncCadence),
	}
}

// Observe records a network transition for a device and reconfigures its
// timer. The previous timer is always torn down first; a polling cadence
// starts a fresh one, and entering continuous enqueues an immediate sync.
func (c *Controller) Observe(userID, deviceID string, quality domain.NetworkQuality, foreground bool) domain.SyncCadence {
	cadence := domain.CadenceForQuality(quality, foreground)

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return domain.CadencePaused
	}

	c.teardownLocked(deviceID)
	c.cadences[deviceID] = cadence

	if interval := c.pollInterval(cadence); interval > 0 {
		t := &pollTimer{stopCh: make(chan struct{}), doneCh: make(chan struct{})}
		c.timers[deviceID] = t
		go c.pollLoop(userID, interval, t)
	}
	c.mu.Unlock()

	if cadence == domain.CadenceContinuous {
		c.enqueueSyncs(userID)
	}

	c.logger.Debug("cadence selected",
		"device_id", deviceID,
		"user_id", userID,
		"quality", quality,
		"foreground", foreground,
		"cadence", cadence,
	)
	return cadence
}

// Cadence returns the last cadence selected for a device, or paused for
// a device never observed
func (c *Controller) Cadence(deviceID string) domain.SyncCadence {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cadence, ok := c.cadences[deviceID]; ok {
		return cadence
	}
	return domain.CadencePaused
}

// ActiveTimers reports how many poll timers are currently live
func (c *Controller) ActiveTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Stop tears down every timer and rejects further observations
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true

	draining := make([]*pollTimer, 0, len(c.timers))
	for deviceID, t := range c.timers {
		close(t.stopCh)
		draining = append(draining, t)
		delete(c.timers, deviceID)
	}
	c.mu.Unlock()

	for _, t := range draining {
		<-t.doneCh
	}
	c.logger.Info("network controller stopped")
}

func (c *Controller) pollInterval(cadence domain.SyncCadence) time.Duration {
	switch cadence {
	case domain.CadenceFastPoll:
		return c.fastPoll
	case domain.CadenceSlowPoll:
		return c.slowPoll
	}
	return 0
}

func (c *Controller) pollLoop(userID string, interval time.Duration, t *pollTimer) {
	defer close(t.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			c.enqueueSyncs(userID)
		}
	}
}

func (c *Controller) enqueueSyncs(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()

	for _, source := range c.sources {
		if _, err := c.scheduler.EnqueueSyncJob(ctx, source, userID, 0); err != nil {
			c.logger.Error("failed to enqueue poll sync",
				"user_id", userID,
				"source", source,
				"error", err,
			)
		}
	}
}

// teardownLocked stops a device's timer if one is live. Caller holds mu.
func (c *Controller) teardownLocked(deviceID string) {
	if t, ok := c.timers[deviceID]; ok {
		close(t.stopCh)
		delete(c.timers, deviceID)
	}
}
