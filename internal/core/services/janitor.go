package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/innovest/innovest-rag/internal/core/ports/driven"
)

const janitorLockName = "janitor"

// Janitor periodically purges finished ingestion tasks from the queue.
//
// For multi-worker deployments, configure a DistributedLock so only one
// instance purges per cycle.
type Janitor struct {
	taskQueue driven.TaskQueue
	lock      driven.DistributedLock
	logger    *slog.Logger

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration

	retention time.Duration
	lockTTL   time.Duration
}

// JanitorConfig holds configuration for the janitor.
type JanitorConfig struct {
	TaskQueue driven.TaskQueue
	Lock      driven.DistributedLock // Optional
	Logger    *slog.Logger
	Interval  time.Duration // How often to purge (default: 10m)
	Retention time.Duration // Finished tasks younger than this are kept (default: 24h)
	LockTTL   time.Duration // TTL for the distributed lock (default: 2m)
}

// NewJanitor creates a new janitor.
func NewJanitor(cfg JanitorConfig) *Janitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}

	return &Janitor{
		taskQueue: cfg.TaskQueue,
		lock:      cfg.Lock,
		logger:    logger,
		interval:  interval,
		retention: retention,
		lockTTL:   lockTTL,
	}
}

// Start begins the purge loop. It runs until Stop is called or ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	j.logger.Info("janitor starting", "interval", j.interval, "retention", j.retention)
	go j.run(ctx)
}

// Stop waits for the current cycle to finish and stops the loop.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopCh)
	j.mu.Unlock()

	<-j.doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
	j.logger.Info("janitor stopped")
}

func (j *Janitor) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single purge cycle and returns how many tasks were removed.
// Returns 0 when the lock is held elsewhere.
func (j *Janitor) RunOnce(ctx context.Context) int {
	if j.lock != nil {
		acquired, err := j.lock.Acquire(ctx, janitorLockName, j.lockTTL)
		if err != nil {
			j.logger.Warn("failed to acquire janitor lock", "error", err)
			return 0
		}
		if !acquired {
			j.logger.Debug("janitor lock held by another instance, skipping cycle")
			return 0
		}
		defer func() {
			if err := j.lock.Release(ctx, janitorLockName); err != nil {
				j.logger.Warn("failed to release janitor lock", "error", err)
			}
		}()
	}

	purged, err := j.taskQueue.PurgeTasks(ctx, j.retention)
	if err != nil {
		j.logger.Error("failed to purge tasks", "error", err)
		return purged
	}
	if purged > 0 {
		j.logger.Info("purged finished tasks", "count", purged)
	}
	return purged
}
