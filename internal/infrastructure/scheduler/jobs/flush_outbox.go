// Package jobs contains the worker's scheduled jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/alem-hub/xapi/internal/application/command"
	"github.com/alem-hub/xapi/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// FLUSH OUTBOX JOB
// ══════════════════════════════════════════════════════════════════════════════

// OutboxFlusher drains the statement outbox.
type OutboxFlusher interface {
	Handle(ctx context.Context) (*command.FlushOutboxResult, error)
}

// FlushOutboxJob delivers queued statements to the LRS. When a Redis client
// is configured, only one worker flushes at a time.
type FlushOutboxJob struct {
	flusher OutboxFlusher
	locker  *goredis.Client
	logger  *slog.Logger
	config  FlushOutboxConfig

	lastStats atomic.Pointer[FlushStats]
}

// FlushOutboxConfig contains configuration for the flush job.
type FlushOutboxConfig struct {
	// LockTTL is how long the flush lock is held at most.
	LockTTL time.Duration

	// Timeout is the maximum duration of one flush.
	Timeout time.Duration
}

// DefaultFlushOutboxConfig returns sensible defaults.
func DefaultFlushOutboxConfig() FlushOutboxConfig {
	return FlushOutboxConfig{
		LockTTL: 2 * time.Minute,
		Timeout: time.Minute,
	}
}

// FlushStats contains statistics from a flush run.
type FlushStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Batches     int
	Sent        int
	Dropped     int
	Rejected    int
	Skipped     bool
}

// flushLockResource names the lock shared by every worker flushing the outbox.
const flushLockResource = "outbox.flush"

// NewFlushOutboxJob creates a new flush job. locker may be nil.
func NewFlushOutboxJob(
	flusher OutboxFlusher,
	locker *goredis.Client,
	logger *slog.Logger,
	config FlushOutboxConfig,
) *FlushOutboxJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultFlushOutboxConfig().LockTTL
	}

	return &FlushOutboxJob{
		flusher: flusher,
		locker:  locker,
		logger:  logger.With("job", "flush_outbox"),
		config:  config,
	}
}

// Name returns the job name.
func (j *FlushOutboxJob) Name() string {
	return "flush_outbox"
}

// Description returns a human-readable description.
func (j *FlushOutboxJob) Description() string {
	return "Delivers queued statements from the Redis outbox to the LRS"
}

// Run executes the flush job.
func (j *FlushOutboxJob) Run(ctx context.Context) error {
	stats := &FlushStats{StartedAt: time.Now()}
	defer func() {
		stats.CompletedAt = time.Now()
		stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	if j.locker != nil {
		lock, err := redis.TryLock(ctx, j.locker, flushLockResource, j.config.LockTTL)
		if errors.Is(err, redis.ErrLockHeld) {
			j.logger.Debug("another worker is flushing, skipping")
			stats.Skipped = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("flush_outbox: %w", err)
		}
		defer func() {
			// The run context may already be done.
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				j.logger.Warn("failed to release flush lock", "error", err)
			}
		}()
	}

	result, err := j.flusher.Handle(ctx)
	if result != nil {
		stats.Batches = result.Batches
		stats.Sent = result.Sent
		stats.Dropped = result.Dropped
		stats.Rejected = result.Rejected
	}
	return err
}

// LastStats returns the statistics of the last run, or nil.
func (j *FlushOutboxJob) LastStats() *FlushStats {
	return j.lastStats.Load()
}
