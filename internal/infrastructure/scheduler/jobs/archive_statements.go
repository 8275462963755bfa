package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alem-hub/xapi/internal/application/command"
	"github.com/alem-hub/xapi/pkg/xapi"
)

// ══════════════════════════════════════════════════════════════════════════════
// ARCHIVE STATEMENTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// StatementArchiver copies LRS statements into the archive.
type StatementArchiver interface {
	Handle(ctx context.Context, cmd command.ArchiveStatementsCommand) (*command.ArchiveStatementsResult, error)
}

// ArchiveStatementsJob pulls statements stored since the last run into the
// Postgres archive.
type ArchiveStatementsJob struct {
	archiver StatementArchiver
	logger   *slog.Logger
	config   ArchiveStatementsConfig

	lastStats atomic.Pointer[ArchiveStats]
}

// ArchiveStatementsConfig contains configuration for the archive job.
type ArchiveStatementsConfig struct {
	// Query narrows the archived statements, e.g. to one verb.
	Query *xapi.StatementsQuery

	// Timeout is the maximum duration of one run.
	Timeout time.Duration
}

// ArchiveStats contains statistics from an archive run.
type ArchiveStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Pages       int
	Archived    int
	Truncated   bool
}

// NewArchiveStatementsJob creates a new archive job.
func NewArchiveStatementsJob(archiver StatementArchiver, logger *slog.Logger, config ArchiveStatementsConfig) *ArchiveStatementsJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &ArchiveStatementsJob{
		archiver: archiver,
		logger:   logger.With("job", "archive_statements"),
		config:   config,
	}
}

// Name returns the job name.
func (j *ArchiveStatementsJob) Name() string {
	return "archive_statements"
}

// Description returns a human-readable description.
func (j *ArchiveStatementsJob) Description() string {
	return "Copies statements stored in the LRS into the Postgres archive"
}

// Run executes the archive job.
func (j *ArchiveStatementsJob) Run(ctx context.Context) error {
	stats := &ArchiveStats{StartedAt: time.Now()}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	result, err := j.archiver.Handle(ctx, command.ArchiveStatementsCommand{Query: j.config.Query})
	if result != nil {
		stats.Pages = result.Pages
		stats.Archived = result.Archived
		stats.Truncated = result.Truncated
	}
	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastStats.Store(stats)

	if stats.Truncated {
		j.logger.Warn("archive run truncated, remaining pages follow on the next run",
			"pages", stats.Pages,
			"archived", stats.Archived,
		)
	}
	return err
}

// LastStats returns the statistics of the last run, or nil.
func (j *ArchiveStatementsJob) LastStats() *ArchiveStats {
	return j.lastStats.Load()
}
