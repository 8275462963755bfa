package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/xapi/pkg/retry"
	"github.com/alem-hub/xapi/pkg/xapi"
	"github.com/alem-hub/xapi/pkg/xapi/lrs"
)

// ══════════════════════════════════════════════════════════════════════════════
// ARCHIVE STATEMENTS COMMAND
// Copies statements from the LRS into the local archive, oldest first,
// starting after the newest statement already archived.
// ══════════════════════════════════════════════════════════════════════════════

// ArchiveStatementsCommand contains the options of one archive run.
type ArchiveStatementsCommand struct {
	// Since overrides the archive's own high-water mark.
	Since *time.Time

	// Query narrows what is archived. Its Since, Ascending and Limit are
	// replaced by the handler.
	Query *xapi.StatementsQuery
}

// ArchiveStatementsResult reports what a run archived.
type ArchiveStatementsResult struct {
	// Since is the lower bound used for the query, nil for a full copy.
	Since *time.Time

	// Pages is the number of pages fetched.
	Pages int

	// Archived is the number of statements written.
	Archived int

	// Truncated is true when MaxPages stopped the run before the last page.
	Truncated bool
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// StatementReader reads statements from an LRS page by page.
type StatementReader interface {
	QueryStatements(ctx context.Context, query *xapi.StatementsQuery) (*lrs.StatementsResultResponse, error)
	MoreStatements(ctx context.Context, result *xapi.StatementsResult) (*lrs.StatementsResultResponse, error)
}

// StatementArchive stores statements locally.
type StatementArchive interface {
	SaveAll(ctx context.Context, statements []*xapi.Statement) error
	LatestStored(ctx context.Context) (*time.Time, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ArchiveStatementsHandlerConfig contains configuration for the handler.
type ArchiveStatementsHandlerConfig struct {
	// PageLimit is sent as the query limit. Zero lets the LRS decide.
	PageLimit int

	// MaxPages caps the pages fetched per run. Zero means no cap.
	MaxPages int
}

// ArchiveStatementsHandler handles the ArchiveStatementsCommand.
type ArchiveStatementsHandler struct {
	reader  StatementReader
	archive StatementArchive
	retrier *retry.Retrier
	logger  *slog.Logger
	config  ArchiveStatementsHandlerConfig
}

// NewArchiveStatementsHandler creates a new ArchiveStatementsHandler.
// retrier may be nil.
func NewArchiveStatementsHandler(
	reader StatementReader,
	archive StatementArchive,
	retrier *retry.Retrier,
	logger *slog.Logger,
	config ArchiveStatementsHandlerConfig,
) *ArchiveStatementsHandler {
	if retrier == nil {
		retrier = retry.New(retry.WithMaxAttempts(1))
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.PageLimit < 0 {
		config.PageLimit = 0
	}
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}

	return &ArchiveStatementsHandler{
		reader:  reader,
		archive: archive,
		retrier: retrier,
		logger:  logger.With("component", "archive_statements"),
		config:  config,
	}
}

// resumeOverlap is subtracted from the archive's high-water mark. The LRS
// treats "since" as exclusive, and a run can stop between statements that
// share the latest stored time; the upsert absorbs the overlap.
const resumeOverlap = time.Millisecond

// Handle fetches every page after the high-water mark and saves each page
// before requesting the next, so an interrupted run resumes where it stopped.
func (h *ArchiveStatementsHandler) Handle(ctx context.Context, cmd ArchiveStatementsCommand) (*ArchiveStatementsResult, error) {
	since := cmd.Since
	if since == nil {
		latest, err := h.archive.LatestStored(ctx)
		if err != nil {
			return nil, fmt.Errorf("archive_statements: %w", err)
		}
		if latest != nil {
			resume := latest.Add(-resumeOverlap)
			since = &resume
		}
	}

	result := &ArchiveStatementsResult{Since: since}
	page, err := h.fetch(ctx, "query_statements", func(ctx context.Context) (*lrs.StatementsResultResponse, error) {
		return h.reader.QueryStatements(ctx, h.query(cmd.Query, since))
	})
	if err != nil {
		return result, fmt.Errorf("archive_statements: %w", err)
	}

	for {
		result.Pages++
		if len(page.Statements) > 0 {
			if err := h.archive.SaveAll(ctx, page.Statements); err != nil {
				return result, fmt.Errorf("archive_statements: %w", err)
			}
			result.Archived += len(page.Statements)
		}

		if page.More == "" {
			break
		}
		if h.config.MaxPages > 0 && result.Pages >= h.config.MaxPages {
			result.Truncated = true
			break
		}

		prev := page
		page, err = h.fetch(ctx, "more_statements", func(ctx context.Context) (*lrs.StatementsResultResponse, error) {
			return h.reader.MoreStatements(ctx, prev)
		})
		if err != nil {
			return result, fmt.Errorf("archive_statements: %w", err)
		}
	}

	if result.Archived > 0 || result.Truncated {
		h.logger.Info("statements archived",
			"pages", result.Pages,
			"archived", result.Archived,
			"truncated", result.Truncated,
		)
	}
	return result, nil
}

// query builds the page query: ascending by stored time, after since.
func (h *ArchiveStatementsHandler) query(base *xapi.StatementsQuery, since *time.Time) *xapi.StatementsQuery {
	q := &xapi.StatementsQuery{}
	if base != nil {
		*q = *base
	}
	ascending := true
	q.Ascending = &ascending
	q.Since = since
	q.Limit = nil
	if h.config.PageLimit > 0 {
		limit := h.config.PageLimit
		q.Limit = &limit
	}
	return q
}

// fetch runs one page request through the retrier.
func (h *ArchiveStatementsHandler) fetch(
	ctx context.Context,
	op string,
	call func(context.Context) (*lrs.StatementsResultResponse, error),
) (*xapi.StatementsResult, error) {
	var page *xapi.StatementsResult
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		resp, err := call(ctx)
		if err != nil {
			return retry.Permanent(err)
		}
		if !resp.Success {
			return responseError(op, resp.Response)
		}
		if resp.Content == nil {
			return retry.Permanent(errors.New(op + ": empty result"))
		}
		page = resp.Content
		return nil
	})
	return page, err
}
