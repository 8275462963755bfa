package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alem-hub/xapi/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/xapi/pkg/circuitbreaker"
	"github.com/alem-hub/xapi/pkg/logger"
	"github.com/alem-hub/xapi/pkg/retry"
	"github.com/alem-hub/xapi/pkg/xapi"
	"github.com/alem-hub/xapi/pkg/xapi/lrs"
)

// ══════════════════════════════════════════════════════════════════════════════
// FLUSH OUTBOX COMMAND
// Delivers queued statements to the LRS in batches. A batch leaves the outbox
// only after the LRS accepted it. When the LRS rejects a batch, its statements
// are resent one by one and the rejected ones move to the dead-letter list.
// ══════════════════════════════════════════════════════════════════════════════

// FlushOutboxResult reports what a flush delivered.
type FlushOutboxResult struct {
	// Batches is the number of batches acked.
	Batches int

	// Sent is the number of statements the LRS accepted.
	Sent int

	// Dropped is the number of unparsable entries removed from the outbox.
	Dropped int

	// Rejected is the number of statements the LRS refused, now dead-lettered.
	Rejected int
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// Outbox is the queue statements are flushed from.
type Outbox interface {
	Peek(ctx context.Context, n int) (*redis.Batch, error)
	Ack(ctx context.Context, n int) error
	DeadLetter(ctx context.Context, statements ...*xapi.Statement) error
}

// StatementSender posts statement batches to an LRS.
type StatementSender interface {
	SaveStatements(ctx context.Context, statements []*xapi.Statement) (*lrs.StatementsResultResponse, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// FlushOutboxHandlerConfig contains configuration for the handler.
type FlushOutboxHandlerConfig struct {
	// BatchSize is the number of outbox entries sent per request.
	BatchSize int

	// MaxBatches caps the batches sent per Handle call. Zero means no cap.
	MaxBatches int
}

// DefaultFlushOutboxHandlerConfig returns default configuration.
func DefaultFlushOutboxHandlerConfig() FlushOutboxHandlerConfig {
	return FlushOutboxHandlerConfig{
		BatchSize:  50,
		MaxBatches: 20,
	}
}

// FlushOutboxHandler drains the outbox into the LRS.
type FlushOutboxHandler struct {
	outbox  Outbox
	sender  StatementSender
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger

	batchSize  int
	maxBatches int
}

// NewFlushOutboxHandler creates a new FlushOutboxHandler. retrier and breaker
// may be nil.
func NewFlushOutboxHandler(
	outbox Outbox,
	sender StatementSender,
	retrier *retry.Retrier,
	breaker *circuitbreaker.CircuitBreaker,
	logger *slog.Logger,
	config FlushOutboxHandlerConfig,
) *FlushOutboxHandler {
	defaults := DefaultFlushOutboxHandlerConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxBatches < 0 {
		config.MaxBatches = 0
	}
	if retrier == nil {
		retrier = retry.New(retry.WithMaxAttempts(1))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FlushOutboxHandler{
		outbox:     outbox,
		sender:     sender,
		retrier:    retrier,
		breaker:    breaker,
		logger:     logger.With("component", "flush_outbox"),
		batchSize:  config.BatchSize,
		maxBatches: config.MaxBatches,
	}
}

// Handle sends batches until the outbox is empty, MaxBatches is reached or a
// batch fails. A batch that fails for any reason other than a rejection stays
// at the head of the outbox; the counts of what was delivered before the
// failure are returned with the error.
func (h *FlushOutboxHandler) Handle(ctx context.Context) (*FlushOutboxResult, error) {
	result := &FlushOutboxResult{}

	for h.maxBatches == 0 || result.Batches < h.maxBatches {
		batch, err := h.outbox.Peek(ctx, h.batchSize)
		if err != nil {
			return result, fmt.Errorf("flush_outbox: %w", err)
		}
		if batch.Size == 0 {
			break
		}

		sent, rejected := batch.Statements, []*xapi.Statement(nil)
		if len(batch.Statements) > 0 {
			err := h.send(ctx, batch.Statements)
			if isRejection(err) {
				sent, rejected, err = h.isolate(ctx, batch.Statements)
			}
			if err != nil {
				return result, fmt.Errorf("flush_outbox: %w", err)
			}
		}

		if err := h.outbox.DeadLetter(ctx, rejected...); err != nil {
			return result, fmt.Errorf("flush_outbox: %w", err)
		}
		if err := h.outbox.Ack(ctx, batch.Size); err != nil {
			// The batch was delivered; it will be sent again on the next run.
			return result, fmt.Errorf("flush_outbox: %w", err)
		}

		result.Batches++
		result.Sent += len(sent)
		result.Dropped += batch.Skipped
		result.Rejected += len(rejected)
		h.logger.Debug("batch delivered",
			"statements", len(sent),
			"dropped", batch.Skipped,
			"rejected", len(rejected),
		)

		if batch.Size < h.batchSize {
			break
		}
	}

	if result.Batches > 0 {
		h.logger.Info("outbox flushed",
			"batches", result.Batches,
			"sent", result.Sent,
			"dropped", result.Dropped,
			"rejected", result.Rejected,
		)
	}
	return result, nil
}

// isolate resends a rejected batch one statement at a time and splits it into
// delivered and rejected statements. Any other failure aborts the batch.
func (h *FlushOutboxHandler) isolate(ctx context.Context, statements []*xapi.Statement) (sent, rejected []*xapi.Statement, err error) {
	if len(statements) == 1 {
		return nil, statements, nil
	}

	for _, st := range statements {
		sendErr := h.send(ctx, []*xapi.Statement{st})
		switch {
		case sendErr == nil:
			sent = append(sent, st)
		case isRejection(sendErr):
			attrs := []any{logger.Err(sendErr)}
			if st.ID != nil {
				attrs = append(attrs, logger.StatementID(st.ID.String()))
			}
			h.logger.Warn("statement rejected by lrs", attrs...)
			rejected = append(rejected, st)
		default:
			return nil, nil, sendErr
		}
	}
	return sent, rejected, nil
}

// send posts one batch through the circuit breaker and retrier.
func (h *FlushOutboxHandler) send(ctx context.Context, statements []*xapi.Statement) error {
	attempt := func(ctx context.Context) error {
		return h.retrier.Do(ctx, func(ctx context.Context) error {
			resp, err := h.sender.SaveStatements(ctx, statements)
			if err != nil {
				return retry.Permanent(err)
			}
			if !resp.Success {
				return responseError("save_statements", resp.Response)
			}
			return nil
		})
	}

	if h.breaker == nil {
		return attempt(ctx)
	}
	return h.breaker.Execute(ctx, attempt)
}
