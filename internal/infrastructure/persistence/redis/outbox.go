package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/xapi/pkg/logger"
	"github.com/alem-hub/xapi/pkg/xapi"
)

const (
	// DefaultOutboxKey is the list holding pending statements.
	DefaultOutboxKey = "xapi:outbox"

	// DefaultDeadLetterLimit is how many rejected statements are kept.
	DefaultDeadLetterLimit = 10000
)

// Outbox is a FIFO of statements in a Redis list. Entries are removed only by
// Ack; a batch that was peeked but not acked is delivered again.
type Outbox struct {
	client    *redis.Client
	key       string
	stamp     bool
	deadLimit int64
	logger    *slog.Logger
}

// OutboxOption configures an Outbox.
type OutboxOption func(*Outbox)

// WithKey overrides DefaultOutboxKey.
func WithKey(key string) OutboxOption {
	return func(o *Outbox) {
		if key != "" {
			o.key = key
		}
	}
}

// WithStamping controls whether Enqueue assigns missing IDs and timestamps.
func WithStamping(enabled bool) OutboxOption {
	return func(o *Outbox) { o.stamp = enabled }
}

// WithDeadLetterLimit caps the dead-letter list; the oldest entries go first.
func WithDeadLetterLimit(n int) OutboxOption {
	return func(o *Outbox) {
		if n > 0 {
			o.deadLimit = int64(n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) OutboxOption {
	return func(o *Outbox) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOutbox creates an outbox on client. Stamping is on by default.
func NewOutbox(client *redis.Client, opts ...OutboxOption) *Outbox {
	o := &Outbox{
		client:    client,
		key:       DefaultOutboxKey,
		stamp:     true,
		deadLimit: DefaultDeadLetterLimit,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "outbox", "key", o.key)
	return o
}

// Key returns the Redis list key.
func (o *Outbox) Key() string { return o.key }

// DeadLetterKey returns the list holding statements the LRS rejected.
func (o *Outbox) DeadLetterKey() string { return o.key + ":dead" }

// Enqueue appends statements in order. Each statement is validated and, when
// stamping is on, given an ID and timestamp first.
func (o *Outbox) Enqueue(ctx context.Context, statements ...*xapi.Statement) error {
	if len(statements) == 0 {
		return nil
	}

	values := make([]any, 0, len(statements))
	for i, s := range statements {
		if s == nil {
			return fmt.Errorf("statement %d: %w", i, xapi.ErrInvalidArgument)
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
		if o.stamp {
			s.Stamp()
		}
		data, err := xapi.ToJSON(s, xapi.LatestVersion)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		values = append(values, data)
	}

	if err := o.client.RPush(ctx, o.key, values...).Err(); err != nil {
		return fmt.Errorf("enqueue statements: %w", err)
	}
	o.logger.Debug("statements enqueued", "count", len(values))
	return nil
}

// Batch is the head of the outbox. Size counts every entry read, including
// unparsable ones, so Ack(Size) drops those too.
type Batch struct {
	Statements []*xapi.Statement
	Size       int
	Skipped    int
}

// Peek reads up to n statements from the head without removing them.
func (o *Outbox) Peek(ctx context.Context, n int) (*Batch, error) {
	if n <= 0 {
		return &Batch{}, nil
	}

	raw, err := o.client.LRange(ctx, o.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("peek outbox: %w", err)
	}

	batch := &Batch{Size: len(raw), Statements: make([]*xapi.Statement, 0, len(raw))}
	for i, entry := range raw {
		s, err := xapi.ParseStatement([]byte(entry))
		if err != nil {
			batch.Skipped++
			o.logger.Warn("dropping unparsable outbox entry", "index", i, "error", err)
			continue
		}
		batch.Statements = append(batch.Statements, s)
	}
	return batch, nil
}

// Ack removes the first n entries.
func (o *Outbox) Ack(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if err := o.client.LTrim(ctx, o.key, int64(n), -1).Err(); err != nil {
		return fmt.Errorf("ack outbox: %w", err)
	}
	return nil
}

// Len returns the number of pending entries.
func (o *Outbox) Len(ctx context.Context) (int64, error) {
	n, err := o.client.LLen(ctx, o.key).Result()
	if err != nil {
		return 0, fmt.Errorf("outbox length: %w", err)
	}
	return n, nil
}

// DeadLetter appends statements the LRS rejected to the dead-letter list,
// keeping at most the configured limit.
func (o *Outbox) DeadLetter(ctx context.Context, statements ...*xapi.Statement) error {
	if len(statements) == 0 {
		return nil
	}

	values := make([]any, 0, len(statements))
	for _, s := range statements {
		data, err := xapi.ToJSON(s, xapi.LatestVersion)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		values = append(values, data)
	}

	pipe := o.client.TxPipeline()
	pipe.RPush(ctx, o.DeadLetterKey(), values...)
	pipe.LTrim(ctx, o.DeadLetterKey(), -o.deadLimit, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dead-letter statements: %w", err)
	}

	for _, s := range statements {
		if s.ID != nil {
			o.logger.Warn("statement moved to dead-letter list", logger.StatementID(s.ID.String()))
		}
	}
	return nil
}

// DeadLetterLen returns the number of dead-lettered statements.
func (o *Outbox) DeadLetterLen(ctx context.Context) (int64, error) {
	n, err := o.client.LLen(ctx, o.DeadLetterKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("dead-letter length: %w", err)
	}
	return n, nil
}
