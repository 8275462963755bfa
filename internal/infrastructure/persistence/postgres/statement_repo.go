package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/xapi/pkg/xapi"
)

// StatementArchive stores statements read back from the LRS. Rows are keyed
// by statement ID and hold the full statement as JSONB next to a few columns
// used for lookups.
type StatementArchive struct {
	conn *Connection
}

// NewStatementArchive creates a new StatementArchive.
func NewStatementArchive(conn *Connection) *StatementArchive {
	return &StatementArchive{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

const upsertStatementSQL = `
	INSERT INTO xapi_statements (
		id, verb_id, actor, activity_id, registration, "timestamp", stored, version, payload
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		verb_id = EXCLUDED.verb_id,
		actor = EXCLUDED.actor,
		activity_id = EXCLUDED.activity_id,
		registration = EXCLUDED.registration,
		"timestamp" = EXCLUDED."timestamp",
		stored = EXCLUDED.stored,
		version = EXCLUDED.version,
		payload = EXCLUDED.payload,
		archived_at = NOW()
`

// SaveAll upserts statements in one transaction. Every statement must carry
// an ID; nothing is written if one does not.
func (r *StatementArchive) SaveAll(ctx context.Context, statements []*xapi.Statement) error {
	if len(statements) == 0 {
		return nil
	}

	rows := make([]statementRow, 0, len(statements))
	for i, s := range statements {
		row, err := newStatementRow(s)
		if err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
		rows = append(rows, row)
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, row := range rows {
			if err := saveRow(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

func saveRow(ctx context.Context, q Querier, row statementRow) error {
	_, err := q.Exec(ctx, upsertStatementSQL,
		row.ID,
		row.VerbID,
		row.Actor,
		row.ActivityID,
		row.Registration,
		row.Timestamp,
		row.Stored,
		row.Version,
		row.Payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save statement %s: %w", row.ID, err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// Get returns the archived statement with the given ID.
func (r *StatementArchive) Get(ctx context.Context, id uuid.UUID) (*xapi.Statement, error) {
	var payload []byte
	err := r.conn.QueryRow(ctx, `SELECT payload FROM xapi_statements WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrStatementNotFound
		}
		return nil, fmt.Errorf("failed to get statement: %w", err)
	}

	s, err := xapi.ParseStatement(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode archived statement %s: %w", id, err)
	}
	return s, nil
}

// LatestStored returns the newest stored time in the archive, or nil when the
// archive is empty.
func (r *StatementArchive) LatestStored(ctx context.Context) (*time.Time, error) {
	var latest *time.Time
	if err := r.conn.QueryRow(ctx, `SELECT MAX(stored) FROM xapi_statements`).Scan(&latest); err != nil {
		return nil, fmt.Errorf("failed to get latest stored time: %w", err)
	}
	if latest != nil {
		t := latest.UTC()
		latest = &t
	}
	return latest, nil
}

// Count returns the number of archived statements.
func (r *StatementArchive) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM xapi_statements`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count statements: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Row mapping
// ─────────────────────────────────────────────────────────────────────────────

// statementRow is a statement flattened into xapi_statements columns.
type statementRow struct {
	ID           uuid.UUID
	VerbID       string
	Actor        []byte
	ActivityID   *string
	Registration *uuid.UUID
	Timestamp    *time.Time
	Stored       *time.Time
	Version      string
	Payload      []byte
}

func newStatementRow(s *xapi.Statement) (statementRow, error) {
	if s == nil {
		return statementRow{}, fmt.Errorf("nil statement: %w", xapi.ErrInvalidArgument)
	}
	if s.ID == nil {
		return statementRow{}, fmt.Errorf("statement has no id: %w", xapi.ErrInvalidArgument)
	}

	version := s.Version
	if version == "" {
		version = xapi.LatestVersion
	}
	payload, err := json.Marshal(s.ToJSONObject(version))
	if err != nil {
		return statementRow{}, fmt.Errorf("encode statement: %w", err)
	}

	row := statementRow{
		ID:        *s.ID,
		Timestamp: s.Timestamp,
		Stored:    s.Stored,
		Version:   string(version),
		Payload:   payload,
	}
	if s.Verb != nil {
		row.VerbID = s.Verb.ID.String()
	}
	if s.Actor != nil {
		if row.Actor, err = json.Marshal(s.Actor.ToJSONObject(version)); err != nil {
			return statementRow{}, fmt.Errorf("encode actor: %w", err)
		}
	}
	if activity, ok := s.Target.(*xapi.Activity); ok && activity != nil {
		id := activity.ID.String()
		row.ActivityID = &id
	}
	if s.Context != nil {
		row.Registration = s.Context.Registration
	}
	return row, nil
}
