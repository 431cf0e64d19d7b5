package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openagents/runtime-authority/pkg/runtypes"

	_ "github.com/lib/pq"
)

// PostgresLog is an optional SQL-backed durability mode, additive to the
// required memory/file-backed modes. It implements the identical Log
// contract for deployments that already run a shared Postgres instance and
// would rather centralise durability there than on a local file.
type PostgresLog struct {
	db *sql.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS run_events (
	run_id TEXT NOT NULL,
	seq BIGINT NOT NULL,
	event_type TEXT NOT NULL,
	payload JSONB NOT NULL,
	idempotency_key TEXT,
	recorded_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, seq),
	UNIQUE (run_id, idempotency_key)
);
`

// OpenPostgresLog opens (and migrates) a Postgres-backed log against db.
func OpenPostgresLog(ctx context.Context, db *sql.DB) (*PostgresLog, error) {
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("eventlog: postgres schema: %w", err)
	}
	return &PostgresLog{db: db}, nil
}

// Append implements Log. The append algorithm runs inside one transaction:
// the run's current last seq is read under a row lock (via a dummy advisory
// read of the max existing seq FOR UPDATE), so concurrent appends to the
// same run_id serialise through Postgres row locking rather than an
// in-process mutex.
func (l *PostgresLog) Append(ctx context.Context, req AppendRequest) (AppendResult, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return AppendResult{}, &runtypes.EventLogError{Message: err.Error()}
	}
	defer func() { _ = tx.Rollback() }()

	if req.IdempotencyKey != "" {
		existing, found, err := scanByIdempotencyKey(ctx, tx, req.RunID, req.IdempotencyKey)
		if err != nil {
			return AppendResult{}, &runtypes.EventLogError{Message: err.Error()}
		}
		if found {
			return AppendResult{Event: existing, IdempotentReplay: true}, nil
		}
	}

	var lastSeq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM run_events WHERE run_id = $1 FOR UPDATE`,
		req.RunID,
	).Scan(&lastSeq)
	if err != nil {
		return AppendResult{}, &runtypes.EventLogError{Message: err.Error()}
	}

	if req.ExpectedPreviousSeq != nil && *req.ExpectedPreviousSeq != lastSeq {
		return AppendResult{}, &runtypes.SequenceConflictError{
			RunID:    req.RunID,
			Expected: *req.ExpectedPreviousSeq,
			Actual:   lastSeq,
		}
	}

	payloadJSON, err := json.Marshal(req.Payload)
	if err != nil {
		return AppendResult{}, &runtypes.ArtifactSerialisationError{Message: err.Error()}
	}

	event := runtypes.RunEvent{
		Seq:            lastSeq + 1,
		EventType:      req.EventType,
		Payload:        req.Payload,
		IdempotencyKey: req.IdempotencyKey,
		RecordedAt:     nowUTC(),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_events (run_id, seq, event_type, payload, idempotency_key, recorded_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		req.RunID, event.Seq, event.EventType, payloadJSON, event.IdempotencyKey, event.RecordedAt,
	)
	if err != nil {
		return AppendResult{}, &runtypes.EventLogError{Message: err.Error()}
	}

	if err := tx.Commit(); err != nil {
		return AppendResult{}, &runtypes.EventLogError{Message: err.Error()}
	}

	return AppendResult{Event: event, IdempotentReplay: false}, nil
}

func scanByIdempotencyKey(ctx context.Context, tx *sql.Tx, runID, key string) (runtypes.RunEvent, bool, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT seq, event_type, payload, idempotency_key, recorded_at
		 FROM run_events WHERE run_id = $1 AND idempotency_key = $2`,
		runID, key,
	)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return runtypes.RunEvent{}, false, nil
	}
	if err != nil {
		return runtypes.RunEvent{}, false, err
	}
	return event, true, nil
}

func scanEvent(row *sql.Row) (runtypes.RunEvent, error) {
	var event runtypes.RunEvent
	var payloadJSON []byte
	var idemKey sql.NullString
	if err := row.Scan(&event.Seq, &event.EventType, &payloadJSON, &idemKey, &event.RecordedAt); err != nil {
		return runtypes.RunEvent{}, err
	}
	if err := json.Unmarshal(payloadJSON, &event.Payload); err != nil {
		return runtypes.RunEvent{}, fmt.Errorf("decode payload: %w", err)
	}
	event.IdempotencyKey = idemKey.String
	return event, nil
}

// EventsForRun implements Log.
func (l *PostgresLog) EventsForRun(ctx context.Context, runID string) ([]runtypes.RunEvent, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT seq, event_type, payload, idempotency_key, recorded_at
		 FROM run_events WHERE run_id = $1 ORDER BY seq ASC`,
		runID,
	)
	if err != nil {
		return nil, &runtypes.EventLogError{Message: err.Error()}
	}
	defer rows.Close()

	events := make([]runtypes.RunEvent, 0)
	for rows.Next() {
		var event runtypes.RunEvent
		var payloadJSON []byte
		var idemKey sql.NullString
		if err := rows.Scan(&event.Seq, &event.EventType, &payloadJSON, &idemKey, &event.RecordedAt); err != nil {
			return nil, &runtypes.EventLogError{Message: err.Error()}
		}
		if err := json.Unmarshal(payloadJSON, &event.Payload); err != nil {
			return nil, &runtypes.ArtifactSerialisationError{Message: err.Error()}
		}
		event.IdempotencyKey = idemKey.String
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, &runtypes.EventLogError{Message: err.Error()}
	}
	return events, nil
}

// LastSeq implements Log.
func (l *PostgresLog) LastSeq(ctx context.Context, runID string) (int64, error) {
	var lastSeq int64
	err := l.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM run_events WHERE run_id = $1`, runID,
	).Scan(&lastSeq)
	if err != nil {
		return 0, &runtypes.EventLogError{Message: err.Error()}
	}
	return lastSeq, nil
}
