// Package eventlog implements the durable, append-only event log: the
// component that assigns dense per-run sequence numbers, enforces
// idempotency-key suppression and optimistic-concurrency checks, and
// persists the resulting records.
package eventlog

import (
	"context"

	"github.com/openagents/runtime-authority/pkg/runtypes"
)

// AppendRequest is one caller's request to accept an event into a run's log.
type AppendRequest struct {
	RunID          string
	EventType      string
	Payload        interface{}
	IdempotencyKey string
	// ExpectedPreviousSeq, when non-nil, must equal the run's current last
	// sequence or the append is rejected with a SequenceConflictError.
	ExpectedPreviousSeq *int64
}

// AppendResult is the outcome of a successful Append call.
type AppendResult struct {
	Event            runtypes.RunEvent
	IdempotentReplay bool
}

// Log is the durable event log contract. Implementations must serialise
// appends to the same run_id and may process different run_ids concurrently.
type Log interface {
	// Append accepts req per the algorithm in the runtime authority
	// specification: idempotency check, sequence check, assign, persist,
	// commit. Returns *runtypes.SequenceConflictError on conflict.
	Append(ctx context.Context, req AppendRequest) (AppendResult, error)

	// EventsForRun returns the run's accepted events in ascending seq order.
	// An unknown run_id returns an empty slice, not an error — existence is
	// the authority's concern, not the log's.
	EventsForRun(ctx context.Context, runID string) ([]runtypes.RunEvent, error)

	// LastSeq returns the highest assigned sequence for runID, or 0 if the
	// run has no accepted events.
	LastSeq(ctx context.Context, runID string) (int64, error)
}
