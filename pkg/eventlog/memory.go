package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/openagents/runtime-authority/pkg/runtypes"
)

// runState is the in-memory bookkeeping for a single run's accepted events.
type runState struct {
	mu          sync.Mutex // serialises appends to this run only
	events      []runtypes.RunEvent
	lastSeq     int64
	idempotency map[string]runtypes.RunEvent
}

// MemoryLog is the no-persistence backend. It is selected when the default
// on-disk location cannot be initialised, or explicitly for tests; an
// append always succeeds as far as durability is concerned because there is
// none to fail.
type MemoryLog struct {
	mu   sync.RWMutex // guards creation of new run entries only
	runs map[string]*runState
	now  func() time.Time
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		runs: make(map[string]*runState),
		now:  time.Now,
	}
}

func (l *MemoryLog) stateFor(runID string) *runState {
	l.mu.RLock()
	st, ok := l.runs[runID]
	l.mu.RUnlock()
	if ok {
		return st
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok = l.runs[runID]; ok {
		return st
	}
	st = &runState{idempotency: make(map[string]runtypes.RunEvent)}
	l.runs[runID] = st
	return st
}

// Append implements Log.
func (l *MemoryLog) Append(ctx context.Context, req AppendRequest) (AppendResult, error) {
	st := l.stateFor(req.RunID)

	st.mu.Lock()
	defer st.mu.Unlock()

	if req.IdempotencyKey != "" {
		if existing, ok := st.idempotency[req.IdempotencyKey]; ok {
			return AppendResult{Event: existing, IdempotentReplay: true}, nil
		}
	}

	if req.ExpectedPreviousSeq != nil && *req.ExpectedPreviousSeq != st.lastSeq {
		return AppendResult{}, &runtypes.SequenceConflictError{
			RunID:    req.RunID,
			Expected: *req.ExpectedPreviousSeq,
			Actual:   st.lastSeq,
		}
	}

	event := runtypes.RunEvent{
		Seq:            st.lastSeq + 1,
		EventType:      req.EventType,
		Payload:        req.Payload,
		IdempotencyKey: req.IdempotencyKey,
		RecordedAt:     l.now().UTC(),
	}

	st.events = append(st.events, event)
	st.lastSeq = event.Seq
	if req.IdempotencyKey != "" {
		st.idempotency[req.IdempotencyKey] = event
	}

	return AppendResult{Event: event, IdempotentReplay: false}, nil
}

// EventsForRun implements Log.
func (l *MemoryLog) EventsForRun(ctx context.Context, runID string) ([]runtypes.RunEvent, error) {
	st := l.stateFor(runID)
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]runtypes.RunEvent, len(st.events))
	copy(out, st.events)
	return out, nil
}

// LastSeq implements Log.
func (l *MemoryLog) LastSeq(ctx context.Context, runID string) (int64, error) {
	st := l.stateFor(runID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastSeq, nil
}
