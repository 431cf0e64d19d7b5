// Package audit records an operational timeline of authority actions,
// independent of the event log: where the log is the record of what a run
// did, the timeline is the record of what the runtime did to runs.
package audit

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openagents/runtime-authority/pkg/canonicalize"
)

// EntryType classifies a Timeline entry.
type EntryType string

const (
	EntryRunCreated    EntryType = "RUN_CREATED"
	EntryEventAppended EntryType = "EVENT_APPENDED"
	EntryStatusUpdated EntryType = "STATUS_UPDATED"
	EntryReceiptBuilt  EntryType = "RECEIPT_BUILT"
	EntryReplayBuilt   EntryType = "REPLAY_BUILT"
	EntryAccessDenied  EntryType = "ACCESS_DENIED"
)

// Entry is one recorded timeline fact.
type Entry struct {
	EntryID     string                 `json:"entry_id"`
	EntryType   EntryType              `json:"entry_type"`
	RunID       string                 `json:"run_id"`
	Timestamp   time.Time              `json:"timestamp"`
	Actor       string                 `json:"actor"`
	Summary     string                 `json:"summary"`
	ContentHash string                 `json:"content_hash"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// Query filters Timeline.Query results.
type Query struct {
	RunID     string
	EntryType EntryType
	After     time.Time
	Before    time.Time
	Limit     int
}

// Timeline is an append-only, in-memory operational log, indexed by run_id
// for efficient per-run queries.
type Timeline struct {
	mu      sync.RWMutex
	entries []Entry
	byRun   map[string][]int

	now func() time.Time
}

// NewTimeline returns an empty Timeline.
func NewTimeline() *Timeline {
	return &Timeline{
		byRun: make(map[string][]int),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Record appends a new entry and returns it with its entry_id, timestamp,
// and content_hash populated.
func (t *Timeline) Record(entryType EntryType, runID, actor, summary string, details map[string]interface{}) (Entry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Entry{}, err
	}

	hash, err := canonicalize.CanonicalHashPrefixed(details)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		EntryID:     id.String(),
		EntryType:   entryType,
		RunID:       runID,
		Timestamp:   t.now(),
		Actor:       actor,
		Summary:     summary,
		ContentHash: hash,
		Details:     details,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	idx := len(t.entries)
	t.entries = append(t.entries, entry)
	t.byRun[runID] = append(t.byRun[runID], idx)
	return entry, nil
}

// Query returns entries matching q, sorted oldest first.
func (t *Timeline) Query(q Query) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var candidates []int
	if q.RunID != "" {
		candidates = t.byRun[q.RunID]
	} else {
		candidates = make([]int, len(t.entries))
		for i := range t.entries {
			candidates[i] = i
		}
	}

	out := make([]Entry, 0, len(candidates))
	for _, idx := range candidates {
		e := t.entries[idx]
		if q.EntryType != "" && e.EntryType != q.EntryType {
			continue
		}
		if !q.After.IsZero() && e.Timestamp.Before(q.After) {
			continue
		}
		if !q.Before.IsZero() && e.Timestamp.After(q.Before) {
			continue
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Count returns the number of entries recorded for runID.
func (t *Timeline) Count(runID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byRun[runID])
}
