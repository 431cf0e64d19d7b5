package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/openagents/runtime-authority/pkg/runtypes"
)

// fileRecord is one durable row, written as one line of JSON per accepted
// event. It carries the run_id alongside the event itself so that a single
// file can interleave records from every run.
type fileRecord struct {
	RunID          string      `json:"run_id"`
	Seq            int64       `json:"seq"`
	EventType      string      `json:"event_type"`
	Payload        interface{} `json:"payload"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
	RecordedAt     time.Time   `json:"recorded_at"`
}

// FileLog is the file-backed durability mode: an append-only JSONL file,
// one record per accepted event, written and flushed before the in-memory
// state is committed. On open, the file is replayed to rebuild state.
type FileLog struct {
	mem *MemoryLog

	writeMu sync.Mutex // serialises file writes across all runs
	f       *os.File
}

// OpenFileLog opens (creating if necessary) the log file at path and
// replays any existing records to rebuild in-memory state.
func OpenFileLog(path string) (*FileLog, error) {
	mem := NewMemoryLog()

	if err := replayInto(mem, path); err != nil {
		return nil, fmt.Errorf("eventlog: replay %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}

	return &FileLog{mem: mem, f: f}, nil
}

// replayInto reads every record in the file, groups them by run_id, sorts
// each group by seq, and replays them into mem. A duplicate (run_id, seq)
// pair is a corruption signal and aborts recovery.
func replayInto(mem *MemoryLog, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	byRun := make(map[string][]fileRecord)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec fileRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("corrupt record: %w", err)
		}
		byRun[rec.RunID] = append(byRun[rec.RunID], rec)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	for runID, recs := range byRun {
		sort.Slice(recs, func(i, j int) bool { return recs[i].Seq < recs[j].Seq })

		st := mem.stateFor(runID)
		seen := make(map[int64]bool, len(recs))
		for _, rec := range recs {
			if seen[rec.Seq] {
				return fmt.Errorf("duplicate (run_id=%s, seq=%d) in log file", runID, rec.Seq)
			}
			seen[rec.Seq] = true

			event := runtypes.RunEvent{
				Seq:            rec.Seq,
				EventType:      rec.EventType,
				Payload:        rec.Payload,
				IdempotencyKey: rec.IdempotencyKey,
				RecordedAt:     rec.RecordedAt,
			}
			st.events = append(st.events, event)
			if event.Seq > st.lastSeq {
				st.lastSeq = event.Seq
			}
			if event.IdempotencyKey != "" {
				st.idempotency[event.IdempotencyKey] = event
			}
		}
	}
	return nil
}

// Append implements Log. The append algorithm (idempotency check, sequence
// check, assign) runs under the run's own lock exactly as in MemoryLog; the
// durable write happens inside that same critical section, between
// assignment and in-memory commit, so a write failure leaves no trace of
// the event in memory.
func (l *FileLog) Append(ctx context.Context, req AppendRequest) (AppendResult, error) {
	st := l.mem.stateFor(req.RunID)

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
		RecordedAt:     time.Now().UTC(),
	}

	if err := l.writeRecord(req.RunID, event); err != nil {
		return AppendResult{}, &runtypes.EventLogError{Message: err.Error()}
	}

	st.events = append(st.events, event)
	st.lastSeq = event.Seq
	if req.IdempotencyKey != "" {
		st.idempotency[req.IdempotencyKey] = event
	}

	return AppendResult{Event: event, IdempotentReplay: false}, nil
}

func (l *FileLog) writeRecord(runID string, event runtypes.RunEvent) error {
	rec := fileRecord{
		RunID:          runID,
		Seq:            event.Seq,
		EventType:      event.EventType,
		Payload:        event.Payload,
		IdempotencyKey: event.IdempotencyKey,
		RecordedAt:     event.RecordedAt,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	line = append(line, '\n')

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("flush record: %w", err)
	}
	return nil
}

// EventsForRun implements Log.
func (l *FileLog) EventsForRun(ctx context.Context, runID string) ([]runtypes.RunEvent, error) {
	return l.mem.EventsForRun(ctx, runID)
}

// LastSeq implements Log.
func (l *FileLog) LastSeq(ctx context.Context, runID string) (int64, error) {
	return l.mem.LastSeq(ctx, runID)
}

// Close closes the underlying file handle.
func (l *FileLog) Close() error {
	return l.f.Close()
}
