package eventlog

import (
	"context"
	"errors"
	"testing"

	"github.com/openagents/runtime-authority/pkg/runtypes"
)

func seqPtr(v int64) *int64 { return &v }

func TestMemoryLogAssignsMonotonicSequence(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()

	first, err := log.Append(ctx, AppendRequest{RunID: "run-1", EventType: "run.started", Payload: map[string]interface{}{"ok": true}})
	if err != nil {
		t.Fatal(err)
	}
	second, err := log.Append(ctx, AppendRequest{RunID: "run-1", EventType: "run.step.completed", Payload: map[string]interface{}{"step": 1}})
	if err != nil {
		t.Fatal(err)
	}

	if first.Event.Seq != 1 {
		t.Errorf("first.Seq = %d, want 1", first.Event.Seq)
	}
	if second.Event.Seq != 2 {
		t.Errorf("second.Seq = %d, want 2", second.Event.Seq)
	}
}

func TestMemoryLogIdempotentReplay(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()

	req := AppendRequest{RunID: "run-2", EventType: "run.step.completed", Payload: map[string]interface{}{"step": 1}, IdempotencyKey: "dup-key"}

	first, err := log.Append(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := log.Append(ctx, req)
	if err != nil {
		t.Fatal(err)
	}

	if first.IdempotentReplay {
		t.Error("first call should not be a replay")
	}
	if !second.IdempotentReplay {
		t.Error("second call should be a replay")
	}
	if second.Event.Seq != first.Event.Seq {
		t.Errorf("replay seq = %d, want %d", second.Event.Seq, first.Event.Seq)
	}
}

func TestMemoryLogRejectsSequenceConflict(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()

	if _, err := log.Append(ctx, AppendRequest{RunID: "run-3", EventType: "run.started", Payload: map[string]interface{}{}, ExpectedPreviousSeq: seqPtr(0)}); err != nil {
		t.Fatal(err)
	}

	_, err := log.Append(ctx, AppendRequest{RunID: "run-3", EventType: "run.step.completed", Payload: map[string]interface{}{}, ExpectedPreviousSeq: seqPtr(0)})
	var conflict *runtypes.SequenceConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *SequenceConflictError, got %T: %v", err, err)
	}
	if conflict.Expected != 0 || conflict.Actual != 1 {
		t.Errorf("conflict = %+v, want expected=0 actual=1", conflict)
	}
}

func TestMemoryLogConcurrentRunsDoNotBlockEachOther(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()

	done := make(chan error, 2)
	for _, runID := range []string{"run-a", "run-b"} {
		runID := runID
		go func() {
			for i := 0; i < 50; i++ {
				if _, err := log.Append(ctx, AppendRequest{RunID: runID, EventType: "tick", Payload: i}); err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}()
	}

	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	}

	for _, runID := range []string{"run-a", "run-b"} {
		events, err := log.EventsForRun(ctx, runID)
		if err != nil {
			t.Fatal(err)
		}
		if len(events) != 50 {
			t.Errorf("run %s: len(events) = %d, want 50", runID, len(events))
		}
		if err := VerifyDense(events); err != nil {
			t.Errorf("run %s: %v", runID, err)
		}
	}
}
