package eventlog

import (
	"fmt"

	"github.com/openagents/runtime-authority/pkg/canonicalize"
	"github.com/openagents/runtime-authority/pkg/runtypes"
)

// VerifyDense checks the core invariants an accepted event list must satisfy:
// seq values are exactly 1..N with no gaps or duplicates, and recorded_at is
// non-decreasing. It does not require network or disk access — callers use
// it after EventsForRun to sanity-check recovery, or in tests.
func VerifyDense(events []runtypes.RunEvent) error {
	for i, event := range events {
		wantSeq := int64(i + 1)
		if event.Seq != wantSeq {
			return fmt.Errorf("eventlog: gap or duplicate at index %d: seq=%d want=%d", i, event.Seq, wantSeq)
		}
		if i > 0 && event.RecordedAt.Before(events[i-1].RecordedAt) {
			return fmt.Errorf("eventlog: recorded_at went backwards at seq %d", event.Seq)
		}
	}
	return nil
}

// ChainHash computes a hash-linked digest over events[0:i+1] for each i,
// returning the final link. Two independently recovered copies of the same
// run's events produce the same chain hash iff every event's seq, type,
// payload, idempotency key, and recorded_at match exactly — a cheap way to
// compare a replica's recovered state against a known-good export without
// diffing every field by hand.
func ChainHash(events []runtypes.RunEvent) (string, error) {
	link := ""
	for _, event := range events {
		next, err := canonicalize.CanonicalHashPrefixed(map[string]interface{}{
			"seq":             event.Seq,
			"event_type":      event.EventType,
			"payload":         event.Payload,
			"idempotency_key": event.IdempotencyKey,
			"recorded_at":     event.RecordedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
			"previous":        link,
		})
		if err != nil {
			return "", fmt.Errorf("eventlog: chain hash: %w", err)
		}
		link = next
	}
	return link, nil
}
