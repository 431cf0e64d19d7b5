// Package receipts builds compact, hash-verifiable receipts summarising a
// run's event trajectory.
package receipts

import (
	"time"

	"github.com/openagents/runtime-authority/pkg/canonicalize"
	"github.com/openagents/runtime-authority/pkg/runtypes"
)

const schemaName = "openagents.receipt.v1"

const defaultPolicyBundleID = "runtime.default"

const policyBundleMetadataKey = "policy_bundle_id"

// resolvePolicyBundleID returns metadata's policy_bundle_id when it is a
// string, else defaultPolicyBundleID.
func resolvePolicyBundleID(run runtypes.Run) string {
	if v, ok := run.Metadata[policyBundleMetadataKey]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultPolicyBundleID
}

// ToolCallReceipt is reserved for future tool-call accounting. No producer
// currently populates it; it is carried so receipts stay schema-stable when
// that accounting lands.
type ToolCallReceipt struct {
	ToolName string `json:"tool_name"`
	CallID   string `json:"call_id"`
}

// VerificationReceipt is reserved for future verification-result
// attachment, mirroring ToolCallReceipt.
type VerificationReceipt struct {
	CheckName string `json:"check_name"`
	Passed    bool   `json:"passed"`
}

// Receipt is the artifact produced by Build.
type Receipt struct {
	Schema         string                `json:"schema"`
	SessionID      string                `json:"session_id"`
	TrajectoryHash string                `json:"trajectory_hash"`
	PolicyBundleID string                `json:"policy_bundle_id"`
	CreatedAt      time.Time             `json:"created_at"`
	EventCount     int                   `json:"event_count"`
	FirstSeq       int64                 `json:"first_seq"`
	LastSeq        int64                 `json:"last_seq"`
	ToolCalls      []ToolCallReceipt     `json:"tool_calls"`
	Verification   []VerificationReceipt `json:"verification"`
}

// trajectoryEntry is the canonical-JSON shape hashed to produce
// TrajectoryHash. Field order here does not matter: canonicalize.JCS sorts
// object keys before hashing.
type trajectoryEntry struct {
	Seq            int64       `json:"seq"`
	EventType      string      `json:"event_type"`
	Payload        interface{} `json:"payload"`
	IdempotencyKey string      `json:"idempotency_key"`
	RecordedAt     time.Time   `json:"recorded_at"`
}

// TrajectoryHash computes the sha256:-prefixed canonical hash of a run's
// event trajectory. It is a pure function of the events slice, independent
// of run metadata, so two runs with identical events hash identically.
func TrajectoryHash(events []runtypes.RunEvent) (string, error) {
	entries := make([]trajectoryEntry, len(events))
	for i, e := range events {
		entries[i] = trajectoryEntry{
			Seq:            e.Seq,
			EventType:      e.EventType,
			Payload:        e.Payload,
			IdempotencyKey: e.IdempotencyKey,
			RecordedAt:     e.RecordedAt,
		}
	}
	return canonicalize.CanonicalHashPrefixed(entries)
}

// Build produces a Receipt for run. It is a pure function of run:
// created_at is run.CreatedAt and policy_bundle_id is resolved from
// run.Metadata. The createdAt argument is not read.
func Build(run runtypes.Run, createdAt time.Time) (Receipt, error) {
	policyBundleID := resolvePolicyBundleID(run)

	hash, err := TrajectoryHash(run.Events)
	if err != nil {
		return Receipt{}, &runtypes.ArtifactSerialisationError{Message: err.Error()}
	}

	var firstSeq, lastSeq int64
	if len(run.Events) > 0 {
		firstSeq = run.Events[0].Seq
		lastSeq = run.Events[len(run.Events)-1].Seq
	}

	return Receipt{
		Schema:         schemaName,
		SessionID:      run.ID,
		TrajectoryHash: hash,
		PolicyBundleID: policyBundleID,
		CreatedAt:      run.CreatedAt,
		EventCount:     len(run.Events),
		FirstSeq:       firstSeq,
		LastSeq:        lastSeq,
		ToolCalls:      []ToolCallReceipt{},
		Verification:   []VerificationReceipt{},
	}, nil
}
