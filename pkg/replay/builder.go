// Package replay renders a run's event trajectory as NDJSON suitable for
// offline playback and audit review.
package replay

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/openagents/runtime-authority/pkg/canonicalize"
	"github.com/openagents/runtime-authority/pkg/runtypes"
)

const (
	formatVersion  = 1
	producerName   = "openagents-runtime"
	timeLayout     = time.RFC3339
	defaultBundle  = "runtime.default"
	bundleMetadata = "policy_bundle_id"
)

// ReplayHeader opens the NDJSON stream.
type ReplayHeader struct {
	Type          string `json:"type"`
	ReplayVersion int    `json:"replay_version"`
	Producer      string `json:"producer"`
	CreatedAt     string `json:"created_at"`
}

// SessionStart follows the header.
type SessionStart struct {
	Type           string `json:"type"`
	Ts             string `json:"ts"`
	SessionID      string `json:"session_id"`
	PolicyBundleID string `json:"policy_bundle_id"`
}

// RuntimeEvent is one line per recorded event.
type RuntimeEvent struct {
	Type             string      `json:"type"`
	Ts               string      `json:"ts"`
	SessionID        string      `json:"session_id"`
	Seq              int64       `json:"seq"`
	RuntimeEventType string      `json:"runtime_event_type"`
	PayloadHash      string      `json:"payload_hash"`
	Payload          interface{} `json:"payload"`
}

// SessionEnd closes the stream.
type SessionEnd struct {
	Type           string  `json:"type"`
	Ts             string  `json:"ts"`
	SessionID      string  `json:"session_id"`
	Status         string  `json:"status"`
	Confidence     float64 `json:"confidence"`
	TotalToolCalls int     `json:"total_tool_calls"`
}

// resolvePolicyBundleID mirrors the receipt builder's resolution: the
// metadata's policy_bundle_id if it is a string, else the default bundle.
func resolvePolicyBundleID(run runtypes.Run) string {
	if v, ok := run.Metadata[bundleMetadata]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultBundle
}

// Build renders run as an NDJSON byte stream: header, session start, one
// line per event, session end, each line newline-terminated.
func Build(run runtypes.Run, endedAt time.Time) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	if err := enc.Encode(ReplayHeader{
		Type:          "ReplayHeader",
		ReplayVersion: formatVersion,
		Producer:      producerName,
		CreatedAt:     run.CreatedAt.Format(timeLayout),
	}); err != nil {
		return nil, &runtypes.ArtifactSerialisationError{Message: err.Error()}
	}

	policyBundleID := resolvePolicyBundleID(run)

	if err := enc.Encode(SessionStart{
		Type:           "SessionStart",
		Ts:             run.CreatedAt.Format(timeLayout),
		SessionID:      run.ID,
		PolicyBundleID: policyBundleID,
	}); err != nil {
		return nil, &runtypes.ArtifactSerialisationError{Message: err.Error()}
	}

	endTs := endedAt
	for _, e := range run.Events {
		payloadHash, err := canonicalize.CanonicalHashPrefixed(e.Payload)
		if err != nil {
			return nil, &runtypes.ArtifactSerialisationError{Message: err.Error()}
		}
		if err := enc.Encode(RuntimeEvent{
			Type:             "RuntimeEvent",
			Ts:               e.RecordedAt.Format(timeLayout),
			SessionID:        run.ID,
			Seq:              e.Seq,
			RuntimeEventType: e.EventType,
			PayloadHash:      payloadHash,
			Payload:          e.Payload,
		}); err != nil {
			return nil, &runtypes.ArtifactSerialisationError{Message: err.Error()}
		}
		endTs = e.RecordedAt
	}

	status, confidence := replayStatus(run.Status)
	if err := enc.Encode(SessionEnd{
		Type:           "SessionEnd",
		Ts:             endTs.Format(timeLayout),
		SessionID:      run.ID,
		Status:         status,
		Confidence:     confidence,
		TotalToolCalls: 0,
	}); err != nil {
		return nil, &runtypes.ArtifactSerialisationError{Message: err.Error()}
	}

	return buf.Bytes(), nil
}

func replayStatus(status runtypes.RunStatus) (string, float64) {
	switch status {
	case runtypes.RunStatusSucceeded:
		return "success", 1.0
	case runtypes.RunStatusFailed:
		return "failure", 0.0
	case runtypes.RunStatusCanceled:
		return "cancelled", 0.0
	default:
		return "success", 0.5
	}
}
