package receipts

import (
	"testing"
	"time"

	"github.com/openagents/runtime-authority/pkg/runtypes"
)

func sampleRun() runtypes.Run {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return runtypes.Run{
		ID:       "run-1",
		WorkerID: "worker-1",
		Status:   runtypes.RunStatusSucceeded,
		Metadata: map[string]interface{}{},
		Events: []runtypes.RunEvent{
			{Seq: 1, EventType: "run.started", Payload: map[string]interface{}{"a": 1}, RecordedAt: t0},
			{Seq: 2, EventType: "run.step.completed", Payload: map[string]interface{}{"step": 1}, RecordedAt: t0.Add(time.Second)},
		},
		CreatedAt: t0,
		UpdatedAt: t0.Add(time.Second),
	}
}

func TestBuildPopulatesFirstAndLastSeq(t *testing.T) {
	run := sampleRun()
	receipt, err := Build(run, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Schema != schemaName {
		t.Errorf("Schema = %q, want %q", receipt.Schema, schemaName)
	}
	if receipt.PolicyBundleID != defaultPolicyBundleID {
		t.Errorf("PolicyBundleID = %q, want default", receipt.PolicyBundleID)
	}
	if receipt.FirstSeq != 1 || receipt.LastSeq != 2 {
		t.Errorf("FirstSeq/LastSeq = %d/%d, want 1/2", receipt.FirstSeq, receipt.LastSeq)
	}
	if receipt.EventCount != 2 {
		t.Errorf("EventCount = %d, want 2", receipt.EventCount)
	}
}

func TestBuildOnEmptyRunYieldsZeroSeqs(t *testing.T) {
	run := sampleRun()
	run.Events = nil
	run.Metadata = map[string]interface{}{"policy_bundle_id": "custom.bundle"}
	receipt, err := Build(run, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if receipt.FirstSeq != 0 || receipt.LastSeq != 0 {
		t.Errorf("FirstSeq/LastSeq = %d/%d, want 0/0", receipt.FirstSeq, receipt.LastSeq)
	}
	if receipt.PolicyBundleID != "custom.bundle" {
		t.Errorf("PolicyBundleID = %q, want custom.bundle", receipt.PolicyBundleID)
	}
}

func TestBuildFallsBackToDefaultBundleWhenMetadataKeyNotAString(t *testing.T) {
	run := sampleRun()
	run.Metadata = map[string]interface{}{"policy_bundle_id": 42}
	receipt, err := Build(run, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if receipt.PolicyBundleID != defaultPolicyBundleID {
		t.Errorf("PolicyBundleID = %q, want default", receipt.PolicyBundleID)
	}
}

func TestTrajectoryHashIsDeterministic(t *testing.T) {
	run := sampleRun()
	h1, err := TrajectoryHash(run.Events)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := TrajectoryHash(run.Events)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("hash not deterministic: %s != %s", h1, h2)
	}
}

func TestTrajectoryHashChangesWithPayload(t *testing.T) {
	run := sampleRun()
	base, err := TrajectoryHash(run.Events)
	if err != nil {
		t.Fatal(err)
	}

	run.Events[0].Payload = map[string]interface{}{"a": 2}
	changed, err := TrajectoryHash(run.Events)
	if err != nil {
		t.Fatal(err)
	}

	if base == changed {
		t.Error("hash did not change when payload changed")
	}
}
