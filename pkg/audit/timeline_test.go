package audit

import "testing"

func TestRecordAssignsIDAndHash(t *testing.T) {
	tl := NewTimeline()
	entry, err := tl.Record(EntryRunCreated, "run-1", "authority", "run created", map[string]interface{}{"worker_id": "w1"})
	if err != nil {
		t.Fatal(err)
	}
	if entry.EntryID == "" {
		t.Error("expected non-empty EntryID")
	}
	if entry.ContentHash == "" {
		t.Error("expected non-empty ContentHash")
	}
}

func TestQueryFiltersByRunID(t *testing.T) {
	tl := NewTimeline()
	tl.Record(EntryRunCreated, "run-1", "authority", "created", nil)
	tl.Record(EntryRunCreated, "run-2", "authority", "created", nil)
	tl.Record(EntryEventAppended, "run-1", "authority", "appended", nil)

	entries := tl.Query(Query{RunID: "run-1"})
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.RunID != "run-1" {
			t.Errorf("unexpected run_id %s in filtered query", e.RunID)
		}
	}
}

func TestQueryFiltersByEntryType(t *testing.T) {
	tl := NewTimeline()
	tl.Record(EntryRunCreated, "run-1", "authority", "created", nil)
	tl.Record(EntryEventAppended, "run-1", "authority", "appended", nil)

	entries := tl.Query(Query{RunID: "run-1", EntryType: EntryEventAppended})
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].EntryType != EntryEventAppended {
		t.Errorf("EntryType = %s, want EVENT_APPENDED", entries[0].EntryType)
	}
}

func TestQueryRespectsLimit(t *testing.T) {
	tl := NewTimeline()
	for i := 0; i < 5; i++ {
		tl.Record(EntryEventAppended, "run-1", "authority", "appended", nil)
	}

	entries := tl.Query(Query{RunID: "run-1", Limit: 2})
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
}

func TestCountTracksPerRun(t *testing.T) {
	tl := NewTimeline()
	tl.Record(EntryRunCreated, "run-1", "authority", "created", nil)
	tl.Record(EntryEventAppended, "run-1", "authority", "appended", nil)
	tl.Record(EntryRunCreated, "run-2", "authority", "created", nil)

	if tl.Count("run-1") != 2 {
		t.Errorf("Count(run-1) = %d, want 2", tl.Count("run-1"))
	}
	if tl.Count("run-2") != 1 {
		t.Errorf("Count(run-2) = %d, want 1", tl.Count("run-2"))
	}
}
