package queryfilter

import (
	"testing"
	"time"

	"github.com/openagents/runtime-authority/pkg/runtypes"
)

func TestPredicateFiltersByStatus(t *testing.T) {
	f, err := NewFilter()
	if err != nil {
		t.Fatal(err)
	}

	pred, err := f.Predicate(`run.status == "Succeeded"`)
	if err != nil {
		t.Fatal(err)
	}

	succeeded := runtypes.Run{ID: "r1", Status: runtypes.RunStatusSucceeded, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	running := runtypes.Run{ID: "r2", Status: runtypes.RunStatusRunning, CreatedAt: time.Now(), UpdatedAt: time.Now()}

	if !pred(succeeded) {
		t.Error("expected succeeded run to match")
	}
	if pred(running) {
		t.Error("expected running run not to match")
	}
}

func TestPredicateFiltersByWorkerID(t *testing.T) {
	f, err := NewFilter()
	if err != nil {
		t.Fatal(err)
	}

	pred, err := f.Predicate(`run.worker_id == "worker-1"`)
	if err != nil {
		t.Fatal(err)
	}

	match := runtypes.Run{ID: "r1", WorkerID: "worker-1", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	other := runtypes.Run{ID: "r2", WorkerID: "worker-2", CreatedAt: time.Now(), UpdatedAt: time.Now()}

	if !pred(match) {
		t.Error("expected worker-1 run to match")
	}
	if pred(other) {
		t.Error("expected worker-2 run not to match")
	}
}

func TestCompileReusesProgram(t *testing.T) {
	f, err := NewFilter()
	if err != nil {
		t.Fatal(err)
	}
	expr := `run.status == "Failed"`
	if err := f.Compile(expr); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.program[expr]; !ok {
		t.Error("expected program to be cached after Compile")
	}
}

func TestPredicateRejectsInvalidExpression(t *testing.T) {
	f, err := NewFilter()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Predicate(`run.status ==`); err == nil {
		t.Error("expected compile error for malformed expression")
	}
}
