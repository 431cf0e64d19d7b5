package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestTrackOperationCompletesWithoutError(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}

	ctx, done := p.TrackOperation(context.Background(), "append_event", attribute.String("run_id", "run-1"))
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	done(nil)
}

func TestTrackOperationRecordsError(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}

	_, done := p.TrackOperation(context.Background(), "append_event")
	done(errors.New("boom"))
}
