package schema

import "testing"

const startedSchema = `{
  "type": "object",
  "properties": {"worker": {"type": "string"}},
  "required": ["worker"]
}`

func TestValidateAcceptsConformingPayload(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("run.started", startedSchema); err != nil {
		t.Fatal(err)
	}

	if err := r.Validate("run.started", map[string]interface{}{"worker": "w1"}); err != nil {
		t.Errorf("expected valid payload to pass, got %v", err)
	}
}

func TestValidateRejectsNonConformingPayload(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("run.started", startedSchema); err != nil {
		t.Fatal(err)
	}

	if err := r.Validate("run.started", map[string]interface{}{}); err == nil {
		t.Error("expected missing required field to fail validation")
	}
}

func TestValidateAllowsUnregisteredEventTypes(t *testing.T) {
	r := NewRegistry()
	if err := r.Validate("unknown.event", map[string]interface{}{"anything": true}); err != nil {
		t.Errorf("unregistered event type should pass unconditionally, got %v", err)
	}
}

func TestRegisteredReflectsRegistrations(t *testing.T) {
	r := NewRegistry()
	if r.Registered("run.started") {
		t.Error("expected false before Register")
	}
	if err := r.Register("run.started", startedSchema); err != nil {
		t.Fatal(err)
	}
	if !r.Registered("run.started") {
		t.Error("expected true after Register")
	}
}
