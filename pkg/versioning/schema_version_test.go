package versioning

import "testing"

func TestCompatibleSameMajor(t *testing.T) {
	ok, err := Compatible("1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected 1.2.3 to be compatible with current 1.x format")
	}
}

func TestIncompatibleDifferentMajor(t *testing.T) {
	ok, err := Compatible("2.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected 2.0.0 to be incompatible with current 1.x format")
	}
}

func TestCompatibleRejectsMalformedVersion(t *testing.T) {
	if _, err := Compatible("not-a-version"); err == nil {
		t.Error("expected error for malformed persisted version")
	}
}

func TestCheckAndWarnLogsOnMismatch(t *testing.T) {
	var warned bool
	CheckAndWarn("2.0.0", func(msg string, args ...interface{}) { warned = true })
	if !warned {
		t.Error("expected warn callback on major version mismatch")
	}
}

func TestCheckAndWarnSilentOnMatch(t *testing.T) {
	var warned bool
	CheckAndWarn("1.0.0", func(msg string, args ...interface{}) { warned = true })
	if warned {
		t.Error("did not expect warn callback for matching major version")
	}
}
