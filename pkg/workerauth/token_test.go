package workerauth

import (
	"testing"
	"time"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	keys, err := NewInMemoryKeySet("kid-1")
	if err != nil {
		t.Fatal(err)
	}

	token, err := Issue(keys, "worker-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	v := NewVerifier(keys)
	if err := v.Verify("worker-1", token); err != nil {
		t.Errorf("expected valid token to verify, got %v", err)
	}
}

func TestVerifyRejectsWrongWorkerID(t *testing.T) {
	keys, err := NewInMemoryKeySet("kid-1")
	if err != nil {
		t.Fatal(err)
	}
	token, err := Issue(keys, "worker-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	v := NewVerifier(keys)
	if err := v.Verify("worker-2", token); err == nil {
		t.Error("expected verification to fail for mismatched worker_id")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	keys, err := NewInMemoryKeySet("kid-1")
	if err != nil {
		t.Fatal(err)
	}
	token, err := Issue(keys, "worker-1", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	v := NewVerifier(keys)
	if err := v.Verify("worker-1", token); err == nil {
		t.Error("expected verification to fail for expired token")
	}
}

func TestVerifySurvivesKeyRotation(t *testing.T) {
	keys, err := NewInMemoryKeySet("kid-1")
	if err != nil {
		t.Fatal(err)
	}
	token, err := Issue(keys, "worker-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if err := keys.Rotate("kid-2"); err != nil {
		t.Fatal(err)
	}

	v := NewVerifier(keys)
	if err := v.Verify("worker-1", token); err != nil {
		t.Errorf("expected token signed under retired kid to still verify, got %v", err)
	}

	newToken, err := Issue(keys, "worker-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Verify("worker-1", newToken); err != nil {
		t.Errorf("expected token signed under current kid to verify, got %v", err)
	}
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	keys, err := NewInMemoryKeySet("kid-1")
	if err != nil {
		t.Fatal(err)
	}
	v := NewVerifier(keys)
	if err := v.Verify("worker-1", ""); err == nil {
		t.Error("expected empty token to fail verification")
	}
}
