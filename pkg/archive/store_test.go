package archive

import (
	"context"
	"testing"
)

func TestFileStorePutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	hash, err := s.Put(ctx, []byte("receipt bytes"))
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, hash)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "receipt bytes" {
		t.Errorf("Get returned %q, want %q", got, "receipt bytes")
	}
}

func TestFileStorePutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	h1, err := s.Put(ctx, []byte("same bytes"))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := s.Put(ctx, []byte("same bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("hash not stable across identical Put calls: %s != %s", h1, h2)
	}
}

func TestFileStoreExists(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	hash, err := s.Put(ctx, []byte("data"))
	if err != nil {
		t.Fatal(err)
	}

	ok, err := s.Exists(ctx, hash)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected Exists to report true for stored hash")
	}

	missing, err := s.Exists(ctx, "sha256:"+"0000000000000000000000000000000000000000000000000000000000000000"[:64])
	if err != nil {
		t.Fatal(err)
	}
	if missing {
		t.Error("expected Exists to report false for unknown hash")
	}
}

func TestFileStoreGetRejectsMalformedHash(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "not-a-hash"); err == nil {
		t.Error("expected error for malformed hash")
	}
}
