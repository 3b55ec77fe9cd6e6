package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"costnest/internal/kv"
)

func TestMemoryStoreSetGetRemoveClear(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set(ctx, "a", []byte(`"1"`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := s.Get(ctx, "a")
	if err != nil || string(v) != `"1"` {
		t.Fatalf("unexpected get: %q %v", v, err)
	}

	// returned slices are copies
	v[0] = 'x'
	v2, _ := s.Get(ctx, "a")
	if string(v2) != `"1"` {
		t.Fatalf("store leaked its internal buffer: %q", v2)
	}

	if err := s.Remove(ctx, "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(ctx, "a"); err != nil {
		t.Fatalf("removing an absent key should succeed: %v", err)
	}
	_ = s.Set(ctx, "b", []byte(`2`))
	_ = s.Set(ctx, "c", []byte(`3`))
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for _, key := range []string{"b", "c"} {
		if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("%s should be gone after clear, got %v", key, err)
		}
	}
}

func TestNewFromFilePersistsSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "store.json")

	s, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set(ctx, kv.KeyBudget, []byte(`{"amount":100,"period":"monthly"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "raw", []byte("not json")); err != nil {
		t.Fatalf("set raw: %v", err)
	}

	reopened, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	v, err := reopened.Get(ctx, kv.KeyBudget)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(v) != `{"amount":100,"period":"monthly"}` {
		t.Fatalf("unexpected value after reopen: %s", v)
	}
	if raw, _ := reopened.Get(ctx, "raw"); string(raw) != `"not json"` {
		t.Fatalf("non-JSON values are stored as JSON strings, got %s", raw)
	}
}

func TestNewFromFileRejectsCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFromFile(path); err == nil {
		t.Fatalf("expected decode error")
	}
}
