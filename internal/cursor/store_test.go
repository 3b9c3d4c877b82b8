package cursor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/drewdunne/prmirror/internal/config"
)

func seed(v uint64) *uint64 { return &v }

func TestStore_LoadSeedsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "last_pr_id")
	store := New(path, seed(100))

	v, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if v != 100 {
		t.Errorf("Load() = %d, want 100", v)
	}

	// Seed is persisted immediately
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(content) != "100" {
		t.Errorf("persisted content = %q, want %q", content, "100")
	}
}

func TestStore_LoadPrefersPersistedValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_pr_id")
	if err := os.WriteFile(path, []byte("250\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	v, err := New(path, seed(1)).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if v != 250 {
		t.Errorf("Load() = %d, want 250", v)
	}
}

func TestStore_LoadWithoutSeed(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "last_pr_id"), nil)

	_, err := store.Load()
	if !errors.Is(err, ErrNoSeed) {
		t.Errorf("Load() error = %v, want ErrNoSeed", err)
	}
	if !errors.Is(err, config.ErrConfiguration) {
		t.Errorf("Load() error = %v, should be a configuration error", err)
	}
}

func TestStore_LoadCorruptValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_pr_id")
	os.WriteFile(path, []byte("12ab"), 0644)

	_, err := New(path, seed(1)).Load()
	if !errors.Is(err, ErrStorage) {
		t.Errorf("Load() error = %v, want ErrStorage", err)
	}
}

func TestStore_AdvanceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_pr_id")
	store := New(path, seed(3))

	for _, v := range []uint64{5, 7, 9} {
		if err := store.Advance(v); err != nil {
			t.Fatalf("Advance(%d) error = %v", v, err)
		}
		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != v {
			t.Errorf("Load() after Advance(%d) = %d", v, got)
		}
	}
}

func TestStore_InterruptedWriteLeavesOldValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "last_pr_id")
	store := New(path, nil)

	if err := store.Advance(41); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	// A crash before the rename leaves a partial temp file next to the cursor.
	partial := filepath.Join(dir, "last_pr_id.tmp-crashed")
	if err := os.WriteFile(partial, []byte("4"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	v, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if v != 41 {
		t.Errorf("Load() = %d, want pre-crash value 41", v)
	}

	// A completed write is read back in full.
	if err := store.Advance(42); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if v, _ := store.Load(); v != 42 {
		t.Errorf("Load() = %d, want post-crash value 42", v)
	}
}

func TestStore_AdvanceFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store := New(filepath.Join(blocker, "last_pr_id"), nil)
	if err := store.Advance(10); !errors.Is(err, ErrStorage) {
		t.Errorf("Advance() error = %v, want ErrStorage", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrStorage) {
		t.Errorf("Load() error = %v, want ErrStorage", err)
	}
}
