package blob

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jobwatch/internal/model"
)

func TestFSStore_RoundTrip(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	if err := store.PutAtomic("acme_jobs", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := store.Get("acme_jobs")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("got %q", data)
	}
}

func TestFSStore_GetMissingKey(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	_, err = store.Get("never_written")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFSStore_PutOverwrites(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	if err := store.PutAtomic("k", []byte("old")); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := store.PutAtomic("k", []byte("new")); err != nil {
		t.Fatalf("second put: %v", err)
	}

	data, err := store.Get("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "new" {
		t.Fatalf("expected overwrite, got %q", data)
	}
}

func TestFSStore_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	if err := store.PutAtomic("k", []byte("data")); err != nil {
		t.Fatalf("put: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "k.json")); err != nil {
		t.Fatalf("expected k.json to exist: %v", err)
	}
}

func TestMemStore_CopiesOnPutAndGet(t *testing.T) {
	store := NewMemStore()
	buf := []byte("abc")
	if err := store.PutAtomic("k", buf); err != nil {
		t.Fatalf("put: %v", err)
	}
	buf[0] = 'x'

	data, err := store.Get("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "abc" {
		t.Fatalf("stored bytes aliased caller's buffer: %q", data)
	}
}
