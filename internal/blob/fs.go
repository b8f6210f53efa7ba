// Package blob provides the injected byte-store backends behind the
// snapshot store: local filesystem, SQLite, and an in-memory store.
package blob

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"jobwatch/internal/model"
)

// Ensure FSStore implements model.BlobStore.
var _ model.BlobStore = (*FSStore)(nil)

// FSStore persists blobs as files under a single directory, one file per key.
type FSStore struct {
	dir string
}

// NewFSStore creates the directory if needed and returns a store rooted there.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob dir %s: %w", dir, err)
	}
	return &FSStore{dir: dir}, nil
}

// Get reads the bytes for key, or model.ErrNotFound if no file exists.
func (s *FSStore) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", key, err)
	}
	return data, nil
}

// PutAtomic writes to a temporary file in the same directory and renames it
// over the target, so a reader sees either the old or the new bytes. An
// advisory lock per key keeps this the sole writer for the run.
func (s *FSStore) PutAtomic(key string, data []byte) error {
	lock := flock.New(s.path(key) + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("locking blob %s: %w", key, err)
	}
	if !locked {
		return fmt.Errorf("blob %s: another writer holds the lock", key)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing blob %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing blob %s: %w", key, err)
	}

	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing blob %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}
