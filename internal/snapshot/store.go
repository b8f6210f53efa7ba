// Package snapshot persists posting collections as versioned JSON documents
// in an injected blob store.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"jobwatch/internal/model"
)

// Store serializes collections to and from a blob store. It owns schema
// validation and migration; the backing medium is whatever BlobStore was
// injected.
type Store struct {
	blobs  model.BlobStore
	logger *slog.Logger
}

// New creates a snapshot store over the given backend.
func New(blobs model.BlobStore, logger *slog.Logger) *Store {
	return &Store{blobs: blobs, logger: logger}
}

// Load reads and decodes the collection stored under key.
//
// Returns model.ErrNotFound when no snapshot exists, and *model.CorruptError
// when bytes are present but match no known snapshot structure. A snapshot
// with an older schema version is migrated forward before being returned;
// one written by a newer schema is refused so we never clobber it.
func (s *Store) Load(key string) (*model.Collection, error) {
	data, err := s.blobs.Get(key)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", key, err)
	}

	coll, version, err := decode(key, data)
	if err != nil {
		return nil, err
	}
	if version < model.SchemaVersion {
		s.logger.Info("migrated snapshot schema",
			"key", key,
			"from_version", version,
			"to_version", model.SchemaVersion,
		)
	}
	return coll, nil
}

// Save encodes the collection and writes it atomically under key.
func (s *Store) Save(key string, coll *model.Collection) error {
	if coll.SchemaVersion != model.SchemaVersion {
		return fmt.Errorf("saving snapshot %s: refusing to write schema version %d", key, coll.SchemaVersion)
	}
	data, err := json.MarshalIndent(coll, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", key, err)
	}
	if err := s.blobs.PutAtomic(key, data); err != nil {
		return fmt.Errorf("saving snapshot %s: %w", key, err)
	}
	return nil
}
