package vectorstore

import (
	"context"
	"encoding/json"
	"os"

	"github.com/gofrs/flock"

	rerrors "github.com/aman-cerp/ragcore/internal/errors"
)

const snapshotVersion = 1

// snapshotConfig holds the path an InMemoryStore persists to after
// every mutation, once EnableSnapshot has been called.
type snapshotConfig struct {
	path string
}

// snapshotFile is the on-disk JSON shape: {namespaces, dimension, version}.
type snapshotFile struct {
	Namespaces map[string]map[string]snapshotEntry `json:"namespaces"`
	Dimension  int                                  `json:"dimension"`
	Version    int                                  `json:"version"`
}

type snapshotEntry struct {
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// EnableSnapshot turns on write-through JSON snapshotting to path:
// every mutation persists the store as Save does, guarded by an OS file lock
// at path+".lock" so concurrent writers never interleave partial
// writes.
func (s *InMemoryStore) EnableSnapshot(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = &snapshotConfig{path: path}
}

func (s *InMemoryStore) persistIfConfigured() {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	if snap == nil {
		return
	}
	_ = s.Save(snap.path)
}

// Save writes the store to path as a JSON snapshot: the dimension and,
// per namespace, each document's id, vector and metadata. Document
// Content is not written.
func (s *InMemoryStore) Save(path string) error {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return rerrors.ServerError("failed to acquire vector store snapshot lock", err)
	}
	if !locked {
		return rerrors.ServerError("vector store snapshot is locked by another writer", nil)
	}
	defer lock.Unlock()

	s.mu.RLock()
	snap := snapshotFile{
		Namespaces: make(map[string]map[string]snapshotEntry, len(s.namespaces)),
		Dimension:  s.dimension,
		Version:    snapshotVersion,
	}
	for ns, n := range s.namespaces {
		n.mu.RLock()
		entries := make(map[string]snapshotEntry, len(n.docs))
		for id, doc := range n.docs {
			entries[id] = snapshotEntry{Vector: []float32(doc.Embedding), Metadata: doc.Metadata}
		}
		n.mu.RUnlock()
		snap.Namespaces[ns] = entries
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return rerrors.ServerError("failed to encode vector store snapshot", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return rerrors.ServerError("failed to write vector store snapshot", err)
	}
	return nil
}

// Load replaces the store's contents with the snapshot at path; loaded
// documents have an empty Content. A missing file is not an error and
// leaves the store unchanged.
func (s *InMemoryStore) Load(path string) error {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return rerrors.ServerError("failed to acquire vector store snapshot lock", err)
	}
	if !locked {
		return rerrors.ServerError("vector store snapshot is locked by another writer", nil)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return rerrors.ServerError("failed to read vector store snapshot", err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return rerrors.ServerError("failed to decode vector store snapshot", err)
	}

	s.mu.Lock()
	s.namespaces = make(map[string]*namespaceData)
	s.dimension = snap.Dimension
	s.count = 0
	s.mu.Unlock()

	ctx := context.Background()
	for ns, entries := range snap.Namespaces {
		for id, entry := range entries {
			doc := VectorDocument{ID: id, Embedding: entry.Vector, Metadata: entry.Metadata}
			if err := s.upsert(ctx, id, doc, ns); err != nil {
				return err
			}
		}
	}
	return nil
}
