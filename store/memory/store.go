// Package memory provides an in-memory MetadataStore for tests and
// single-process deployments.
package memory

import (
	"context"
	"sync"

	supervisor "github.com/demo-kratia/druid"
	"github.com/demo-kratia/druid/store"
)

// Store is an in-memory implementation of MetadataStore. Thread-safe.
type Store struct {
	mu       sync.RWMutex
	metadata map[supervisor.DataSourceName]supervisor.DataSourceMetadata
}

// Compile-time check that Store implements MetadataStore.
var _ store.MetadataStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{metadata: make(map[supervisor.DataSourceName]supervisor.DataSourceMetadata)}
}

// ReadMetadata returns the stored metadata for a datasource.
// Returns store.ErrMetadataNotFound if none exists.
func (s *Store) ReadMetadata(ctx context.Context, dataSource supervisor.DataSourceName) (supervisor.DataSourceMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.metadata[dataSource]
	if !ok {
		return supervisor.DataSourceMetadata{}, store.ErrMetadataNotFound
	}
	return cloned(meta), nil
}

// CompareAndSwapMetadata replaces the stored metadata with updated if the
// stored value still equals expected. Expected nil Offsets means "no
// metadata exists yet".
func (s *Store) CompareAndSwapMetadata(ctx context.Context, expected, updated supervisor.DataSourceMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.metadata[updated.DataSource]
	if expected.Offsets == nil {
		if exists {
			return store.ErrPreconditionFailed
		}
	} else {
		if !exists || current.Stream != expected.Stream || !current.Offsets.Equal(expected.Offsets) {
			return store.ErrPreconditionFailed
		}
	}

	s.metadata[updated.DataSource] = cloned(updated)
	return nil
}

// ResetMetadata overwrites the stored metadata unconditionally.
func (s *Store) ResetMetadata(ctx context.Context, meta supervisor.DataSourceMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metadata[meta.DataSource] = cloned(meta)
	return nil
}

func cloned(meta supervisor.DataSourceMetadata) supervisor.DataSourceMetadata {
	meta.Offsets = meta.Offsets.Clone()
	return meta
}
