package store

import (
	"context"
	"sync"

	supervisor "github.com/demo-kratia/druid"
)

// MockMetadataStore is a configurable mock implementation of
// MetadataStore for use in tests. It allows setting up return values,
// tracking method calls, and injecting errors for error paths.
type MockMetadataStore struct {
	mu sync.RWMutex

	// ReadMetadataFunc is called by ReadMetadata if set.
	ReadMetadataFunc func(ctx context.Context, dataSource supervisor.DataSourceName) (supervisor.DataSourceMetadata, error)

	// CompareAndSwapMetadataFunc is called by CompareAndSwapMetadata if set.
	CompareAndSwapMetadataFunc func(ctx context.Context, expected, updated supervisor.DataSourceMetadata) error

	// ResetMetadataFunc is called by ResetMetadata if set.
	ResetMetadataFunc func(ctx context.Context, meta supervisor.DataSourceMetadata) error

	// Call tracking
	ReadMetadataCalls           []supervisor.DataSourceName
	CompareAndSwapMetadataCalls []CompareAndSwapCall
	ResetMetadataCalls          []supervisor.DataSourceMetadata
}

// CompareAndSwapCall records the parameters of a single
// CompareAndSwapMetadata call.
type CompareAndSwapCall struct {
	Expected supervisor.DataSourceMetadata
	Updated  supervisor.DataSourceMetadata
}

// NewMockMetadataStore creates a MockMetadataStore with empty call history.
func NewMockMetadataStore() *MockMetadataStore {
	return &MockMetadataStore{}
}

func (m *MockMetadataStore) ReadMetadata(ctx context.Context, dataSource supervisor.DataSourceName) (supervisor.DataSourceMetadata, error) {
	m.mu.Lock()
	m.ReadMetadataCalls = append(m.ReadMetadataCalls, dataSource)
	m.mu.Unlock()

	if m.ReadMetadataFunc != nil {
		return m.ReadMetadataFunc(ctx, dataSource)
	}
	return supervisor.DataSourceMetadata{}, ErrMetadataNotFound
}

func (m *MockMetadataStore) CompareAndSwapMetadata(ctx context.Context, expected, updated supervisor.DataSourceMetadata) error {
	m.mu.Lock()
	m.CompareAndSwapMetadataCalls = append(m.CompareAndSwapMetadataCalls, CompareAndSwapCall{Expected: expected, Updated: updated})
	m.mu.Unlock()

	if m.CompareAndSwapMetadataFunc != nil {
		return m.CompareAndSwapMetadataFunc(ctx, expected, updated)
	}
	return nil
}

func (m *MockMetadataStore) ResetMetadata(ctx context.Context, meta supervisor.DataSourceMetadata) error {
	m.mu.Lock()
	m.ResetMetadataCalls = append(m.ResetMetadataCalls, meta)
	m.mu.Unlock()

	if m.ResetMetadataFunc != nil {
		return m.ResetMetadataFunc(ctx, meta)
	}
	return nil
}
