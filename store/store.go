// Package store defines the durable metadata store the supervisor
// publishes consumption progress through. The store owns the metadata;
// the supervisor only reads it and proposes compare-and-swap advances.
package store

import (
	"context"

	supervisor "github.com/demo-kratia/druid"
)

// MetadataStore persists per-datasource consumption metadata.
// Implementations must be safe for concurrent access: multiple replica
// tasks or a racing supervisor restart may publish at once, and the
// compare-and-swap is the single atomicity guarantee preventing a
// double-publish of the same offset range.
type MetadataStore interface {
	// ReadMetadata returns the durable metadata for a datasource.
	// Returns ErrMetadataNotFound if none has been published yet.
	ReadMetadata(ctx context.Context, dataSource supervisor.DataSourceName) (supervisor.DataSourceMetadata, error)

	// CompareAndSwapMetadata atomically replaces the stored metadata
	// with updated, conditioned on the stored value still equalling
	// expected. An expected value with nil Offsets means "no metadata
	// exists yet". Returns ErrPreconditionFailed when the condition does
	// not hold; the caller must re-read and re-derive, never blindly
	// retry the same precondition.
	CompareAndSwapMetadata(ctx context.Context, expected, updated supervisor.DataSourceMetadata) error

	// ResetMetadata overwrites the stored metadata unconditionally,
	// bypassing the monotonic-advance rule. Administrative recovery only.
	ResetMetadata(ctx context.Context, meta supervisor.DataSourceMetadata) error
}
