// Package stream defines the contract between the generic supervisor
// engine and a concrete stream technology. The engine is written against
// Adapter only; per-stream semantics (offset wrapping, partition hashing,
// shard closure) live behind it.
package stream

import (
	"context"

	supervisor "github.com/demo-kratia/druid"
)

// Adapter is the per-stream plug-in the supervisor engine calls through.
//
// Implementations share one underlying client handle between
// ListPartitions, SeekToLatest and PositionOf; the engine serializes
// access to these three through its record-supplier lock, so they need
// not be safe for concurrent use with each other. The pure functions
// (GroupIDFor, WrapOffset, markers, classification) must be safe to call
// from any goroutine.
type Adapter interface {
	// ListPartitions returns the stream's current partition set.
	ListPartitions(ctx context.Context, stream string) ([]supervisor.Partition, error)

	// SeekToLatest positions the adapter's read handle at the latest
	// available offset for each partition, refreshing the values that
	// PositionOf reports.
	SeekToLatest(ctx context.Context, partitions []supervisor.Partition) error

	// PositionOf returns the raw offset the adapter is positioned at for
	// the partition, after a SeekToLatest.
	PositionOf(partition supervisor.Partition) (int64, error)

	// GroupIDFor maps a partition to a task-group id in [0, groupCount).
	// Pure and stable across restarts.
	GroupIDFor(partition supervisor.Partition, groupCount int) int

	// WrapOffset converts a raw adapter offset into a SequenceNumber.
	WrapOffset(raw int64, exclusive bool) supervisor.SequenceNumber

	// NotSetMarker returns the raw value meaning "no progress recorded".
	NotSetMarker() int64

	// EndOfPartitionMarker returns the raw value meaning "no more data
	// will ever arrive".
	EndOfPartitionMarker() int64

	// IsEndOfShard reports whether the sequence marks a closed shard.
	// Non-sharded streams always answer false.
	IsEndOfShard(seq supervisor.SequenceNumber) bool

	// IsShardExpired reports whether the sequence marks an expired shard.
	// Non-sharded streams always answer false.
	IsShardExpired(seq supervisor.SequenceNumber) bool

	// UsesExclusiveStartForContinuation reports whether continuation
	// groups must treat their start offsets as already consumed.
	UsesExclusiveStartForContinuation() bool

	// TimeLag returns per-partition time lag in milliseconds, derived
	// from record timestamps in the offset metadata. Streams whose
	// offsets carry no timestamps return nil, which callers must treat
	// as "not computed" rather than zero lag.
	TimeLag(latest map[supervisor.Partition]int64, current supervisor.OffsetMap) map[supervisor.Partition]int64

	// BuildTaskIOConfig assembles the I/O config handed to each task
	// created for the group.
	BuildTaskIOConfig(group *supervisor.TaskGroup, start, end supervisor.OffsetMap, window supervisor.TimeWindow) (supervisor.TaskIOConfig, error)

	// BaseTaskTypeName names the task type this adapter's tasks use,
	// e.g. "index_kafka". Tasks of other types are never this
	// supervisor's responsibility.
	BaseTaskTypeName() string

	// Close releases the adapter's client handle.
	Close() error
}
