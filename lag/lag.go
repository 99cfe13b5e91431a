// Package lag computes point-in-time ingestion lag estimates. These are
// display numbers, not authoritative accounting: the latest-offset
// snapshot and task progress advance independently, so raw per-partition
// lag can be transiently negative.
package lag

import (
	"sync/atomic"
	"time"

	supervisor "github.com/demo-kratia/druid"
)

// Snapshot is an immutable view of the latest stream offsets, replaced
// wholesale on each discovery refresh so readers never observe a
// partially-updated map.
type Snapshot struct {
	Latest    map[supervisor.Partition]int64
	UpdatedAt time.Time
}

// Tracker holds the current Snapshot behind an atomic swap.
type Tracker struct {
	v atomic.Pointer[Snapshot]
}

// NewTracker returns a Tracker with no snapshot yet.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Store replaces the snapshot. The caller must not mutate latest after
// handing it over.
func (t *Tracker) Store(latest map[supervisor.Partition]int64, at time.Time) {
	t.v.Store(&Snapshot{Latest: latest, UpdatedAt: at})
}

// Load returns the current snapshot, or ok=false when discovery has not
// produced one yet.
func (t *Tracker) Load() (Snapshot, bool) {
	snap := t.v.Load()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}

// RecordLagPerPartition returns latest-minus-current for every partition
// the current offsets cover that also appears in latest. Values can be
// negative when a task is ahead of the snapshot. Returns an empty map
// when either input is missing.
func RecordLagPerPartition(latest map[supervisor.Partition]int64, current supervisor.OffsetMap) map[supervisor.Partition]int64 {
	if latest == nil || current == nil {
		return map[supervisor.Partition]int64{}
	}

	out := make(map[supervisor.Partition]int64, len(current))
	for p, seq := range current {
		l, ok := latest[p]
		if !ok {
			continue
		}
		if seq.Kind == supervisor.KindValue {
			out[p] = l - seq.Offset
		} else {
			out[p] = 0
		}
	}
	return out
}

// RecordLagInLatest returns latest-minus-current for every partition in
// the latest snapshot, treating unreported partitions as position zero.
// Used for the cumulative whole-stream lag in reports.
func RecordLagInLatest(latest map[supervisor.Partition]int64, current supervisor.OffsetMap) map[supervisor.Partition]int64 {
	if latest == nil {
		return map[supervisor.Partition]int64{}
	}

	out := make(map[supervisor.Partition]int64, len(latest))
	for p, l := range latest {
		var cur int64
		if seq, ok := current[p]; ok && seq.Kind == supervisor.KindValue {
			cur = seq.Offset
		}
		out[p] = l - cur
	}
	return out
}

// ComputeLagStats reduces a per-partition record-lag map to aggregate
// stats, flooring each partition at zero. A nil or empty map yields
// all-zero stats, never an error.
func ComputeLagStats(partitionLag map[supervisor.Partition]int64) supervisor.LagStats {
	stats := supervisor.LagStats{Partitions: len(partitionLag)}
	if len(partitionLag) == 0 {
		return stats
	}

	for _, l := range partitionLag {
		if l < 0 {
			l = 0
		}
		stats.TotalLag += l
		if l > stats.MaxLag {
			stats.MaxLag = l
		}
	}
	stats.AvgLag = stats.TotalLag / int64(len(partitionLag))
	return stats
}

// AggregateTotal sums a per-partition lag map with each value floored at
// zero, for the report's single aggregate number.
func AggregateTotal(partitionLag map[supervisor.Partition]int64) int64 {
	var total int64
	for _, l := range partitionLag {
		if l > 0 {
			total += l
		}
	}
	return total
}
