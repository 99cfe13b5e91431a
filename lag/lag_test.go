package lag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	supervisor "github.com/demo-kratia/druid"
)

func p(id int32) supervisor.Partition {
	return supervisor.Partition{Stream: "events", ID: id}
}

func TestTracker_LoadBeforeStoreReportsMissing(t *testing.T) {
	tr := NewTracker()

	_, ok := tr.Load()

	assert.False(t, ok)
}

func TestTracker_StoreSwapsWholeSnapshot(t *testing.T) {
	tr := NewTracker()
	at := time.Now()

	tr.Store(map[supervisor.Partition]int64{p(0): 100}, at)
	snap, ok := tr.Load()
	require.True(t, ok)
	assert.Equal(t, int64(100), snap.Latest[p(0)])
	assert.Equal(t, at, snap.UpdatedAt)

	tr.Store(map[supervisor.Partition]int64{p(1): 50}, at.Add(time.Second))
	snap, _ = tr.Load()
	assert.NotContains(t, snap.Latest, p(0))
	assert.Equal(t, int64(50), snap.Latest[p(1)])
}

func TestRecordLagPerPartition_AllowsNegativeRawLag(t *testing.T) {
	latest := map[supervisor.Partition]int64{p(0): 100, p(1): 40}
	current := supervisor.OffsetMap{
		p(0): supervisor.SequenceOf(90),
		p(1): supervisor.SequenceOf(45), // task ahead of stale snapshot
	}

	lag := RecordLagPerPartition(latest, current)

	assert.Equal(t, int64(10), lag[p(0)])
	assert.Equal(t, int64(-5), lag[p(1)])
}

func TestRecordLagPerPartition_SkipsPartitionsMissingFromSnapshot(t *testing.T) {
	latest := map[supervisor.Partition]int64{p(0): 100}
	current := supervisor.OffsetMap{
		p(0): supervisor.SequenceOf(90),
		p(9): supervisor.SequenceOf(1),
	}

	lag := RecordLagPerPartition(latest, current)

	assert.Len(t, lag, 1)
	assert.NotContains(t, lag, p(9))
}

func TestRecordLagPerPartition_EmptyWhenNoSnapshot(t *testing.T) {
	assert.Empty(t, RecordLagPerPartition(nil, supervisor.OffsetMap{p(0): supervisor.SequenceOf(1)}))
	assert.Empty(t, RecordLagPerPartition(map[supervisor.Partition]int64{p(0): 1}, nil))
}

func TestRecordLagInLatest_TreatsUnreportedPartitionsAsZero(t *testing.T) {
	latest := map[supervisor.Partition]int64{p(0): 100, p(1): 70}
	current := supervisor.OffsetMap{p(0): supervisor.SequenceOf(60)}

	lag := RecordLagInLatest(latest, current)

	assert.Equal(t, int64(40), lag[p(0)])
	assert.Equal(t, int64(70), lag[p(1)])
}

func TestRecordLagInLatest_SentinelOffsetsCountAsZeroProgress(t *testing.T) {
	latest := map[supervisor.Partition]int64{p(0): 100}
	current := supervisor.OffsetMap{p(0): supervisor.UnsetSequence()}

	lag := RecordLagInLatest(latest, current)

	assert.Equal(t, int64(100), lag[p(0)])
}

func TestComputeLagStats_ZeroStatsOnEmptyOrNil(t *testing.T) {
	assert.Equal(t, supervisor.LagStats{}, ComputeLagStats(nil))
	assert.Equal(t, supervisor.LagStats{}, ComputeLagStats(map[supervisor.Partition]int64{}))
}

func TestComputeLagStats_FloorsNegativesAndAggregates(t *testing.T) {
	lag := map[supervisor.Partition]int64{
		p(0): 30,
		p(1): -10,
		p(2): 50,
	}

	stats := ComputeLagStats(lag)

	assert.Equal(t, int64(50), stats.MaxLag)
	assert.Equal(t, int64(80), stats.TotalLag)
	assert.Equal(t, int64(26), stats.AvgLag)
	assert.Equal(t, 3, stats.Partitions)
}

func TestAggregateTotal_FloorsEachPartitionAtZero(t *testing.T) {
	lag := map[supervisor.Partition]int64{p(0): 5, p(1): -100}

	assert.Equal(t, int64(5), AggregateTotal(lag))
	assert.Equal(t, int64(0), AggregateTotal(nil))
}
