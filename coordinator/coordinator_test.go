package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	supervisor "github.com/demo-kratia/druid"
	"github.com/demo-kratia/druid/stream"
)

func p(id int32) supervisor.Partition {
	return supervisor.Partition{Stream: "events", ID: id}
}

func newTestCoordinator() *Coordinator {
	return New(Config{Adapter: stream.NewMockAdapter()})
}

func newGroup(id int, partitions ...supervisor.Partition) *supervisor.TaskGroup {
	start := make(supervisor.OffsetMap, len(partitions))
	for _, part := range partitions {
		start[part] = supervisor.UnsetSequence()
	}
	return &supervisor.TaskGroup{
		ID:               id,
		BaseSequenceName: "index_mock_test",
		StartOffsets:     start,
	}
}

func TestAddGroup_RejectsOverlappingPartitions(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.AddGroup(newGroup(0, p(0), p(1))))

	err := c.AddGroup(newGroup(1, p(1)))

	assert.Error(t, err)
	assert.Len(t, c.Groups(), 1)
}

func TestAddGroup_RejectsDuplicateGroupID(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.AddGroup(newGroup(0, p(0))))

	assert.Error(t, c.AddGroup(newGroup(0, p(1))))
}

func TestAssignedPartitions_CoversAllActiveGroups(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.AddGroup(newGroup(0, p(0), p(2))))
	require.NoError(t, c.AddGroup(newGroup(1, p(1))))

	assigned := c.AssignedPartitions()

	assert.Equal(t, map[supervisor.Partition]int{p(0): 0, p(2): 0, p(1): 1}, assigned)
}

func TestRecordCheckpoint_AcceptsMonotonicProgress(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.AddGroup(newGroup(0, p(0), p(1))))

	require.NoError(t, c.RecordCheckpoint(0, "task-a", 0,
		supervisor.OffsetMap{p(0): supervisor.SequenceOf(100), p(1): supervisor.SequenceOf(50)}))
	require.NoError(t, c.RecordCheckpoint(0, "task-a", 1,
		supervisor.OffsetMap{p(0): supervisor.SequenceOf(150), p(1): supervisor.SequenceOf(80)}))

	g, _ := c.Group(0)
	assert.Equal(t, 2, g.Checkpoints.Len())
}

func TestRecordCheckpoint_EqualOffsetIsNotARegression(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.AddGroup(newGroup(0, p(0), p(1))))
	require.NoError(t, c.RecordCheckpoint(0, "task-a", 0,
		supervisor.OffsetMap{p(0): supervisor.SequenceOf(100), p(1): supervisor.SequenceOf(50)}))

	// A report covering only p0 at its recorded position is acceptable.
	err := c.RecordCheckpoint(0, "task-a", 1, supervisor.OffsetMap{p(0): supervisor.SequenceOf(100)})

	assert.NoError(t, err)
}

func TestRecordCheckpoint_RejectsRegression(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.AddGroup(newGroup(0, p(0), p(1))))
	require.NoError(t, c.RecordCheckpoint(0, "task-a", 0,
		supervisor.OffsetMap{p(0): supervisor.SequenceOf(100), p(1): supervisor.SequenceOf(50)}))

	err := c.RecordCheckpoint(0, "task-a", 1, supervisor.OffsetMap{p(0): supervisor.SequenceOf(90)})

	assert.ErrorIs(t, err, supervisor.ErrCheckpointRegression)

	// The regression was rejected, never merged.
	g, _ := c.Group(0)
	latest, _ := g.Checkpoints.Latest()
	assert.Equal(t, supervisor.SequenceOf(100), latest.Offsets[p(0)])
}

func TestRecordCheckpoint_RejectsRegressionBelowOmittedPartition(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.AddGroup(newGroup(0, p(0), p(1))))
	require.NoError(t, c.RecordCheckpoint(0, "task-a", 0,
		supervisor.OffsetMap{p(0): supervisor.SequenceOf(100), p(1): supervisor.SequenceOf(50)}))
	// The next checkpoint has nothing new for p1 and omits it.
	require.NoError(t, c.RecordCheckpoint(0, "task-a", 1,
		supervisor.OffsetMap{p(0): supervisor.SequenceOf(100)}))

	// p1's floor is still 50 even though the latest checkpoint lacks it.
	err := c.RecordCheckpoint(0, "task-a", 2,
		supervisor.OffsetMap{p(0): supervisor.SequenceOf(100), p(1): supervisor.SequenceOf(40)})

	assert.ErrorIs(t, err, supervisor.ErrCheckpointRegression)
	g, _ := c.Group(0)
	assert.Equal(t, 2, g.Checkpoints.Len())
}

func TestRecordCheckpoint_ReplicaAgreementAtSameSequenceID(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.AddGroup(newGroup(0, p(0))))
	offsets := supervisor.OffsetMap{p(0): supervisor.SequenceOf(10)}
	require.NoError(t, c.RecordCheckpoint(0, "replica-1", 0, offsets))

	// The second replica reports the identical checkpoint.
	err := c.RecordCheckpoint(0, "replica-2", 0, offsets.Clone())

	assert.NoError(t, err)
	g, _ := c.Group(0)
	assert.Equal(t, 1, g.Checkpoints.Len())
}

func TestRecordCheckpoint_ReplicaDivergenceAtSameSequenceID(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.AddGroup(newGroup(0, p(0))))

	for id := 0; id < 3; id++ {
		off := supervisor.OffsetMap{p(0): supervisor.SequenceOf(int64(10 * (id + 1)))}
		require.NoError(t, c.RecordCheckpoint(0, "replica-1", id, off))
		require.NoError(t, c.RecordCheckpoint(0, "replica-2", id, off))
	}

	// Replica 2 diverges at sequence id 3.
	require.NoError(t, c.RecordCheckpoint(0, "replica-1", 3, supervisor.OffsetMap{p(0): supervisor.SequenceOf(40)}))
	err := c.RecordCheckpoint(0, "replica-2", 3, supervisor.OffsetMap{p(0): supervisor.SequenceOf(41)})

	assert.ErrorIs(t, err, supervisor.ErrReplicaDivergence)
}

func TestRecordCheckpoint_UnknownGroup(t *testing.T) {
	c := newTestCoordinator()

	err := c.RecordCheckpoint(9, "task-a", 0, supervisor.OffsetMap{p(0): supervisor.SequenceOf(1)})

	assert.ErrorIs(t, err, supervisor.ErrGroupNotFound)
}

func TestFreezeIfComplete_RequiresAllPartitionsDone(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.AddGroup(newGroup(0, p(0), p(1))))
	require.NoError(t, c.RecordCheckpoint(0, "task-a", 0, supervisor.OffsetMap{
		p(0): supervisor.EndOfPartitionSequence(),
		p(1): supervisor.SequenceOf(50),
	}))

	frozen, err := c.FreezeIfComplete(0)

	require.NoError(t, err)
	assert.False(t, frozen)
	g, _ := c.Group(0)
	assert.Equal(t, supervisor.GroupPhaseConsuming, g.Phase)
}

func TestFreezeIfComplete_FreezesFinalCheckpoint(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.AddGroup(newGroup(0, p(0), p(1))))
	final := supervisor.OffsetMap{
		p(0): supervisor.EndOfPartitionSequence(),
		p(1): supervisor.EndOfPartitionSequence(),
	}
	require.NoError(t, c.RecordCheckpoint(0, "task-a", 0, final))

	frozen, err := c.FreezeIfComplete(0)

	require.NoError(t, err)
	assert.True(t, frozen)
	g, _ := c.Group(0)
	assert.Equal(t, supervisor.GroupPhasePublishing, g.Phase)
	assert.True(t, g.EndOffsets.Equal(final))

	// Idempotent once frozen.
	frozen, err = c.FreezeIfComplete(0)
	require.NoError(t, err)
	assert.True(t, frozen)
}

func TestFreezeIfComplete_HonorsShardClosure(t *testing.T) {
	adapter := stream.NewMockAdapter()
	adapter.EndOfShard = func(seq supervisor.SequenceNumber) bool {
		return seq.Equal(supervisor.SequenceOf(999))
	}
	c := New(Config{Adapter: adapter})
	require.NoError(t, c.AddGroup(newGroup(0, p(0))))
	require.NoError(t, c.RecordCheckpoint(0, "task-a", 0,
		supervisor.OffsetMap{p(0): supervisor.SequenceOf(999)}))

	frozen, err := c.FreezeIfComplete(0)

	require.NoError(t, err)
	assert.True(t, frozen)
}

func TestFreezeIfComplete_PartitionDoneInEarlierCheckpoint(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.AddGroup(newGroup(0, p(0), p(1))))
	require.NoError(t, c.RecordCheckpoint(0, "task-a", 0, supervisor.OffsetMap{
		p(0): supervisor.EndOfPartitionSequence(),
		p(1): supervisor.SequenceOf(50),
	}))
	// p0 stops appearing in reports once it is exhausted; completion is
	// judged against the whole history, not the latest entry alone.
	require.NoError(t, c.RecordCheckpoint(0, "task-a", 1, supervisor.OffsetMap{
		p(1): supervisor.EndOfPartitionSequence(),
	}))

	frozen, err := c.FreezeIfComplete(0)

	require.NoError(t, err)
	assert.True(t, frozen)
	g, _ := c.Group(0)
	assert.Equal(t, supervisor.EndOfPartitionSequence(), g.EndOffsets[p(0)])
	assert.Equal(t, supervisor.EndOfPartitionSequence(), g.EndOffsets[p(1)])
}

func TestBeginHandoff_ClosesRangeAtHighestRecordedProgress(t *testing.T) {
	c := newTestCoordinator()
	g := newGroup(0, p(0), p(1))
	g.StartOffsets[p(0)] = supervisor.SequenceOf(500)
	g.StartOffsets[p(1)] = supervisor.SequenceOf(500)
	require.NoError(t, c.AddGroup(g))
	require.NoError(t, c.RecordCheckpoint(0, "task-a", 0,
		supervisor.OffsetMap{p(0): supervisor.SequenceOf(1500)}))

	require.NoError(t, c.BeginHandoff(0))

	got, _ := c.Group(0)
	assert.Equal(t, supervisor.GroupPhaseFinishing, got.Phase)
	assert.Equal(t, supervisor.SequenceOf(1500), got.EndOffsets[p(0)])
	// A partition never checkpointed closes at its start offset.
	assert.Equal(t, supervisor.SequenceOf(500), got.EndOffsets[p(1)])

	// Idempotent once past consuming.
	require.NoError(t, c.BeginHandoff(0))
	got, _ = c.Group(0)
	assert.Equal(t, supervisor.GroupPhaseFinishing, got.Phase)
}

func TestCompleteHandoff_AdvancesFinishingGroupToPublishing(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.AddGroup(newGroup(0, p(0))))

	// A consuming group is not ready.
	ready, err := c.CompleteHandoff(0)
	require.NoError(t, err)
	assert.False(t, ready)

	require.NoError(t, c.BeginHandoff(0))
	ready, err = c.CompleteHandoff(0)
	require.NoError(t, err)
	assert.True(t, ready)

	g, _ := c.Group(0)
	assert.Equal(t, supervisor.GroupPhasePublishing, g.Phase)

	// Idempotent once publishing.
	ready, err = c.CompleteHandoff(0)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestExtendGroup_AddsOnlyUnknownPartitions(t *testing.T) {
	c := newTestCoordinator()
	g := newGroup(0, p(0))
	g.StartOffsets[p(0)] = supervisor.SequenceOf(100)
	require.NoError(t, c.AddGroup(g))

	c.ExtendGroup(0, supervisor.OffsetMap{
		p(0): supervisor.SequenceOf(999), // already covered, keeps its start
		p(1): supervisor.SequenceOf(200),
	})

	got, _ := c.Group(0)
	assert.Equal(t, supervisor.SequenceOf(100), got.StartOffsets[p(0)])
	assert.Equal(t, supervisor.SequenceOf(200), got.StartOffsets[p(1)])

	// A group past consuming keeps its closed range.
	require.NoError(t, c.BeginHandoff(0))
	c.ExtendGroup(0, supervisor.OffsetMap{p(2): supervisor.SequenceOf(5)})
	got, _ = c.Group(0)
	assert.NotContains(t, got.StartOffsets, p(2))
}

func TestHighestRecordedOffsets_PrefersCheckpointOverStart(t *testing.T) {
	c := newTestCoordinator()
	g := newGroup(0, p(0), p(1))
	g.StartOffsets[p(0)] = supervisor.SequenceOf(5)
	g.StartOffsets[p(1)] = supervisor.SequenceOf(5)
	require.NoError(t, c.AddGroup(g))
	require.NoError(t, c.RecordCheckpoint(0, "task-a", 0, supervisor.OffsetMap{p(0): supervisor.SequenceOf(42)}))

	highest := c.HighestRecordedOffsets()

	assert.Equal(t, supervisor.SequenceOf(42), highest[p(0)])
	assert.Equal(t, supervisor.SequenceOf(5), highest[p(1)])
}

func TestResumePoint_TakesPerPartitionMaximum(t *testing.T) {
	durable := supervisor.OffsetMap{
		p(0): supervisor.SequenceOf(100),
		p(1): supervisor.SequenceOf(80),
	}
	reported := supervisor.OffsetMap{
		p(0): supervisor.SequenceOf(90),  // durable is ahead: crash after publish
		p(1): supervisor.SequenceOf(120), // task is ahead: crash before record
		p(2): supervisor.SequenceOf(10),  // only the task knows this partition
	}

	resume := ResumePoint(durable, reported)

	assert.Equal(t, supervisor.SequenceOf(100), resume[p(0)])
	assert.Equal(t, supervisor.SequenceOf(120), resume[p(1)])
	assert.Equal(t, supervisor.SequenceOf(10), resume[p(2)])
}

func TestResumePoint_NilDurableMetadata(t *testing.T) {
	reported := supervisor.OffsetMap{p(0): supervisor.SequenceOf(7)}

	resume := ResumePoint(nil, reported)

	assert.Equal(t, supervisor.SequenceOf(7), resume[p(0)])
}
