package stream

import (
	"context"
	"sync"

	supervisor "github.com/demo-kratia/druid"
)

var _ Adapter = (*MockAdapter)(nil)

// MockAdapter is a configurable mock implementation of Adapter for use in
// tests. Behavior funcs can be set per method; calls to the stateful
// operations are recorded for assertions.
type MockAdapter struct {
	mu sync.Mutex

	// ListPartitionsFunc is called by ListPartitions if set.
	ListPartitionsFunc func(ctx context.Context, stream string) ([]supervisor.Partition, error)

	// SeekToLatestFunc is called by SeekToLatest if set.
	SeekToLatestFunc func(ctx context.Context, partitions []supervisor.Partition) error

	// PositionOfFunc is called by PositionOf if set.
	PositionOfFunc func(partition supervisor.Partition) (int64, error)

	// GroupIDForFunc is called by GroupIDFor if set; the default maps the
	// partition ordinal mod groupCount.
	GroupIDForFunc func(partition supervisor.Partition, groupCount int) int

	// BuildTaskIOConfigFunc is called by BuildTaskIOConfig if set.
	BuildTaskIOConfigFunc func(group *supervisor.TaskGroup, start, end supervisor.OffsetMap, window supervisor.TimeWindow) (supervisor.TaskIOConfig, error)

	// EndOfShard and ExpiredShard, when non-nil, classify sequences for
	// sharded-stream scenarios.
	EndOfShard   func(seq supervisor.SequenceNumber) bool
	ExpiredShard func(seq supervisor.SequenceNumber) bool

	// ExclusiveStart is returned by UsesExclusiveStartForContinuation.
	ExclusiveStart bool

	// TimeLagFunc is called by TimeLag if set; the default reports time
	// lag as not computed.
	TimeLagFunc func(latest map[supervisor.Partition]int64, current supervisor.OffsetMap) map[supervisor.Partition]int64

	// TaskTypeName is returned by BaseTaskTypeName (default "index_mock").
	TaskTypeName string

	// Call tracking
	ListPartitionsCalls []string
	SeekToLatestCalls   [][]supervisor.Partition
	PositionOfCalls     []supervisor.Partition
	CloseCalls          int
}

// NewMockAdapter creates a MockAdapter with empty call history.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

func (m *MockAdapter) ListPartitions(ctx context.Context, stream string) ([]supervisor.Partition, error) {
	m.mu.Lock()
	m.ListPartitionsCalls = append(m.ListPartitionsCalls, stream)
	m.mu.Unlock()

	if m.ListPartitionsFunc != nil {
		return m.ListPartitionsFunc(ctx, stream)
	}
	return nil, nil
}

func (m *MockAdapter) SeekToLatest(ctx context.Context, partitions []supervisor.Partition) error {
	m.mu.Lock()
	m.SeekToLatestCalls = append(m.SeekToLatestCalls, partitions)
	m.mu.Unlock()

	if m.SeekToLatestFunc != nil {
		return m.SeekToLatestFunc(ctx, partitions)
	}
	return nil
}

func (m *MockAdapter) PositionOf(partition supervisor.Partition) (int64, error) {
	m.mu.Lock()
	m.PositionOfCalls = append(m.PositionOfCalls, partition)
	m.mu.Unlock()

	if m.PositionOfFunc != nil {
		return m.PositionOfFunc(partition)
	}
	return 0, nil
}

func (m *MockAdapter) GroupIDFor(partition supervisor.Partition, groupCount int) int {
	if m.GroupIDForFunc != nil {
		return m.GroupIDForFunc(partition, groupCount)
	}
	return int(partition.ID) % groupCount
}

func (m *MockAdapter) WrapOffset(raw int64, exclusive bool) supervisor.SequenceNumber {
	return supervisor.WrapSequence(raw, exclusive)
}

func (m *MockAdapter) NotSetMarker() int64 { return supervisor.RawNotSet }

func (m *MockAdapter) EndOfPartitionMarker() int64 { return supervisor.RawEndOfPartition }

func (m *MockAdapter) IsEndOfShard(seq supervisor.SequenceNumber) bool {
	if m.EndOfShard != nil {
		return m.EndOfShard(seq)
	}
	return false
}

func (m *MockAdapter) IsShardExpired(seq supervisor.SequenceNumber) bool {
	if m.ExpiredShard != nil {
		return m.ExpiredShard(seq)
	}
	return false
}

func (m *MockAdapter) UsesExclusiveStartForContinuation() bool { return m.ExclusiveStart }

func (m *MockAdapter) TimeLag(latest map[supervisor.Partition]int64, current supervisor.OffsetMap) map[supervisor.Partition]int64 {
	if m.TimeLagFunc != nil {
		return m.TimeLagFunc(latest, current)
	}
	return nil
}

func (m *MockAdapter) BuildTaskIOConfig(group *supervisor.TaskGroup, start, end supervisor.OffsetMap, window supervisor.TimeWindow) (supervisor.TaskIOConfig, error) {
	if m.BuildTaskIOConfigFunc != nil {
		return m.BuildTaskIOConfigFunc(group, start, end, window)
	}
	return supervisor.TaskIOConfig{
		GroupID:          group.ID,
		BaseSequenceName: group.BaseSequenceName,
		StartOffsets:     start.Clone(),
		EndOffsets:       end.Clone(),
		MinMessageTime:   window.MinMessageTime,
		MaxMessageTime:   window.MaxMessageTime,
	}, nil
}

func (m *MockAdapter) BaseTaskTypeName() string {
	if m.TaskTypeName != "" {
		return m.TaskTypeName
	}
	return "index_mock"
}

func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return nil
}
