package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	supervisor "github.com/demo-kratia/druid"
)

func newTestAdapter(multiTopic bool) *Adapter {
	return NewWithClient(Config{Brokers: []string{"localhost:9092"}, MultiTopic: multiTopic}, nil)
}

func TestGroupIDFor_SingleTopicUsesOrdinalModulo(t *testing.T) {
	a := newTestAdapter(false)

	for id := int32(0); id < 12; id++ {
		p := supervisor.Partition{Stream: "events", ID: id}
		assert.Equal(t, int(id)%3, a.GroupIDFor(p, 3))
	}
}

func TestGroupIDFor_IsPureAndStable(t *testing.T) {
	a := newTestAdapter(true)
	p := supervisor.Partition{Stream: "events", ID: 7}

	first := a.GroupIDFor(p, 5)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, a.GroupIDFor(p, 5))
	}

	// A fresh adapter must agree, as a restarted supervisor would.
	assert.Equal(t, first, newTestAdapter(true).GroupIDFor(p, 5))
}

func TestGroupIDFor_MultiTopicStaysInRange(t *testing.T) {
	a := newTestAdapter(true)

	for _, topic := range []string{"events", "clicks", "impressions", "a-very-long-topic-name"} {
		for id := int32(0); id < 16; id++ {
			got := a.GroupIDFor(supervisor.Partition{Stream: topic, ID: id}, 4)
			assert.GreaterOrEqual(t, got, 0)
			assert.Less(t, got, 4)
		}
	}
}

func TestHash31_PinnedValues(t *testing.T) {
	// Pinned outputs of the fixed mixing function. If these change,
	// multi-topic group assignment changes under running deployments.
	assert.Equal(t, int32(0), hash31(""))
	assert.Equal(t, int32(97), hash31("a"))
	assert.Equal(t, int32(96354), hash31("abc"))
	assert.Equal(t, int32(-141622002), hash31("events-topic-with-a-longer-name"))
}

func TestWrapOffset_MapsSentinels(t *testing.T) {
	a := newTestAdapter(false)

	assert.True(t, a.WrapOffset(a.NotSetMarker(), false).IsUnset())
	assert.True(t, a.WrapOffset(a.EndOfPartitionMarker(), false).IsEndOfPartition())
	assert.Equal(t, supervisor.SequenceOf(55), a.WrapOffset(55, false))
}

func TestShardSemantics_AlwaysFalseForKafka(t *testing.T) {
	a := newTestAdapter(false)

	assert.False(t, a.IsEndOfShard(supervisor.EndOfPartitionSequence()))
	assert.False(t, a.IsShardExpired(supervisor.SequenceOf(1)))
	assert.False(t, a.UsesExclusiveStartForContinuation())
}

func TestBuildTaskIOConfig_CarriesCheckpointsInOrder(t *testing.T) {
	a := newTestAdapter(false)
	p0 := supervisor.Partition{Stream: "events", ID: 0}

	history := supervisor.NewCheckpointHistory()
	require.NoError(t, history.Append(supervisor.Checkpoint{SequenceID: 0, Offsets: supervisor.OffsetMap{p0: supervisor.SequenceOf(10)}}))
	require.NoError(t, history.Append(supervisor.Checkpoint{SequenceID: 1, Offsets: supervisor.OffsetMap{p0: supervisor.SequenceOf(20)}}))

	group := &supervisor.TaskGroup{
		ID:               0,
		BaseSequenceName: "index_kafka_pageviews_0",
		StartOffsets:     supervisor.OffsetMap{p0: supervisor.SequenceOf(10)},
		Checkpoints:      history,
	}
	window := supervisor.TimeWindow{MinMessageTime: time.Unix(1000, 0)}

	ioCfg, err := a.BuildTaskIOConfig(group, group.StartOffsets, nil, window)

	require.NoError(t, err)
	assert.Equal(t, "events", ioCfg.Stream)
	assert.Equal(t, "index_kafka_pageviews_0", ioCfg.BaseSequenceName)
	assert.Equal(t, window.MinMessageTime, ioCfg.MinMessageTime)
	assert.Equal(t, "localhost:9092", ioCfg.ConsumerProps["bootstrap.servers"])

	var entries []struct {
		SequenceID int `json:"sequenceId"`
	}
	require.NoError(t, json.Unmarshal(ioCfg.Checkpoints, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].SequenceID)
	assert.Equal(t, 1, entries[1].SequenceID)
}

func TestBaseTaskTypeName(t *testing.T) {
	assert.Equal(t, "index_kafka", newTestAdapter(false).BaseTaskTypeName())
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")

	require.NoError(t, err)
	assert.Equal(t, "druid-supervisor", cfg.ClientID)
	assert.NotZero(t, cfg.MetadataTimeout)
	assert.NotZero(t, cfg.PollTimeout)
}
