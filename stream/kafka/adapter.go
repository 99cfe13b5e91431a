// Package kafka implements the stream.Adapter contract on top of a
// sarama client. Kafka partitions never close or expire, so the sharded
// stream hooks always answer false, and time lag is not computable from
// Kafka offset metadata.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/IBM/sarama"

	supervisor "github.com/demo-kratia/druid"
	"github.com/demo-kratia/druid/stream"
)

// Adapter is the Kafka stream adapter.
type Adapter struct {
	cfg    Config
	client sarama.Client

	mu        sync.Mutex
	positions map[supervisor.Partition]int64
}

// Compile-time check that Adapter implements stream.Adapter.
var _ stream.Adapter = (*Adapter)(nil)

// New dials the brokers and returns a ready adapter.
func New(cfg Config) (*Adapter, error) {
	applyDefaults(&cfg)

	ver, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("kafka version: %w", err)
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.ClientID = cfg.ClientID
	sc.Metadata.Timeout = cfg.MetadataTimeout
	if cfg.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if cfg.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = cfg.SASLUser, cfg.SASLPass
	}

	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return NewWithClient(cfg, client), nil
}

// NewWithClient wraps an existing sarama client. The adapter takes
// ownership and closes it on Close.
func NewWithClient(cfg Config, client sarama.Client) *Adapter {
	applyDefaults(&cfg)
	return &Adapter{
		cfg:       cfg,
		client:    client,
		positions: make(map[supervisor.Partition]int64),
	}
}

// topicsOf splits a logical stream name into its topics. With MultiTopic
// disabled the stream is one topic.
func (a *Adapter) topicsOf(streamName string) []string {
	if !a.cfg.MultiTopic {
		return []string{streamName}
	}
	parts := strings.Split(streamName, ",")
	topics := make([]string, 0, len(parts))
	for _, t := range parts {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// ListPartitions returns the current partition set of the stream's
// topic(s), refreshing broker metadata first so newly added partitions
// are visible.
func (a *Adapter) ListPartitions(ctx context.Context, streamName string) ([]supervisor.Partition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	topics := a.topicsOf(streamName)
	if err := a.client.RefreshMetadata(topics...); err != nil {
		return nil, fmt.Errorf("refresh metadata for %q: %w", streamName, err)
	}

	var out []supervisor.Partition
	for _, topic := range topics {
		ids, err := a.client.Partitions(topic)
		if err != nil {
			return nil, fmt.Errorf("list partitions for topic %q: %w", topic, err)
		}
		for _, id := range ids {
			out = append(out, supervisor.Partition{Stream: topic, ID: id})
		}
	}
	return out, nil
}

// SeekToLatest records the newest available offset for each partition.
func (a *Adapter) SeekToLatest(ctx context.Context, partitions []supervisor.Partition) error {
	latest := make(map[supervisor.Partition]int64, len(partitions))
	for _, p := range partitions {
		if err := ctx.Err(); err != nil {
			return err
		}
		off, err := a.client.GetOffset(p.Stream, p.ID, sarama.OffsetNewest)
		if err != nil {
			return fmt.Errorf("get latest offset for %s: %w", p, err)
		}
		latest[p] = off
	}

	a.mu.Lock()
	for p, off := range latest {
		a.positions[p] = off
	}
	a.mu.Unlock()
	return nil
}

// PositionOf returns the offset recorded by the last SeekToLatest.
func (a *Adapter) PositionOf(partition supervisor.Partition) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	off, ok := a.positions[partition]
	if !ok {
		return 0, fmt.Errorf("no position recorded for %s", partition)
	}
	return off, nil
}

// GroupIDFor maps a partition to a task-group id. Single-topic streams
// use the partition ordinal mod groupCount. Multi-topic streams fold the
// topic name in with a fixed 31-multiplier string hash (the documented
// mixing function; tests pin its outputs) so the result is reproducible
// across processes.
func (a *Adapter) GroupIDFor(partition supervisor.Partition, groupCount int) int {
	if a.cfg.MultiTopic {
		h := 31*hash31(partition.Stream) + int32(partition.ID)
		if h < 0 {
			h = -h
		}
		if h < 0 { // math.MinInt32 negates to itself
			h = 0
		}
		return int(h) % groupCount
	}
	return int(partition.ID) % groupCount
}

// hash31 is the 31-multiplier string hash over UTF-16 code units,
// wrapping at 32 bits. Changing it would silently rebalance every
// multi-topic deployment.
func hash31(s string) int32 {
	var h int32
	for _, r := range s {
		if r > 0xFFFF {
			r -= 0x10000
			h = 31*h + int32(0xD800+(r>>10))
			h = 31*h + int32(0xDC00+(r&0x3FF))
			continue
		}
		h = 31*h + int32(r)
	}
	return h
}

// WrapOffset converts a raw Kafka offset to a SequenceNumber.
func (a *Adapter) WrapOffset(raw int64, exclusive bool) supervisor.SequenceNumber {
	return supervisor.WrapSequence(raw, exclusive)
}

func (a *Adapter) NotSetMarker() int64 { return supervisor.RawNotSet }

func (a *Adapter) EndOfPartitionMarker() int64 { return supervisor.RawEndOfPartition }

// IsEndOfShard always answers false: Kafka partitions never close.
func (a *Adapter) IsEndOfShard(supervisor.SequenceNumber) bool { return false }

// IsShardExpired always answers false: Kafka partitions never expire.
func (a *Adapter) IsShardExpired(supervisor.SequenceNumber) bool { return false }

// UsesExclusiveStartForContinuation answers false: Kafka end offsets are
// already exclusive, so a continuation starts at (not after) its start.
func (a *Adapter) UsesExclusiveStartForContinuation() bool { return false }

// TimeLag returns nil: Kafka offsets carry no record timestamps, so
// time lag is not computed for this stream type.
func (a *Adapter) TimeLag(map[supervisor.Partition]int64, supervisor.OffsetMap) map[supervisor.Partition]int64 {
	return nil
}

// BuildTaskIOConfig assembles the I/O config handed to each created
// task, embedding the serialized checkpoint history in ascending order.
func (a *Adapter) BuildTaskIOConfig(group *supervisor.TaskGroup, start, end supervisor.OffsetMap, window supervisor.TimeWindow) (supervisor.TaskIOConfig, error) {
	var checkpoints json.RawMessage
	if group.Checkpoints != nil && group.Checkpoints.Len() > 0 {
		data, err := json.Marshal(group.Checkpoints)
		if err != nil {
			return supervisor.TaskIOConfig{}, fmt.Errorf("serialize checkpoints: %w", err)
		}
		checkpoints = data
	}

	var exclusive []string
	for p, ok := range group.ExclusiveStartPartitions {
		if ok {
			exclusive = append(exclusive, p.Key())
		}
	}

	return supervisor.TaskIOConfig{
		GroupID:          group.ID,
		BaseSequenceName: group.BaseSequenceName,
		Stream:           streamNameOf(start),
		StartOffsets:     start.Clone(),
		EndOffsets:       end.Clone(),
		ExclusiveStart:   exclusive,
		MinMessageTime:   window.MinMessageTime,
		MaxMessageTime:   window.MaxMessageTime,
		ConsumerProps:    a.consumerProps(),
		Checkpoints:      checkpoints,
	}, nil
}

func (a *Adapter) consumerProps() map[string]string {
	props := map[string]string{
		"bootstrap.servers": strings.Join(a.cfg.Brokers, ","),
	}
	if a.cfg.TLSEn {
		props["security.protocol"] = "SSL"
	}
	return props
}

func streamNameOf(offsets supervisor.OffsetMap) string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range offsets.Partitions() {
		if !seen[p.Stream] {
			seen[p.Stream] = true
			names = append(names, p.Stream)
		}
	}
	return strings.Join(names, ",")
}

func (a *Adapter) BaseTaskTypeName() string { return "index_kafka" }

// Close releases the sarama client.
func (a *Adapter) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}
