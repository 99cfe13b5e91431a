package supervisor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DataSourceName identifies the datasource a supervisor ingests into.
// One supervisor instance manages exactly one datasource.
type DataSourceName string

// Partition identifies one independently-ordered subdivision of a stream.
// Immutable once discovered.
type Partition struct {
	// Stream is the stream (topic) the partition belongs to.
	Stream string

	// ID is the partition's ordinal within the stream (0-indexed).
	ID int32
}

// Key returns the canonical string form "stream/id", used as a map key in
// serialized offset maps.
func (p Partition) Key() string {
	return fmt.Sprintf("%s/%d", p.Stream, p.ID)
}

func (p Partition) String() string { return p.Key() }

// ParsePartitionKey inverts Partition.Key.
func ParsePartitionKey(key string) (Partition, error) {
	idx := strings.LastIndex(key, "/")
	if idx <= 0 || idx == len(key)-1 {
		return Partition{}, fmt.Errorf("malformed partition key %q", key)
	}
	id, err := strconv.ParseInt(key[idx+1:], 10, 32)
	if err != nil {
		return Partition{}, fmt.Errorf("malformed partition key %q: %w", key, err)
	}
	return Partition{Stream: key[:idx], ID: int32(id)}, nil
}

// OffsetMap records one SequenceNumber per partition.
type OffsetMap map[Partition]SequenceNumber

// Clone returns a shallow copy of the map.
func (m OffsetMap) Clone() OffsetMap {
	if m == nil {
		return nil
	}
	out := make(OffsetMap, len(m))
	for p, s := range m {
		out[p] = s
	}
	return out
}

// Equal reports whether both maps hold the same partitions at equal
// positions. Exclusivity flags are ignored, matching SequenceNumber.Equal.
func (m OffsetMap) Equal(other OffsetMap) bool {
	if len(m) != len(other) {
		return false
	}
	for p, s := range m {
		o, ok := other[p]
		if !ok || !s.Equal(o) {
			return false
		}
	}
	return true
}

// Partitions returns the partition set, sorted by key for determinism.
func (m OffsetMap) Partitions() []Partition {
	out := make([]Partition, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// MarshalJSON encodes the map as {"stream/id": rawOffset}, using the raw
// sentinel encoding so durable metadata stays compact.
func (m OffsetMap) MarshalJSON() ([]byte, error) {
	raw := make(map[string]int64, len(m))
	for p, s := range m {
		raw[p.Key()] = s.Raw()
	}
	return json.Marshal(raw)
}

// UnmarshalJSON inverts MarshalJSON.
func (m *OffsetMap) UnmarshalJSON(data []byte) error {
	var raw map[string]int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(OffsetMap, len(raw))
	for key, off := range raw {
		p, err := ParsePartitionKey(key)
		if err != nil {
			return err
		}
		out[p] = WrapSequence(off, false)
	}
	*m = out
	return nil
}

// TimeWindow bounds the message timestamps a task group will ingest.
// Zero bounds mean unbounded on that side.
type TimeWindow struct {
	MinMessageTime time.Time
	MaxMessageTime time.Time
}

// Checkpoint is one supervisor-recorded snapshot of a task group's
// per-partition progress, identified by an ascending sequence id.
type Checkpoint struct {
	SequenceID int
	Offsets    OffsetMap
}

// CheckpointHistory is the append-only, ascending-by-id record of a task
// group's checkpoints, with an index by id for O(1) lookup. Iteration
// order is the append order; tasks must replay checkpoints in this order,
// so the ordering is a correctness requirement, not cosmetic.
type CheckpointHistory struct {
	ordered []Checkpoint
	byID    map[int]int // sequence id -> index into ordered

	// high is the per-partition maximum across all appended
	// checkpoints. A checkpoint may omit partitions it has nothing new
	// for, so monotonicity must be judged against the whole history,
	// not only the latest entry.
	high OffsetMap
}

// NewCheckpointHistory returns an empty history.
func NewCheckpointHistory() *CheckpointHistory {
	return &CheckpointHistory{byID: make(map[int]int), high: make(OffsetMap)}
}

// Append records a checkpoint. The sequence id must be strictly greater
// than every previously appended id.
func (h *CheckpointHistory) Append(cp Checkpoint) error {
	if n := len(h.ordered); n > 0 && cp.SequenceID <= h.ordered[n-1].SequenceID {
		return fmt.Errorf("checkpoint sequence id %d not after %d: %w",
			cp.SequenceID, h.ordered[n-1].SequenceID, ErrCheckpointOutOfOrder)
	}
	h.byID[cp.SequenceID] = len(h.ordered)
	h.ordered = append(h.ordered, Checkpoint{SequenceID: cp.SequenceID, Offsets: cp.Offsets.Clone()})
	for p, seq := range cp.Offsets {
		if cur, ok := h.high[p]; ok {
			h.high[p] = cur.Max(seq)
		} else {
			h.high[p] = seq
		}
	}
	return nil
}

// HighWater returns a copy of the per-partition maximum offset across
// every appended checkpoint.
func (h *CheckpointHistory) HighWater() OffsetMap {
	return h.high.Clone()
}

// Get returns the checkpoint with the given sequence id.
func (h *CheckpointHistory) Get(sequenceID int) (Checkpoint, bool) {
	idx, ok := h.byID[sequenceID]
	if !ok {
		return Checkpoint{}, false
	}
	return h.ordered[idx], true
}

// Latest returns the most recently appended checkpoint.
func (h *CheckpointHistory) Latest() (Checkpoint, bool) {
	if len(h.ordered) == 0 {
		return Checkpoint{}, false
	}
	return h.ordered[len(h.ordered)-1], true
}

// All returns the checkpoints in append order.
func (h *CheckpointHistory) All() []Checkpoint {
	out := make([]Checkpoint, len(h.ordered))
	copy(out, h.ordered)
	return out
}

// Len returns the number of recorded checkpoints.
func (h *CheckpointHistory) Len() int { return len(h.ordered) }

// MarshalJSON encodes the history as an ordered array of
// {sequenceId, offsets} objects. Tasks replay these in array order.
func (h *CheckpointHistory) MarshalJSON() ([]byte, error) {
	type entry struct {
		SequenceID int       `json:"sequenceId"`
		Offsets    OffsetMap `json:"offsets"`
	}
	entries := make([]entry, len(h.ordered))
	for i, cp := range h.ordered {
		entries[i] = entry{SequenceID: cp.SequenceID, Offsets: cp.Offsets}
	}
	return json.Marshal(entries)
}

// GroupPhase is the lifecycle phase of a task group.
type GroupPhase string

const (
	// GroupPhaseConsuming indicates the group's replicas are reading
	// records and reporting checkpoints.
	GroupPhaseConsuming GroupPhase = "consuming"

	// GroupPhaseFinishing indicates the group's offset range is closed
	// after its task duration elapsed; its tasks are winding down and
	// the range publishes once they finish.
	GroupPhaseFinishing GroupPhase = "finishing"

	// GroupPhasePublishing indicates the group's final checkpoint is
	// frozen and awaiting a transactional metadata publish.
	GroupPhasePublishing GroupPhase = "publishing"

	// GroupPhaseRetired indicates the group's offsets are durably
	// published; the group awaits destruction.
	GroupPhaseRetired GroupPhase = "retired"
)

// TaskGroup is the unit of consumption: a fixed set of partitions read by
// 1..N replica tasks over one offset range. Partitions in a group are
// disjoint from every other active group's partitions.
type TaskGroup struct {
	// ID is the group id, derived deterministically from partition
	// identity so a restarted supervisor reattaches to the same groups.
	ID int

	// BaseSequenceName names the replica cohort; task ids derive from it.
	BaseSequenceName string

	// StartOffsets is where each partition's consumption begins.
	StartOffsets OffsetMap

	// EndOffsets closes the range once the final checkpoint freezes it;
	// nil while the range is open.
	EndOffsets OffsetMap

	// ExclusiveStartPartitions marks partitions whose start offset was
	// already consumed by a predecessor group.
	ExclusiveStartPartitions map[Partition]bool

	// Window bounds message timestamps for this group's tasks.
	Window TimeWindow

	// Checkpoints is the group's ascending checkpoint history.
	Checkpoints *CheckpointHistory

	// Phase is the group's lifecycle phase.
	Phase GroupPhase

	// TaskIDs are the ids of the group's replica tasks, in creation order.
	TaskIDs []string

	// CreatedAt is when the group was formed.
	CreatedAt time.Time
}

// Partitions returns the group's partition set, sorted by key.
func (g *TaskGroup) Partitions() []Partition {
	return g.StartOffsets.Partitions()
}

// TaskStatus is the externally observed state of one replica task.
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"

	// TaskStatusUnknown is reported when a status query times out or
	// fails in transport. It is requeried on the next tick, never fatal.
	TaskStatusUnknown TaskStatus = "unknown"
)

// Task is one running consumer replica.
type Task struct {
	ID               string     `json:"id"`
	GroupID          int        `json:"groupId"`
	BaseSequenceName string     `json:"baseSequenceName"`
	Status           TaskStatus `json:"status"`
	StartedAt        time.Time  `json:"startedAt,omitzero"`
}

// TaskIOConfig is the input a created task needs to consume its group's
// range. Constructed by the stream adapter; opaque to the engine beyond
// these fields.
type TaskIOConfig struct {
	GroupID          int               `json:"groupId"`
	BaseSequenceName string            `json:"baseSequenceName"`
	Stream           string            `json:"stream"`
	StartOffsets     OffsetMap         `json:"startOffsets"`
	EndOffsets       OffsetMap         `json:"endOffsets,omitempty"`
	ExclusiveStart   []string          `json:"exclusiveStartPartitions,omitempty"`
	MinMessageTime   time.Time         `json:"minimumMessageTime,omitzero"`
	MaxMessageTime   time.Time         `json:"maximumMessageTime,omitzero"`
	ConsumerProps    map[string]string `json:"consumerProperties,omitempty"`

	// Checkpoints is the serialized ascending checkpoint history the task
	// replays on startup.
	Checkpoints json.RawMessage `json:"checkpoints,omitempty"`
}

// TaskTuningConfig carries engine-agnostic task tuning knobs, passed
// through to the task-management layer unmodified.
type TaskTuningConfig struct {
	MaxRowsInMemory int           `json:"maxRowsInMemory,omitempty"`
	PollTimeout     time.Duration `json:"pollTimeout,omitempty"`
}

// DataSourceMetadata is the durable record of the last successfully
// published offsets for a datasource. Owned by the metadata store; the
// supervisor reads it and proposes compare-and-swap advances, never
// mutating it in place.
type DataSourceMetadata struct {
	DataSource DataSourceName `json:"dataSource"`
	Stream     string         `json:"stream"`
	Offsets    OffsetMap      `json:"offsets"`
}

// Matches reports whether the metadata belongs to this supervisor's
// datasource and stream. Foreign metadata is ignored for reconciliation,
// never adopted.
func (m DataSourceMetadata) Matches(dataSource DataSourceName, stream string) bool {
	return m.DataSource == dataSource && m.Stream == stream
}
