// Package coordinator tracks per-group offset checkpoints, enforces
// their monotonicity, and drives the exactly-once metadata publish.
package coordinator

import (
	"fmt"
	"log/slog"
	"sync"

	supervisor "github.com/demo-kratia/druid"
	"github.com/demo-kratia/druid/stream"
)

// Config holds configuration for the Coordinator.
type Config struct {
	// Adapter supplies shard-closure classification (required).
	Adapter stream.Adapter

	// Logger is for observability (optional).
	Logger *slog.Logger
}

// Coordinator owns the active task groups and their checkpoint state.
// All group and checkpoint access goes through one mutex so a tick's
// read of "current assignment + checkpoints" is a consistent snapshot
// even while task callbacks arrive concurrently.
type Coordinator struct {
	config Config

	mu     sync.Mutex
	groups map[int]*supervisor.TaskGroup
}

// New creates a Coordinator with no active groups.
func New(cfg Config) *Coordinator {
	return &Coordinator{
		config: cfg,
		groups: make(map[int]*supervisor.TaskGroup),
	}
}

// AddGroup registers a newly formed task group. The group's partitions
// must be disjoint from every active group's partitions.
func (c *Coordinator) AddGroup(group *supervisor.TaskGroup) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.groups[group.ID]; ok {
		return fmt.Errorf("group %d already active", group.ID)
	}
	for _, existing := range c.groups {
		for p := range group.StartOffsets {
			if _, clash := existing.StartOffsets[p]; clash {
				return fmt.Errorf("partition %s already assigned to group %d", p, existing.ID)
			}
		}
	}
	if group.Checkpoints == nil {
		group.Checkpoints = supervisor.NewCheckpointHistory()
	}
	if group.Phase == "" {
		group.Phase = supervisor.GroupPhaseConsuming
	}
	c.groups[group.ID] = group
	return nil
}

// RemoveGroup drops a group, whether retired or abandoned.
func (c *Coordinator) RemoveGroup(groupID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.groups, groupID)
}

// Group returns the group with the given id.
func (c *Coordinator) Group(groupID int) (*supervisor.TaskGroup, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[groupID]
	return g, ok
}

// Groups returns the active groups, in no particular order.
func (c *Coordinator) Groups() []*supervisor.TaskGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*supervisor.TaskGroup, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, g)
	}
	return out
}

// AssignedPartitions returns the union of all active groups' partitions.
func (c *Coordinator) AssignedPartitions() map[supervisor.Partition]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[supervisor.Partition]int)
	for id, g := range c.groups {
		for p := range g.StartOffsets {
			out[p] = id
		}
	}
	return out
}

// RecordCheckpoint merges one task's checkpoint report into its group.
//
// Acceptance rules:
//   - A report at an already-recorded sequence id must equal the
//     recorded offsets; a mismatch is replica divergence and the
//     reporting task must be killed (ErrReplicaDivergence).
//   - A report at a new sequence id must be >= the last recorded offset
//     for every partition it covers; any regression is fatal for the
//     reporting task (ErrCheckpointRegression).
//
// Equal offsets are not a regression: a report repeating the previous
// position is accepted.
func (c *Coordinator) RecordCheckpoint(groupID int, taskID string, sequenceID int, offsets supervisor.OffsetMap) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	group, ok := c.groups[groupID]
	if !ok {
		return fmt.Errorf("record checkpoint for group %d: %w", groupID, supervisor.ErrGroupNotFound)
	}

	if recorded, ok := group.Checkpoints.Get(sequenceID); ok {
		for p, seq := range offsets {
			prev, ok := recorded.Offsets[p]
			if !ok || !prev.Equal(seq) {
				return fmt.Errorf("task %s at checkpoint %d reports %s=%s, recorded %s: %w",
					taskID, sequenceID, p, seq, prev, supervisor.ErrReplicaDivergence)
			}
		}
		return nil
	}

	// A checkpoint may omit partitions, so the floor for each partition
	// is the high-water mark across the whole history, not the latest
	// entry alone.
	high := group.Checkpoints.HighWater()
	for p, seq := range offsets {
		prev, ok := high[p]
		if ok && seq.Compare(prev) < 0 {
			return fmt.Errorf("task %s reports %s=%s below recorded %s: %w",
				taskID, p, seq, prev, supervisor.ErrCheckpointRegression)
		}
	}

	if err := group.Checkpoints.Append(supervisor.Checkpoint{SequenceID: sequenceID, Offsets: offsets}); err != nil {
		return err
	}

	if c.config.Logger != nil {
		c.config.Logger.Debug("checkpoint recorded",
			"group", groupID, "task", taskID, "sequenceId", sequenceID)
	}
	return nil
}

// HighestRecordedOffsets returns, per partition, the highest offset any
// active group has checkpointed. Used for lag computation.
func (c *Coordinator) HighestRecordedOffsets() supervisor.OffsetMap {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(supervisor.OffsetMap)
	for _, g := range c.groups {
		high := g.Checkpoints.HighWater()
		for p, cur := range g.StartOffsets {
			if seq, reported := high[p]; reported {
				cur = cur.Max(seq)
			}
			if best, have := out[p]; !have || cur.Compare(best) > 0 {
				out[p] = cur
			}
		}
	}
	return out
}

// FreezeIfComplete freezes the group's final checkpoint as its publish
// target once every partition has reached end of partition, end of
// shard, or shard expiration, and moves the group to the publishing
// phase. Returns true when the group is ready to publish.
func (c *Coordinator) FreezeIfComplete(groupID int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	group, ok := c.groups[groupID]
	if !ok {
		return false, fmt.Errorf("freeze group %d: %w", groupID, supervisor.ErrGroupNotFound)
	}
	if group.Phase != supervisor.GroupPhaseConsuming {
		return group.Phase == supervisor.GroupPhasePublishing, nil
	}

	if group.Checkpoints.Len() == 0 {
		return false, nil
	}
	high := group.Checkpoints.HighWater()
	for p := range group.StartOffsets {
		seq, reported := high[p]
		if !reported {
			return false, nil
		}
		done := seq.IsEndOfPartition() ||
			c.config.Adapter.IsEndOfShard(seq) ||
			c.config.Adapter.IsShardExpired(seq)
		if !done {
			return false, nil
		}
	}

	group.EndOffsets = high
	group.Phase = supervisor.GroupPhasePublishing
	if c.config.Logger != nil {
		c.config.Logger.Info("task group frozen for publish", "group", groupID)
	}
	return true, nil
}

// BeginHandoff closes a consuming group's offset range at its highest
// recorded progress and moves it to the finishing phase: its tasks wind
// down and the range publishes once they are done. No-op for groups
// already past consuming.
func (c *Coordinator) BeginHandoff(groupID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	group, ok := c.groups[groupID]
	if !ok {
		return fmt.Errorf("hand off group %d: %w", groupID, supervisor.ErrGroupNotFound)
	}
	if group.Phase != supervisor.GroupPhaseConsuming {
		return nil
	}

	end := group.StartOffsets.Clone()
	for p, seq := range group.Checkpoints.HighWater() {
		if cur, ok := end[p]; ok {
			end[p] = cur.Max(seq)
		} else {
			end[p] = seq
		}
	}
	group.EndOffsets = end
	group.Phase = supervisor.GroupPhaseFinishing
	if c.config.Logger != nil {
		c.config.Logger.Info("task group handed off",
			"group", groupID, "partitions", len(end))
	}
	return nil
}

// CompleteHandoff moves a finishing group whose tasks are done to the
// publishing phase. Returns true when the group is ready to publish.
func (c *Coordinator) CompleteHandoff(groupID int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	group, ok := c.groups[groupID]
	if !ok {
		return false, fmt.Errorf("complete handoff of group %d: %w", groupID, supervisor.ErrGroupNotFound)
	}
	switch group.Phase {
	case supervisor.GroupPhasePublishing:
		return true, nil
	case supervisor.GroupPhaseFinishing:
		group.Phase = supervisor.GroupPhasePublishing
		return true, nil
	default:
		return false, nil
	}
}

// ExtendGroup adds newly discovered partitions to an active group's
// range. Partitions the group already covers keep their start offsets.
func (c *Coordinator) ExtendGroup(groupID int, start supervisor.OffsetMap) {
	c.mu.Lock()
	defer c.mu.Unlock()

	group, ok := c.groups[groupID]
	if !ok || group.Phase != supervisor.GroupPhaseConsuming {
		return
	}
	for p, seq := range start {
		if _, ok := group.StartOffsets[p]; !ok {
			group.StartOffsets[p] = seq
		}
	}
}

// ResumePoint reconciles durable metadata with currently running tasks'
// self-reported progress after a supervisor restart, taking the
// per-partition maximum of the two. This protects against a crash
// between a task completing and the supervisor recording it.
func ResumePoint(durable, reported supervisor.OffsetMap) supervisor.OffsetMap {
	out := durable.Clone()
	if out == nil {
		out = make(supervisor.OffsetMap)
	}
	for p, seq := range reported {
		if cur, ok := out[p]; ok {
			out[p] = cur.Max(seq)
		} else {
			out[p] = seq
		}
	}
	return out
}
