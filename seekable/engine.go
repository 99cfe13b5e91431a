// Package seekable implements the periodic run loop that supervises a
// fleet of stream-indexing tasks: discovering partitions, forming
// deterministic task groups, keeping replica counts at target,
// coordinating checkpoints, and publishing consumed ranges through the
// metadata store exactly once.
package seekable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	supervisor "github.com/demo-kratia/druid"
	"github.com/demo-kratia/druid/coordinator"
	"github.com/demo-kratia/druid/lag"
	"github.com/demo-kratia/druid/lifecycle"
	"github.com/demo-kratia/druid/metrics"
	"github.com/demo-kratia/druid/store"
	"github.com/demo-kratia/druid/stream"
	"github.com/demo-kratia/druid/task"
)

// Config holds configuration for the Engine.
type Config struct {
	// DataSource is the datasource this supervisor manages (required).
	DataSource supervisor.DataSourceName

	// Stream is the source stream identity; for multi-topic adapters a
	// comma-separated list (required).
	Stream string

	// Adapter is the stream-specific adapter (required).
	Adapter stream.Adapter

	// TaskClient talks to the external task runtime (required).
	TaskClient task.Client

	// Store is the durable metadata store (required).
	Store store.MetadataStore

	// TaskCount is the number of task groups the partition space folds
	// into (default: 1).
	TaskCount int

	// Replicas is the replica count per group (default: 1).
	Replicas int

	// TaskDuration is how long a group consumes before it is asked to
	// checkpoint, finish, and hand over to a successor (default: 1h).
	TaskDuration time.Duration

	// TickPeriod is the run-loop period (default: 30s).
	TickPeriod time.Duration

	// StatusTimeout bounds each task status call (default: 10s).
	StatusTimeout time.Duration

	// UnhealthyThreshold is how many consecutive failed ticks mark the
	// supervisor unhealthy (default: 3).
	UnhealthyThreshold int

	// Tuning is passed through to created tasks.
	Tuning supervisor.TaskTuningConfig

	// Logger is for observability (optional).
	Logger *slog.Logger

	// Metrics is the pre-labelled metrics collector (optional).
	Metrics *metrics.Collector
}

// Engine is the run-loop supervisor. It implements
// supervisor.Supervisor; the stream-specific behavior is delegated
// entirely to the configured adapter.
type Engine struct {
	config Config

	coord     *coordinator.Coordinator
	publisher *coordinator.Publisher
	tasks     *lifecycle.Manager
	lagTrack  *lag.Tracker
	state     *stateManager

	mu        sync.Mutex
	started   bool
	suspended bool
	cancel    context.CancelFunc
	done      chan struct{}

	// assignments maps every discovered partition to its group id for
	// the lifetime of the supervisor. Group-count changes never remap a
	// partition that was already assigned.
	assignments map[supervisor.Partition]int

	// resumeOffsets seeds new groups, reconciled from durable metadata
	// at start and advanced by committed publishes.
	resumeOffsets supervisor.OffsetMap

	// adopted holds cohorts of tasks found still running at start,
	// keyed by group id. Consumed by reconcileGroups when the group
	// forms; accessed only on the run-loop goroutine after Start.
	adopted map[int]*adoptedCohort

	// supplierMu serializes access to the adapter's shared client
	// handle across ListPartitions, SeekToLatest and PositionOf.
	supplierMu sync.Mutex

	lagStats     supervisor.LagStats
	partitionLag map[supervisor.Partition]int64
	timeLag      map[supervisor.Partition]int64
}

// adoptedCohort is a replica set discovered still running at startup.
// The forming group takes over the cohort's base sequence name so the
// adopted tasks' checkpoint reports stay attributable.
type adoptedCohort struct {
	baseSequenceName string
	taskIDs          []string
}

// New creates an Engine with the given configuration. Applies default
// values for TaskCount, Replicas, TaskDuration, TickPeriod and
// StatusTimeout if not set.
func New(cfg Config) (*Engine, error) {
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("adapter is required")
	}
	if cfg.TaskClient == nil {
		return nil, fmt.Errorf("task client is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if cfg.DataSource == "" {
		return nil, fmt.Errorf("data source is required")
	}
	if cfg.Stream == "" {
		return nil, fmt.Errorf("stream is required")
	}

	if cfg.TaskCount == 0 {
		cfg.TaskCount = 1
	}
	if cfg.Replicas == 0 {
		cfg.Replicas = 1
	}
	if cfg.TaskDuration == 0 {
		cfg.TaskDuration = time.Hour
	}
	if cfg.TickPeriod == 0 {
		cfg.TickPeriod = 30 * time.Second
	}
	if cfg.StatusTimeout == 0 {
		cfg.StatusTimeout = 10 * time.Second
	}

	e := &Engine{
		config: cfg,
		coord: coordinator.New(coordinator.Config{
			Adapter: cfg.Adapter,
			Logger:  cfg.Logger,
		}),
		publisher: coordinator.NewPublisher(coordinator.PublisherConfig{
			Store:      cfg.Store,
			DataSource: cfg.DataSource,
			Stream:     cfg.Stream,
			Logger:     cfg.Logger,
		}),
		tasks: lifecycle.New(lifecycle.Config{
			Client:        cfg.TaskClient,
			Adapter:       cfg.Adapter,
			Replicas:      cfg.Replicas,
			StatusTimeout: cfg.StatusTimeout,
			Tuning:        cfg.Tuning,
			Logger:        cfg.Logger,
		}),
		lagTrack:      lag.NewTracker(),
		state:         newStateManager(cfg.UnhealthyThreshold),
		assignments:   make(map[supervisor.Partition]int),
		resumeOffsets: make(supervisor.OffsetMap),
		adopted:       make(map[int]*adoptedCohort),
	}
	return e, nil
}

// Start launches the run loop. The first tick runs immediately;
// subsequent ticks every TickPeriod.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return supervisor.ErrAlreadyStarted
	}
	e.started = true

	if err := e.restoreDurableOffsets(ctx); err != nil {
		e.started = false
		e.mu.Unlock()
		return err
	}
	if err := e.adoptRunningTasks(ctx); err != nil {
		e.started = false
		e.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.mu.Unlock()

	e.state.setState(supervisor.StateRunning, supervisor.DetailDiscoveringPartitions)
	if e.config.Logger != nil {
		e.config.Logger.Info("supervisor started",
			"dataSource", e.config.DataSource, "stream", e.config.Stream,
			"taskCount", e.config.TaskCount, "replicas", e.config.Replicas)
	}

	go e.runLoop(runCtx)
	return nil
}

// Stop cancels the run loop, waits for any in-flight tick, then asks
// every live task to checkpoint and stop so consumed-but-unpublished
// progress survives into the next supervisor's resume point.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return supervisor.ErrNotRunning
	}
	e.started = false
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	e.state.setState(supervisor.StateStopping, supervisor.DetailStopping)
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	for _, g := range e.coord.Groups() {
		e.tasks.CheckpointAndStop(ctx, g)
	}
	if err := e.config.Adapter.Close(); err != nil && e.config.Logger != nil {
		e.config.Logger.Warn("stream adapter close failed", "error", err)
	}

	e.state.setState(supervisor.StateStopped, supervisor.DetailStopping)
	if e.config.Logger != nil {
		e.config.Logger.Info("supervisor stopped", "dataSource", e.config.DataSource)
	}
	return nil
}

// Suspend freezes ingestion. Ticks keep discovering partitions and
// refreshing lag, but create no tasks and publish nothing.
func (e *Engine) Suspend() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return supervisor.ErrNotRunning
	}
	e.suspended = true
	e.state.setState(supervisor.StateSuspended, supervisor.DetailSuspended)
	if e.config.Logger != nil {
		e.config.Logger.Info("supervisor suspended", "dataSource", e.config.DataSource)
	}
	return nil
}

// Resume lifts a suspension.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return supervisor.ErrNotRunning
	}
	e.suspended = false
	e.state.setState(supervisor.StateRunning, supervisor.DetailRunning)
	if e.config.Logger != nil {
		e.config.Logger.Info("supervisor resumed", "dataSource", e.config.DataSource)
	}
	return nil
}

// Reset overwrites the durable metadata with the supplied offsets and
// tears down every active group so the next tick rebuilds from the
// fresh baseline. Administrative recovery only.
func (e *Engine) Reset(ctx context.Context, offsets supervisor.OffsetMap) error {
	if err := e.publisher.Reset(ctx, offsets); err != nil {
		return err
	}

	for _, g := range e.coord.Groups() {
		killed := e.tasks.KillAll(ctx, g, "metadata reset")
		if e.config.Metrics != nil {
			e.config.Metrics.AddTasksKilled(killed)
		}
		e.coord.RemoveGroup(g.ID)
	}

	e.mu.Lock()
	e.resumeOffsets = offsets.Clone()
	e.assignments = make(map[supervisor.Partition]int)
	e.mu.Unlock()
	return nil
}

// Status returns a point-in-time report. When includeOffsets is false
// the offset-bearing fields are omitted.
func (e *Engine) Status(includeOffsets bool) supervisor.Report {
	basic, detailed := e.state.state()

	e.mu.Lock()
	suspended := e.suspended
	stats := e.lagStats
	partLag := e.partitionLag
	timeLag := e.timeLag
	partitions := len(e.assignments)
	e.mu.Unlock()

	r := supervisor.Report{
		DataSource:       e.config.DataSource,
		Stream:           e.config.Stream,
		Partitions:       partitions,
		Replicas:         e.config.Replicas,
		TaskDurationSecs: int64(e.config.TaskDuration.Seconds()),
		Suspended:        suspended,
		Healthy:          e.state.healthy(),
		State:            basic,
		DetailedState:    detailed,
		RecentErrors:     e.state.errorHistory(),
	}

	if includeOffsets {
		if snap, ok := e.lagTrack.Load(); ok {
			latest := make(map[string]int64, len(snap.Latest))
			for p, off := range snap.Latest {
				latest[p.Key()] = off
			}
			r.LatestOffsets = latest
			r.LagUpdatedAt = snap.UpdatedAt
		}
		if partLag != nil {
			lagByKey := make(map[string]int64, len(partLag))
			for p, l := range partLag {
				lagByKey[p.Key()] = l
			}
			r.PartitionLag = lagByKey
			total := stats.TotalLag
			r.AggregateLag = &total
		}
		if timeLag != nil {
			timeByKey := make(map[string]int64, len(timeLag))
			for p, l := range timeLag {
				timeByKey[p.Key()] = l
			}
			r.PartitionTimeLag = timeByKey
			total := lag.AggregateTotal(timeLag)
			r.AggregateTimeLag = &total
		}
	}
	return r
}

// Healthy reports the supervisor's health flag.
func (e *Engine) Healthy() bool {
	return e.state.healthy()
}

// RecordCheckpoint is the callback path for task checkpoint reports. A
// divergent or regressing report kills the reporting task; its group
// is replenished on the next tick.
func (e *Engine) RecordCheckpoint(ctx context.Context, groupID int, taskID string, sequenceID int, offsets supervisor.OffsetMap) error {
	err := e.coord.RecordCheckpoint(groupID, taskID, sequenceID, offsets)
	if err == nil {
		if e.config.Metrics != nil {
			e.config.Metrics.IncCheckpointsAccepted()
		}
		return nil
	}

	if e.config.Metrics != nil {
		e.config.Metrics.IncCheckpointsRejected()
	}
	if errors.Is(err, supervisor.ErrReplicaDivergence) || errors.Is(err, supervisor.ErrCheckpointRegression) {
		if g, ok := e.coord.Group(groupID); ok {
			if killErr := e.tasks.Kill(ctx, g, taskID, err.Error()); killErr != nil && e.config.Logger != nil {
				e.config.Logger.Warn("kill of rejected task failed", "task", taskID, "error", killErr)
			} else if e.config.Metrics != nil {
				e.config.Metrics.IncTasksKilled()
			}
		}
	}
	return err
}

// restoreDurableOffsets loads the last published offsets so new groups
// resume where a previous supervisor left off. Metadata for a foreign
// stream is ignored, not adopted.
func (e *Engine) restoreDurableOffsets(ctx context.Context) error {
	meta, err := e.config.Store.ReadMetadata(ctx, e.config.DataSource)
	if errors.Is(err, store.ErrMetadataNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore durable offsets: %w", err)
	}
	if !meta.Matches(e.config.DataSource, e.config.Stream) {
		if e.config.Logger != nil {
			e.config.Logger.Warn("durable metadata belongs to another stream, starting fresh",
				"dataSource", e.config.DataSource, "stored", meta.Stream)
		}
		return nil
	}
	e.resumeOffsets = coordinator.ResumePoint(meta.Offsets, nil)
	return nil
}

// adoptRunningTasks asks the task runtime which tasks from a previous
// supervisor are still running, folds their self-reported progress into
// the resume point, and stages each cohort so reconcileGroups counts
// its tasks toward the replica target instead of duplicating them.
// Caller holds e.mu; the run loop has not started yet.
func (e *Engine) adoptRunningTasks(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, e.config.StatusTimeout)
	tasks, err := e.config.TaskClient.ListTasks(callCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("discover running tasks: %w", err)
	}

	prefix := e.config.Adapter.BaseTaskTypeName() + "_"
	for _, t := range tasks {
		if t.Status != supervisor.TaskStatusRunning {
			continue
		}
		// Tasks of another supervisor or task type are not ours to adopt.
		if !strings.HasPrefix(t.BaseSequenceName, prefix) {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, e.config.StatusTimeout)
		offsets, offErr := e.config.TaskClient.CurrentOffsets(callCtx, t.ID)
		cancel()
		if offErr != nil {
			if e.config.Logger != nil {
				e.config.Logger.Warn("offset query for running task failed, not adopting",
					"task", t.ID, "error", offErr)
			}
			continue
		}
		e.resumeOffsets = coordinator.ResumePoint(e.resumeOffsets, offsets)

		cohort, ok := e.adopted[t.GroupID]
		if !ok {
			cohort = &adoptedCohort{baseSequenceName: t.BaseSequenceName}
			e.adopted[t.GroupID] = cohort
		}
		if cohort.baseSequenceName != t.BaseSequenceName {
			// A second cohort for the same group means a replacement was
			// in flight when the previous supervisor died. Keep the first
			// cohort; the stragglers wind down on their own.
			continue
		}
		cohort.taskIDs = append(cohort.taskIDs, t.ID)
		if e.config.Logger != nil {
			e.config.Logger.Info("running task found for adoption",
				"task", t.ID, "group", t.GroupID, "baseSequenceName", t.BaseSequenceName)
		}
	}
	return nil
}

func (e *Engine) runLoop(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.config.TickPeriod)
	defer ticker.Stop()

	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick runs one pass: discovery, group reconciliation, task lifecycle,
// checkpoint/publish, lag. Failures are recorded and contained; the
// loop always survives to the next tick.
func (e *Engine) tick(ctx context.Context) {
	started := time.Now()
	if e.config.Metrics != nil {
		e.config.Metrics.IncTicks()
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("tick panic: %v", r)
			}
		}()
		return e.runTick(ctx)
	}()

	if err != nil {
		var streamErr *supervisor.StreamError
		streamRelated := errors.As(err, &streamErr)
		e.state.recordException(fmt.Sprintf("%T", err), err.Error(), streamRelated)
		if e.config.Metrics != nil {
			e.config.Metrics.IncTickFailures()
		}
		if e.config.Logger != nil {
			e.config.Logger.Error("supervisor tick failed",
				"dataSource", e.config.DataSource, "error", err)
		}
	} else {
		e.state.markTickSuccess()
	}

	if e.config.Metrics != nil {
		e.config.Metrics.SetHealthy(e.state.healthy())
		e.config.Metrics.SetActiveTasks(e.tasks.ActiveCount())
		e.config.Metrics.ObserveTickDuration(time.Since(started).Seconds())
	}
}

func (e *Engine) runTick(ctx context.Context) error {
	e.mu.Lock()
	suspended := e.suspended
	e.mu.Unlock()

	if err := e.discoverPartitions(ctx); err != nil {
		return err
	}
	e.reconcileGroups()

	if !suspended {
		if err := e.superviseTasks(ctx); err != nil {
			return err
		}
		if err := e.publishCompletedGroups(ctx); err != nil {
			return err
		}
	}

	e.refreshLag()

	if !suspended {
		e.state.setDetailed(supervisor.DetailRunning)
	}
	return nil
}

// discoverPartitions refreshes the partition set and atomically swaps
// the latest-offsets snapshot used for lag.
func (e *Engine) discoverPartitions(ctx context.Context) error {
	partitions, latest, err := e.snapshotStream(ctx)
	if err != nil {
		return err
	}
	e.lagTrack.Store(latest, time.Now())

	e.mu.Lock()
	for _, p := range partitions {
		if _, ok := e.assignments[p]; !ok {
			gid := e.config.Adapter.GroupIDFor(p, e.config.TaskCount)
			e.assignments[p] = gid
			if e.config.Logger != nil {
				e.config.Logger.Info("partition discovered",
					"partition", p.Key(), "group", gid)
			}
		}
	}
	count := len(e.assignments)
	e.mu.Unlock()

	if e.config.Metrics != nil {
		e.config.Metrics.SetPartitionCount(count)
	}
	return nil
}

// snapshotStream lists the stream's partitions and reads each one's
// latest position under the record-supplier lock. The adapter's
// ListPartitions, SeekToLatest and PositionOf share one client handle,
// so they must not interleave.
func (e *Engine) snapshotStream(ctx context.Context) ([]supervisor.Partition, map[supervisor.Partition]int64, error) {
	e.supplierMu.Lock()
	defer e.supplierMu.Unlock()

	partitions, err := e.config.Adapter.ListPartitions(ctx, e.config.Stream)
	if err != nil {
		return nil, nil, supervisor.NewStreamError(e.config.Stream, err)
	}
	if err := e.config.Adapter.SeekToLatest(ctx, partitions); err != nil {
		return nil, nil, supervisor.NewStreamError(e.config.Stream, err)
	}

	latest := make(map[supervisor.Partition]int64, len(partitions))
	for _, p := range partitions {
		pos, err := e.config.Adapter.PositionOf(p)
		if err != nil {
			return nil, nil, supervisor.NewStreamError(e.config.Stream, err)
		}
		latest[p] = pos
	}
	return partitions, latest, nil
}

// reconcileGroups makes sure every assigned partition belongs to an
// active task group, forming new groups for partitions whose group id
// has no group yet.
func (e *Engine) reconcileGroups() {
	e.mu.Lock()
	wanted := make(map[int]supervisor.OffsetMap)
	for p, gid := range e.assignments {
		if _, ok := wanted[gid]; !ok {
			wanted[gid] = make(supervisor.OffsetMap)
		}
		wanted[gid][p] = e.startOffsetFor(p)
	}
	e.mu.Unlock()

	for gid, start := range wanted {
		if _, ok := e.coord.Group(gid); ok {
			e.coord.ExtendGroup(gid, start)
			continue
		}

		group := &supervisor.TaskGroup{
			ID:               gid,
			BaseSequenceName: lifecycle.NewBaseSequenceName(e.config.Adapter.BaseTaskTypeName(), gid),
			StartOffsets:     start,
			Checkpoints:      supervisor.NewCheckpointHistory(),
			Phase:            supervisor.GroupPhaseConsuming,
			CreatedAt:        time.Now(),
			Window: supervisor.TimeWindow{
				MaxMessageTime: time.Now().Add(e.config.TaskDuration),
			},
		}
		if cohort, ok := e.adopted[gid]; ok {
			// Adopt before the group is registered so its replica set is
			// complete the first time any tick logic sees it.
			group.BaseSequenceName = cohort.baseSequenceName
			e.tasks.Adopt(group, cohort.taskIDs)
			delete(e.adopted, gid)
		}
		e.markExclusiveStarts(group)
		if err := e.coord.AddGroup(group); err != nil {
			if e.config.Logger != nil {
				e.config.Logger.Error("task group formation failed",
					"group", gid, "error", err)
			}
			continue
		}
		if e.config.Logger != nil {
			e.config.Logger.Info("task group formed",
				"group", gid, "partitions", len(start),
				"baseSequenceName", group.BaseSequenceName)
		}
	}
}

// startOffsetFor picks where a newly grouped partition begins: the
// durable resume point when one exists, otherwise the latest snapshot
// position, otherwise unset (adapter decides).
func (e *Engine) startOffsetFor(p supervisor.Partition) supervisor.SequenceNumber {
	if seq, ok := e.resumeOffsets[p]; ok {
		return seq
	}
	if snap, ok := e.lagTrack.Load(); ok {
		if pos, ok := snap.Latest[p]; ok {
			return e.config.Adapter.WrapOffset(pos, false)
		}
	}
	return supervisor.UnsetSequence()
}

// markExclusiveStarts flags partitions whose start offset continues a
// published range, for adapters that treat the continuation offset as
// already consumed.
func (e *Engine) markExclusiveStarts(group *supervisor.TaskGroup) {
	if !e.config.Adapter.UsesExclusiveStartForContinuation() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for p := range group.StartOffsets {
		if _, ok := e.resumeOffsets[p]; ok {
			if group.ExclusiveStartPartitions == nil {
				group.ExclusiveStartPartitions = make(map[supervisor.Partition]bool)
			}
			group.ExclusiveStartPartitions[p] = true
		}
	}
}

// superviseTasks keeps each consuming group's replica set at target and
// refreshes task statuses. A group past its duration hands off: its
// range is closed at the highest recorded progress, its tasks are asked
// to checkpoint and finish, and once they are done the group moves on
// to publishing instead of consuming forever.
func (e *Engine) superviseTasks(ctx context.Context) error {
	for _, g := range e.coord.Groups() {
		switch g.Phase {
		case supervisor.GroupPhaseConsuming:
			e.tasks.RefreshStatuses(ctx, g)

			if time.Since(g.CreatedAt) >= e.config.TaskDuration {
				if err := e.coord.BeginHandoff(g.ID); err != nil {
					return err
				}
				e.tasks.CheckpointAndStop(ctx, g)
				continue
			}

			created, err := e.tasks.EnsureReplicas(ctx, g)
			if err != nil {
				return err
			}
			if len(created) > 0 {
				e.state.setDetailed(supervisor.DetailCreatingTasks)
				if e.config.Metrics != nil {
					e.config.Metrics.AddTasksCreated(len(created))
				}
			}

		case supervisor.GroupPhaseFinishing:
			statuses := e.tasks.RefreshStatuses(ctx, g)
			if tasksWoundDown(statuses) {
				if _, err := e.coord.CompleteHandoff(g.ID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// tasksWoundDown reports whether every task in a finishing cohort has
// reached a terminal status. An empty cohort counts as wound down.
func tasksWoundDown(statuses map[string]supervisor.TaskStatus) bool {
	for _, s := range statuses {
		switch s {
		case supervisor.TaskStatusSucceeded, supervisor.TaskStatusFailed:
		default:
			return false
		}
	}
	return true
}

// publishCompletedGroups freezes and publishes any group whose every
// partition reached its end, then hands its partitions to a successor
// group starting at the published offsets.
func (e *Engine) publishCompletedGroups(ctx context.Context) error {
	for _, g := range e.coord.Groups() {
		frozen, err := e.coord.FreezeIfComplete(g.ID)
		if err != nil {
			return err
		}
		if !frozen {
			continue
		}

		e.state.setDetailed(supervisor.DetailPublishing)
		outcome, err := e.publisher.Publish(ctx, g)
		if err != nil {
			return err
		}

		switch outcome {
		case coordinator.PublishCommitted, coordinator.PublishAlreadyCommitted:
			if e.config.Metrics != nil && outcome == coordinator.PublishCommitted {
				e.config.Metrics.IncPublishesCommitted()
			}
			e.retireGroup(ctx, g, g.EndOffsets)
		case coordinator.PublishAbandoned:
			if e.config.Metrics != nil {
				e.config.Metrics.IncPublishPreconditionFailures()
			}
			if e.config.Logger != nil {
				e.config.Logger.Warn("task group abandoned after publish precondition failure",
					"group", g.ID)
			}
			e.abandonGroup(ctx, g)
		}
	}
	return nil
}

// retireGroup removes a published group and records its end offsets as
// the resume point its successor starts from.
func (e *Engine) retireGroup(ctx context.Context, g *supervisor.TaskGroup, end supervisor.OffsetMap) {
	e.tasks.Forget(g)
	e.coord.RemoveGroup(g.ID)

	e.mu.Lock()
	for p, seq := range end {
		e.resumeOffsets[p] = seq
	}
	e.mu.Unlock()

	if e.config.Logger != nil {
		e.config.Logger.Info("task group retired", "group", g.ID)
	}
}

// abandonGroup kills a stale group's tasks and drops its partitions'
// resume points so they are re-derived from the durable metadata.
func (e *Engine) abandonGroup(ctx context.Context, g *supervisor.TaskGroup) {
	killed := e.tasks.KillAll(ctx, g, "task group abandoned")
	if e.config.Metrics != nil {
		e.config.Metrics.AddTasksKilled(killed)
	}
	e.coord.RemoveGroup(g.ID)

	e.mu.Lock()
	for p := range g.StartOffsets {
		delete(e.resumeOffsets, p)
	}
	e.mu.Unlock()

	// Pull the fresh baseline so the successor group starts where the
	// durable metadata actually is.
	meta, err := e.config.Store.ReadMetadata(ctx, e.config.DataSource)
	if err == nil && meta.Matches(e.config.DataSource, e.config.Stream) {
		e.mu.Lock()
		for p := range g.StartOffsets {
			if seq, ok := meta.Offsets[p]; ok {
				e.resumeOffsets[p] = seq
			}
		}
		e.mu.Unlock()
	}
}

// refreshLag recomputes lag stats from the latest snapshot and the
// highest recorded offsets.
func (e *Engine) refreshLag() {
	snap, ok := e.lagTrack.Load()
	if !ok {
		return
	}

	current := e.coord.HighestRecordedOffsets()
	partLag := lag.RecordLagInLatest(snap.Latest, current)
	stats := lag.ComputeLagStats(partLag)
	timeLag := e.config.Adapter.TimeLag(snap.Latest, current)

	e.mu.Lock()
	e.partitionLag = partLag
	e.lagStats = stats
	e.timeLag = timeLag
	e.mu.Unlock()

	if e.config.Metrics != nil {
		e.config.Metrics.SetAggregateLag(stats.TotalLag)
		e.config.Metrics.SetMaxPartitionLag(stats.MaxLag)
	}
}
