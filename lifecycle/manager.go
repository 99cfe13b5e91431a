// Package lifecycle manages the replica tasks of a task group: keeping
// the replica count at target, polling task statuses with bounded
// calls, and killing tasks that fail or diverge so the next tick can
// replace them.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	supervisor "github.com/demo-kratia/druid"
	"github.com/demo-kratia/druid/stream"
	"github.com/demo-kratia/druid/task"
)

// Config holds configuration for the lifecycle Manager.
type Config struct {
	// Client is the task-management client (required).
	Client task.Client

	// Adapter builds stream-specific task io configs (required).
	Adapter stream.Adapter

	// Replicas is the target replica count per group (default: 1).
	Replicas int

	// StatusTimeout bounds each status query (default: 10s). A query
	// that exceeds it yields TaskStatusUnknown, requeried next tick.
	StatusTimeout time.Duration

	// Tuning is passed through to every created task.
	Tuning supervisor.TaskTuningConfig

	// Logger is for observability (optional).
	Logger *slog.Logger
}

// Manager tracks the replica tasks the supervisor has created and
// reconciles each group's live set against the configured target.
type Manager struct {
	config Config

	mu    sync.Mutex
	tasks map[string]*supervisor.Task
}

// New creates a new lifecycle Manager with the given configuration.
// Applies default values for Replicas and StatusTimeout if not set.
func New(cfg Config) *Manager {
	if cfg.Replicas == 0 {
		cfg.Replicas = 1
	}
	if cfg.StatusTimeout == 0 {
		cfg.StatusTimeout = 10 * time.Second
	}

	return &Manager{
		config: cfg,
		tasks:  make(map[string]*supervisor.Task),
	}
}

// NewBaseSequenceName mints the name a replica cohort shares. Replicas
// of one group carry the same base name; a replaced cohort gets a fresh
// one so late reports from killed tasks are distinguishable.
func NewBaseSequenceName(taskType string, groupID int) string {
	return fmt.Sprintf("%s_%d_%s", taskType, groupID, uuid.NewString()[:8])
}

// EnsureReplicas brings the group's live replica set up to the target
// count. Tasks previously observed as failed or succeeded are dropped
// from the group before counting; the deficit is created in one
// CreateTasks call. Returns the ids of any newly created tasks.
func (m *Manager) EnsureReplicas(ctx context.Context, group *supervisor.TaskGroup) ([]string, error) {
	m.mu.Lock()
	live := make([]string, 0, len(group.TaskIDs))
	for _, id := range group.TaskIDs {
		t, ok := m.tasks[id]
		if !ok {
			continue
		}
		switch t.Status {
		case supervisor.TaskStatusFailed, supervisor.TaskStatusSucceeded:
			delete(m.tasks, id)
		default:
			live = append(live, id)
		}
	}
	group.TaskIDs = live
	deficit := m.config.Replicas - len(live)
	m.mu.Unlock()

	if deficit <= 0 {
		return nil, nil
	}

	ioConfig, err := m.config.Adapter.BuildTaskIOConfig(group, group.StartOffsets, group.EndOffsets, group.Window)
	if err != nil {
		return nil, fmt.Errorf("build io config for group %d: %w", group.ID, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.config.StatusTimeout)
	ids, err := m.config.Client.CreateTasks(callCtx, ioConfig, m.config.Tuning, deficit)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("create %d tasks for group %d: %w", deficit, group.ID, err)
	}

	now := time.Now()
	m.mu.Lock()
	for _, id := range ids {
		m.tasks[id] = &supervisor.Task{
			ID:               id,
			GroupID:          group.ID,
			BaseSequenceName: group.BaseSequenceName,
			Status:           supervisor.TaskStatusRunning,
			StartedAt:        now,
		}
		group.TaskIDs = append(group.TaskIDs, id)
	}
	m.mu.Unlock()

	if m.config.Logger != nil {
		m.config.Logger.Info("replica tasks created",
			"group", group.ID, "count", len(ids), "baseSequenceName", group.BaseSequenceName)
	}
	return ids, nil
}

// RefreshStatuses queries the status of every task in the group, each
// under its own timeout. A query that errors or times out records the
// task as unknown rather than failing the tick.
func (m *Manager) RefreshStatuses(ctx context.Context, group *supervisor.TaskGroup) map[string]supervisor.TaskStatus {
	m.mu.Lock()
	ids := append([]string(nil), group.TaskIDs...)
	m.mu.Unlock()

	out := make(map[string]supervisor.TaskStatus, len(ids))
	for _, id := range ids {
		callCtx, cancel := context.WithTimeout(ctx, m.config.StatusTimeout)
		status, err := m.config.Client.GetStatus(callCtx, id)
		cancel()
		if err != nil {
			if m.config.Logger != nil {
				m.config.Logger.Warn("task status query failed",
					"task", id, "error", err)
			}
			status = supervisor.TaskStatusUnknown
		}

		m.mu.Lock()
		if t, ok := m.tasks[id]; ok {
			t.Status = status
		}
		m.mu.Unlock()
		out[id] = status
	}
	return out
}

// Kill terminates one replica and removes it from the group so the
// next EnsureReplicas call replaces it.
func (m *Manager) Kill(ctx context.Context, group *supervisor.TaskGroup, taskID, reason string) error {
	callCtx, cancel := context.WithTimeout(ctx, m.config.StatusTimeout)
	err := m.config.Client.KillTask(callCtx, taskID, reason)
	cancel()
	if err != nil {
		return fmt.Errorf("kill task %s: %w", taskID, err)
	}

	m.mu.Lock()
	delete(m.tasks, taskID)
	kept := group.TaskIDs[:0]
	for _, id := range group.TaskIDs {
		if id != taskID {
			kept = append(kept, id)
		}
	}
	group.TaskIDs = kept
	m.mu.Unlock()

	if m.config.Logger != nil {
		m.config.Logger.Warn("replica task killed",
			"group", group.ID, "task", taskID, "reason", reason)
	}
	return nil
}

// KillAll terminates every task in the group, returning how many kills
// succeeded. Failures are logged and the remaining tasks are still
// killed.
func (m *Manager) KillAll(ctx context.Context, group *supervisor.TaskGroup, reason string) int {
	m.mu.Lock()
	ids := append([]string(nil), group.TaskIDs...)
	m.mu.Unlock()

	killed := 0
	for _, id := range ids {
		if err := m.Kill(ctx, group, id, reason); err != nil {
			if m.config.Logger != nil {
				m.config.Logger.Warn("kill failed", "group", group.ID, "task", id, "error", err)
			}
			continue
		}
		killed++
	}
	return killed
}

// CheckpointAndStop asks every task in the group to checkpoint its
// progress and wind down. Used when a group's duration elapses and
// during graceful supervisor shutdown; failures are logged and the
// remaining tasks are still asked.
func (m *Manager) CheckpointAndStop(ctx context.Context, group *supervisor.TaskGroup) {
	m.mu.Lock()
	ids := append([]string(nil), group.TaskIDs...)
	m.mu.Unlock()

	for _, id := range ids {
		callCtx, cancel := context.WithTimeout(ctx, m.config.StatusTimeout)
		err := m.config.Client.RequestCheckpoint(callCtx, id)
		cancel()
		if err != nil && m.config.Logger != nil {
			m.config.Logger.Warn("checkpoint-and-stop request failed",
				"group", group.ID, "task", id, "error", err)
		}
	}
}

// Adopt registers tasks discovered still running at supervisor startup
// so they count toward the group's replica target instead of being
// duplicated. The group must not yet be shared with other goroutines.
func (m *Manager) Adopt(group *supervisor.TaskGroup, taskIDs []string) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range taskIDs {
		if _, ok := m.tasks[id]; ok {
			continue
		}
		m.tasks[id] = &supervisor.Task{
			ID:               id,
			GroupID:          group.ID,
			BaseSequenceName: group.BaseSequenceName,
			Status:           supervisor.TaskStatusRunning,
			StartedAt:        now,
		}
		group.TaskIDs = append(group.TaskIDs, id)
	}
	if len(taskIDs) > 0 && m.config.Logger != nil {
		m.config.Logger.Info("running tasks adopted",
			"group", group.ID, "count", len(taskIDs), "baseSequenceName", group.BaseSequenceName)
	}
}

// Forget drops all bookkeeping for the group's tasks without killing
// them. Used when a group retires after a successful publish.
func (m *Manager) Forget(group *supervisor.TaskGroup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range group.TaskIDs {
		delete(m.tasks, id)
	}
}

// Task returns the tracked task by id.
func (m *Manager) Task(taskID string) (supervisor.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return supervisor.Task{}, false
	}
	return *t, true
}

// ActiveCount returns how many tasks the manager currently tracks.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
