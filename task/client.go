// Package task defines the interface to the external task-management
// layer that actually runs the indexing tasks. The supervisor engine
// issues independent outbound calls through it; each call must be
// bounded by its context so a slow task runtime cannot stall the control
// loop.
package task

import (
	"context"

	supervisor "github.com/demo-kratia/druid"
)

// Client is the task-management interface.
//
// Timeout or transport failure on GetStatus is reported by returning
// TaskStatusUnknown with a nil error; the caller requeries next tick.
type Client interface {
	// CreateTasks requests replicaCount task instances sharing the io
	// config's base sequence name, returning their ids in creation order.
	CreateTasks(ctx context.Context, ioConfig supervisor.TaskIOConfig, tuning supervisor.TaskTuningConfig, replicaCount int) ([]string, error)

	// GetStatus returns the task's current status.
	GetStatus(ctx context.Context, taskID string) (supervisor.TaskStatus, error)

	// RequestCheckpoint asks a running task to checkpoint its progress
	// and report it back.
	RequestCheckpoint(ctx context.Context, taskID string) error

	// KillTask forcibly terminates a task.
	KillTask(ctx context.Context, taskID string, reason string) error

	// ListTasks returns the runtime's view of every task it currently
	// tracks, whatever supervisor created them. Callers filter by base
	// sequence name before adopting.
	ListTasks(ctx context.Context) ([]supervisor.Task, error)

	// CurrentOffsets returns a running task's self-reported
	// per-partition progress.
	CurrentOffsets(ctx context.Context, taskID string) (supervisor.OffsetMap, error)
}
