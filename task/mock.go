package task

import (
	"context"
	"fmt"
	"sync"

	supervisor "github.com/demo-kratia/druid"
)

var _ Client = (*MockClient)(nil)

// MockClient is a configurable mock implementation of Client for use in
// tests. Behavior funcs can be set per method; every call is recorded.
type MockClient struct {
	mu sync.Mutex

	// CreateTasksFunc is called by CreateTasks if set; the default mints
	// sequential ids derived from the base sequence name.
	CreateTasksFunc func(ctx context.Context, ioConfig supervisor.TaskIOConfig, tuning supervisor.TaskTuningConfig, replicaCount int) ([]string, error)

	// GetStatusFunc is called by GetStatus if set; the default reports
	// running.
	GetStatusFunc func(ctx context.Context, taskID string) (supervisor.TaskStatus, error)

	// RequestCheckpointFunc is called by RequestCheckpoint if set.
	RequestCheckpointFunc func(ctx context.Context, taskID string) error

	// KillTaskFunc is called by KillTask if set.
	KillTaskFunc func(ctx context.Context, taskID string, reason string) error

	// ListTasksFunc is called by ListTasks if set; the default reports no
	// tasks.
	ListTasksFunc func(ctx context.Context) ([]supervisor.Task, error)

	// CurrentOffsetsFunc is called by CurrentOffsets if set; the default
	// reports an empty offset map.
	CurrentOffsetsFunc func(ctx context.Context, taskID string) (supervisor.OffsetMap, error)

	// Call tracking
	CreateTasksCalls       []CreateTasksCall
	GetStatusCalls         []string
	RequestCheckpointCalls []string
	KillTaskCalls          []KillTaskCall
	ListTasksCalls         int
	CurrentOffsetsCalls    []string

	created int
}

// CreateTasksCall records the parameters of a single CreateTasks call.
type CreateTasksCall struct {
	IOConfig     supervisor.TaskIOConfig
	Tuning       supervisor.TaskTuningConfig
	ReplicaCount int
}

// KillTaskCall records the parameters of a single KillTask call.
type KillTaskCall struct {
	TaskID string
	Reason string
}

// NewMockClient creates a MockClient with empty call history.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) CreateTasks(ctx context.Context, ioConfig supervisor.TaskIOConfig, tuning supervisor.TaskTuningConfig, replicaCount int) ([]string, error) {
	m.mu.Lock()
	m.CreateTasksCalls = append(m.CreateTasksCalls, CreateTasksCall{IOConfig: ioConfig, Tuning: tuning, ReplicaCount: replicaCount})
	seq := m.created
	m.created += replicaCount
	m.mu.Unlock()

	if m.CreateTasksFunc != nil {
		return m.CreateTasksFunc(ctx, ioConfig, tuning, replicaCount)
	}

	ids := make([]string, replicaCount)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s_%d", ioConfig.BaseSequenceName, seq+i)
	}
	return ids, nil
}

func (m *MockClient) GetStatus(ctx context.Context, taskID string) (supervisor.TaskStatus, error) {
	m.mu.Lock()
	m.GetStatusCalls = append(m.GetStatusCalls, taskID)
	m.mu.Unlock()

	if m.GetStatusFunc != nil {
		return m.GetStatusFunc(ctx, taskID)
	}
	return supervisor.TaskStatusRunning, nil
}

func (m *MockClient) RequestCheckpoint(ctx context.Context, taskID string) error {
	m.mu.Lock()
	m.RequestCheckpointCalls = append(m.RequestCheckpointCalls, taskID)
	m.mu.Unlock()

	if m.RequestCheckpointFunc != nil {
		return m.RequestCheckpointFunc(ctx, taskID)
	}
	return nil
}

func (m *MockClient) KillTask(ctx context.Context, taskID string, reason string) error {
	m.mu.Lock()
	m.KillTaskCalls = append(m.KillTaskCalls, KillTaskCall{TaskID: taskID, Reason: reason})
	m.mu.Unlock()

	if m.KillTaskFunc != nil {
		return m.KillTaskFunc(ctx, taskID, reason)
	}
	return nil
}

func (m *MockClient) ListTasks(ctx context.Context) ([]supervisor.Task, error) {
	m.mu.Lock()
	m.ListTasksCalls++
	m.mu.Unlock()

	if m.ListTasksFunc != nil {
		return m.ListTasksFunc(ctx)
	}
	return nil, nil
}

func (m *MockClient) CurrentOffsets(ctx context.Context, taskID string) (supervisor.OffsetMap, error) {
	m.mu.Lock()
	m.CurrentOffsetsCalls = append(m.CurrentOffsetsCalls, taskID)
	m.mu.Unlock()

	if m.CurrentOffsetsFunc != nil {
		return m.CurrentOffsetsFunc(ctx, taskID)
	}
	return supervisor.OffsetMap{}, nil
}

// Reset clears the call history.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateTasksCalls = nil
	m.GetStatusCalls = nil
	m.RequestCheckpointCalls = nil
	m.KillTaskCalls = nil
	m.ListTasksCalls = 0
	m.CurrentOffsetsCalls = nil
}
