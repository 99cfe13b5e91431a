package task

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	supervisor "github.com/demo-kratia/druid"
)

// HTTPClientConfig holds configuration for the HTTP task client.
type HTTPClientConfig struct {
	// BaseURL is the task runtime's API root, e.g.
	// "http://overlord:8090" (required).
	BaseURL string

	// HTTPClient is the underlying HTTP client (default: 30s timeout).
	HTTPClient *http.Client

	// Logger is for observability (optional).
	Logger *slog.Logger
}

// HTTPClient talks to the task runtime over its REST API. Status-query
// failures degrade to TaskStatusUnknown so a slow or unreachable
// runtime never fails a supervisor tick.
type HTTPClient struct {
	config HTTPClientConfig
}

// NewHTTPClient creates an HTTPClient with the given configuration.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{config: cfg}, nil
}

type createTaskRequest struct {
	IOConfig supervisor.TaskIOConfig     `json:"ioConfig"`
	Tuning   supervisor.TaskTuningConfig `json:"tuningConfig"`
}

type createTaskResponse struct {
	ID string `json:"id"`
}

type taskStatusResponse struct {
	Status supervisor.TaskStatus `json:"status"`
}

func (c *HTTPClient) CreateTasks(ctx context.Context, ioConfig supervisor.TaskIOConfig, tuning supervisor.TaskTuningConfig, replicaCount int) ([]string, error) {
	body, err := json.Marshal(createTaskRequest{IOConfig: ioConfig, Tuning: tuning})
	if err != nil {
		return nil, fmt.Errorf("encode task spec: %w", err)
	}

	ids := make([]string, 0, replicaCount)
	for i := 0; i < replicaCount; i++ {
		var resp createTaskResponse
		if err := c.post(ctx, "/tasks", body, &resp); err != nil {
			return ids, fmt.Errorf("create task %d of %d: %w", i+1, replicaCount, err)
		}
		ids = append(ids, resp.ID)
	}
	return ids, nil
}

func (c *HTTPClient) GetStatus(ctx context.Context, taskID string) (supervisor.TaskStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.BaseURL+"/tasks/"+taskID+"/status", nil)
	if err != nil {
		return supervisor.TaskStatusUnknown, nil
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		if c.config.Logger != nil {
			c.config.Logger.Debug("task status query failed", "task", taskID, "error", err)
		}
		return supervisor.TaskStatusUnknown, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return supervisor.TaskStatusUnknown, nil
	}
	var status taskStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return supervisor.TaskStatusUnknown, nil
	}
	return status.Status, nil
}

type listTasksResponse struct {
	Tasks []supervisor.Task `json:"tasks"`
}

type taskOffsetsResponse struct {
	Offsets supervisor.OffsetMap `json:"offsets"`
}

func (c *HTTPClient) ListTasks(ctx context.Context) ([]supervisor.Task, error) {
	var resp listTasksResponse
	if err := c.get(ctx, "/tasks", &resp); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return resp.Tasks, nil
}

func (c *HTTPClient) CurrentOffsets(ctx context.Context, taskID string) (supervisor.OffsetMap, error) {
	var resp taskOffsetsResponse
	if err := c.get(ctx, "/tasks/"+taskID+"/offsets", &resp); err != nil {
		return nil, fmt.Errorf("current offsets for %s: %w", taskID, err)
	}
	return resp.Offsets, nil
}

func (c *HTTPClient) RequestCheckpoint(ctx context.Context, taskID string) error {
	return c.post(ctx, "/tasks/"+taskID+"/checkpoint", nil, nil)
}

func (c *HTTPClient) KillTask(ctx context.Context, taskID string, reason string) error {
	body, err := json.Marshal(map[string]string{"reason": reason})
	if err != nil {
		return err
	}
	return c.post(ctx, "/tasks/"+taskID+"/shutdown", body, nil)
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", http.MethodGet, path, resp.StatusCode, payload)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response for %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", http.MethodPost, path, resp.StatusCode, payload)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response for %s: %w", path, err)
		}
	}
	return nil
}
