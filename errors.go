package supervisor

import (
	"errors"
	"fmt"
)

var (
	// ErrCheckpointOutOfOrder indicates a checkpoint sequence id that is
	// not strictly greater than the latest recorded id for its group.
	ErrCheckpointOutOfOrder = errors.New("checkpoint sequence id out of order")

	// ErrCheckpointRegression indicates a task reported an offset below
	// the last recorded offset for a partition. Fatal for that task: it
	// is killed and replaced, never silently merged.
	ErrCheckpointRegression = errors.New("checkpoint offset regression")

	// ErrReplicaDivergence indicates two replicas of one group reported
	// different offsets at the same checkpoint sequence id.
	ErrReplicaDivergence = errors.New("replica checkpoint divergence")

	// ErrGroupNotFound indicates the task group does not exist.
	ErrGroupNotFound = errors.New("task group not found")

	// ErrNotRunning indicates an operation that requires a started
	// supervisor was invoked before Start or after Stop.
	ErrNotRunning = errors.New("supervisor not running")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("supervisor already started")
)

// StreamError wraps a transient stream-adapter failure (partition-list
// fetch, seek). It aborts the current tick; the next tick retries.
type StreamError struct {
	Stream string
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %q: %v", e.Stream, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// NewStreamError wraps err as a StreamError for the named stream.
func NewStreamError(stream string, err error) *StreamError {
	return &StreamError{Stream: stream, Err: err}
}
