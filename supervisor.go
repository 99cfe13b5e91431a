package supervisor

import "context"

// Supervisor is the long-running control loop that keeps a fleet of
// stream-consuming indexing tasks aligned with the partitions of one
// external stream, so every partition is continuously and exactly-once
// consumed into durable segments.
//
// A Supervisor manages a single datasource. Start launches the periodic
// run loop; all other operations act on the running loop.
type Supervisor interface {
	// Start launches the run loop. Returns ErrAlreadyStarted if called
	// twice, or a construction error if the spec is malformed.
	Start(ctx context.Context) error

	// Stop cancels the periodic timer, lets any in-flight tick finish,
	// and asks live tasks to checkpoint and stop cleanly before
	// returning, so already-consumed-but-unpublished data is not lost.
	Stop(ctx context.Context) error

	// Suspend freezes ingestion: subsequent ticks still discover
	// partitions and refresh lag, but create no tasks and publish
	// nothing.
	Suspend() error

	// Resume lifts a suspension.
	Resume() error

	// Reset overwrites the durable metadata with the supplied offsets,
	// bypassing the monotonic-advance rule. Used only to recover from
	// externally detected corruption.
	Reset(ctx context.Context, offsets OffsetMap) error

	// Status returns a point-in-time status report. When includeOffsets
	// is false the offset-bearing fields are omitted.
	Status(includeOffsets bool) Report

	// Healthy reports the supervisor's basic health flag.
	Healthy() bool
}
