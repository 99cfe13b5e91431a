package supervisor

import "time"

// BasicState is the coarse supervisor lifecycle state.
type BasicState string

const (
	StateStarting  BasicState = "STARTING"
	StateRunning   BasicState = "RUNNING"
	StateSuspended BasicState = "SUSPENDED"
	StateStopping  BasicState = "STOPPING"
	StateStopped   BasicState = "STOPPED"
)

// DetailedState narrows the coarse state to the supervisor's current
// activity, surfaced in the status report.
type DetailedState string

const (
	DetailConnectingToStream    DetailedState = "CONNECTING_TO_STREAM"
	DetailDiscoveringPartitions DetailedState = "DISCOVERING_PARTITIONS"
	DetailCreatingTasks         DetailedState = "CREATING_TASKS"
	DetailRunning               DetailedState = "RUNNING"
	DetailSuspended             DetailedState = "SUSPENDED"
	DetailPublishing            DetailedState = "PUBLISHING"
	DetailUnhealthyStream       DetailedState = "UNABLE_TO_CONNECT_TO_STREAM"
	DetailUnhealthyTasks        DetailedState = "UNHEALTHY_TASKS"
	DetailStopping              DetailedState = "STOPPING"
)

// ExceptionEvent is one recorded tick failure, kept in a bounded history.
type ExceptionEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	ExceptionClass string    `json:"exceptionClass"`
	Message        string    `json:"message"`
	StreamRelated  bool      `json:"streamException"`
}

// LagStats summarizes a per-partition record-lag map. Raw per-partition
// lag can be transiently negative (a task ahead of the latest snapshot);
// aggregates floor each partition at zero.
type LagStats struct {
	MaxLag     int64 `json:"maxLag"`
	TotalLag   int64 `json:"totalLag"`
	AvgLag     int64 `json:"avgLag"`
	Partitions int   `json:"partitionCount"`
}

// Report is the structured status payload consumed by the control plane.
// Offset-bearing fields are nil when the caller asked for a redacted
// report or no latest-offset snapshot exists yet.
type Report struct {
	DataSource       DataSourceName   `json:"dataSource"`
	Stream           string           `json:"stream"`
	Partitions       int              `json:"partitions"`
	Replicas         int              `json:"replicas"`
	TaskDurationSecs int64            `json:"durationSeconds"`
	LatestOffsets    map[string]int64 `json:"latestOffsets,omitempty"`
	PartitionLag     map[string]int64 `json:"minimumLag,omitempty"`
	AggregateLag     *int64           `json:"aggregateLag,omitempty"`
	// PartitionTimeLag and AggregateTimeLag are absent (not zero) when
	// the stream's offsets carry no record timestamps.
	PartitionTimeLag map[string]int64 `json:"minimumLagMillis,omitempty"`
	AggregateTimeLag *int64           `json:"aggregateLagMillis,omitempty"`
	LagUpdatedAt     time.Time        `json:"offsetsLastUpdated,omitzero"`
	Suspended        bool             `json:"suspended"`
	Healthy          bool             `json:"healthy"`
	State            BasicState       `json:"state"`
	DetailedState    DetailedState    `json:"detailedState"`
	RecentErrors     []ExceptionEvent `json:"recentErrors"`
}
