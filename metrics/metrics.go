package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TicksTotal tracks the total number of supervisor run-loop ticks.
var TicksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "druid_supervisor_ticks_total",
		Help: "Total supervisor run-loop ticks",
	},
	[]string{"data_source"},
)

// TickFailuresTotal tracks ticks that ended in a recorded exception.
var TickFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "druid_supervisor_tick_failures_total",
		Help: "Total supervisor ticks that failed",
	},
	[]string{"data_source"},
)

// TasksCreatedTotal tracks the total number of replica tasks created.
var TasksCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "druid_supervisor_tasks_created_total",
		Help: "Total replica tasks created",
	},
	[]string{"data_source"},
)

// TasksKilledTotal tracks the total number of replica tasks killed.
var TasksKilledTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "druid_supervisor_tasks_killed_total",
		Help: "Total replica tasks killed",
	},
	[]string{"data_source"},
)

// CheckpointsAcceptedTotal tracks accepted checkpoint reports.
var CheckpointsAcceptedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "druid_supervisor_checkpoints_accepted_total",
		Help: "Total checkpoint reports accepted",
	},
	[]string{"data_source"},
)

// CheckpointsRejectedTotal tracks checkpoint reports rejected for
// regression or replica divergence.
var CheckpointsRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "druid_supervisor_checkpoints_rejected_total",
		Help: "Total checkpoint reports rejected",
	},
	[]string{"data_source"},
)

// PublishesCommittedTotal tracks metadata publishes durably committed.
var PublishesCommittedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "druid_supervisor_publishes_committed_total",
		Help: "Total metadata publishes committed",
	},
	[]string{"data_source"},
)

// PublishPreconditionFailuresTotal tracks compare-and-swap publishes
// that found the durable metadata moved underneath the supervisor.
var PublishPreconditionFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "druid_supervisor_publish_precondition_failures_total",
		Help: "Total publishes abandoned on a precondition failure",
	},
	[]string{"data_source"},
)

// PartitionCount tracks the current discovered partition count.
var PartitionCount = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "druid_supervisor_partitions",
		Help: "Current discovered partition count",
	},
	[]string{"data_source"},
)

// ActiveTasks tracks the current number of tracked replica tasks.
var ActiveTasks = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "druid_supervisor_active_tasks",
		Help: "Current tracked replica tasks",
	},
	[]string{"data_source"},
)

// AggregateLag tracks the whole-stream record lag, floored at zero.
var AggregateLag = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "druid_supervisor_aggregate_lag_records",
		Help: "Aggregate record lag across all partitions",
	},
	[]string{"data_source"},
)

// MaxPartitionLag tracks the worst single-partition record lag.
var MaxPartitionLag = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "druid_supervisor_max_partition_lag_records",
		Help: "Maximum single-partition record lag",
	},
	[]string{"data_source"},
)

// Healthy tracks the supervisor health flag (1 healthy, 0 not).
var Healthy = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "druid_supervisor_healthy",
		Help: "Supervisor health flag (1 healthy, 0 not)",
	},
	[]string{"data_source"},
)

// TickDuration tracks run-loop tick latency.
var TickDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "druid_supervisor_tick_duration_seconds",
		Help:    "Run-loop tick latency",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"data_source"},
)
