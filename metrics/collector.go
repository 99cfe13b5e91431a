package metrics

// Collector wraps metrics and provides helper methods with pre-filled labels.
type Collector struct {
	dataSource string
}

// NewCollector creates a new Collector for the given datasource.
func NewCollector(dataSource string) *Collector {
	return &Collector{dataSource: dataSource}
}

// IncTicks increments the tick counter.
func (c *Collector) IncTicks() {
	TicksTotal.WithLabelValues(c.dataSource).Inc()
}

// IncTickFailures increments the tick failure counter.
func (c *Collector) IncTickFailures() {
	TickFailuresTotal.WithLabelValues(c.dataSource).Inc()
}

// AddTasksCreated adds to the tasks created counter.
func (c *Collector) AddTasksCreated(count int) {
	TasksCreatedTotal.WithLabelValues(c.dataSource).Add(float64(count))
}

// IncTasksKilled increments the tasks killed counter.
func (c *Collector) IncTasksKilled() {
	TasksKilledTotal.WithLabelValues(c.dataSource).Inc()
}

// AddTasksKilled adds to the tasks killed counter.
func (c *Collector) AddTasksKilled(count int) {
	TasksKilledTotal.WithLabelValues(c.dataSource).Add(float64(count))
}

// IncCheckpointsAccepted increments the accepted checkpoint counter.
func (c *Collector) IncCheckpointsAccepted() {
	CheckpointsAcceptedTotal.WithLabelValues(c.dataSource).Inc()
}

// IncCheckpointsRejected increments the rejected checkpoint counter.
func (c *Collector) IncCheckpointsRejected() {
	CheckpointsRejectedTotal.WithLabelValues(c.dataSource).Inc()
}

// IncPublishesCommitted increments the committed publish counter.
func (c *Collector) IncPublishesCommitted() {
	PublishesCommittedTotal.WithLabelValues(c.dataSource).Inc()
}

// IncPublishPreconditionFailures increments the abandoned publish counter.
func (c *Collector) IncPublishPreconditionFailures() {
	PublishPreconditionFailuresTotal.WithLabelValues(c.dataSource).Inc()
}

// SetPartitionCount sets the discovered partition count gauge.
func (c *Collector) SetPartitionCount(count int) {
	PartitionCount.WithLabelValues(c.dataSource).Set(float64(count))
}

// SetActiveTasks sets the active tasks gauge.
func (c *Collector) SetActiveTasks(count int) {
	ActiveTasks.WithLabelValues(c.dataSource).Set(float64(count))
}

// SetAggregateLag sets the aggregate lag gauge.
func (c *Collector) SetAggregateLag(records int64) {
	AggregateLag.WithLabelValues(c.dataSource).Set(float64(records))
}

// SetMaxPartitionLag sets the max partition lag gauge.
func (c *Collector) SetMaxPartitionLag(records int64) {
	MaxPartitionLag.WithLabelValues(c.dataSource).Set(float64(records))
}

// SetHealthy sets the health gauge from the boolean flag.
func (c *Collector) SetHealthy(healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	Healthy.WithLabelValues(c.dataSource).Set(v)
}

// ObserveTickDuration records one tick latency observation.
func (c *Collector) ObserveTickDuration(seconds float64) {
	TickDuration.WithLabelValues(c.dataSource).Observe(seconds)
}
