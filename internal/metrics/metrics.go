package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TaskRuns tracks task executions per task and outcome (success, retry, failed, quarantined)
	TaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_task_runs_total",
			Help: "Total number of task executions",
		},
		[]string{"task", "outcome"},
	)

	// TaskDuration tracks how long task bodies run
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arbiter_task_duration_seconds",
			Help:    "Task execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)

	// TaskRetries tracks retries scheduled after a failure
	TaskRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_task_retries_total",
			Help: "Total number of task retries",
		},
		[]string{"task"},
	)

	// ErrorsTotal tracks classified errors
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_errors_total",
			Help: "Total number of handled errors",
		},
		[]string{"component", "operation", "critical"},
	)

	// ErrorCount mirrors the current per-key failure counter
	ErrorCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arbiter_error_count",
			Help: "Current consecutive error count per component and operation",
		},
		[]string{"component", "operation"},
	)

	// QueuePending tracks work items not yet acknowledged
	QueuePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arbiter_queue_pending",
			Help: "Work items enqueued but not yet acknowledged",
		},
	)

	// AlertsTotal tracks alert delivery results (sent, failed, throttled)
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_alerts_total",
			Help: "Total number of alert dispatch attempts",
		},
		[]string{"result"},
	)

	// DBConnectionPoolUsage tracks the open/max connection ratio
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arbiter_db_connection_pool_usage_percent",
			Help: "Database connection pool usage in percent",
		},
	)
)
