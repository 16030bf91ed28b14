// Package metrics exposes the daemon's Prometheus instrumentation,
// scraped over the control-plane's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Task lifecycle metrics
	TasksSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskd_tasks_submitted_total",
			Help: "Total number of tasks submitted",
		},
		[]string{"group"},
	)

	TasksStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskd_tasks_started_total",
			Help: "Total number of tasks that began running",
		},
		[]string{"group"},
	)

	TasksFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskd_tasks_finished_total",
			Help: "Total number of tasks that reached a terminal state",
		},
		[]string{"group", "result"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskd_task_duration_seconds",
			Help:    "Task execution duration in seconds, from start to finish",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 20), // 1ms to ~9min
		},
		[]string{"group"},
	)

	// Scheduler/tick-loop metrics
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskd_tick_duration_seconds",
			Help:    "Wall-clock time spent in one task handler tick",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 16),
		},
	)

	GroupOccupancy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskd_group_occupancy",
			Help: "Current number of alive tasks per group",
		},
		[]string{"group"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskd_queued_tasks",
			Help: "Current number of tasks waiting to run",
		},
	)

	// Callback metrics
	CallbackSuccess = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskd_callbacks_succeeded_total",
			Help: "Total number of completion callbacks that ran successfully",
		},
	)

	CallbackFailure = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskd_callbacks_failed_total",
			Help: "Total number of completion callbacks that failed to render or run",
		},
	)

	// HTTP control-plane metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WebSocket event stream metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskd_websocket_connections",
			Help: "Current number of WebSocket connections",
		},
	)

	WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskd_websocket_messages_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"},
	)

	// Optional Redis event-mirror metrics
	RedisPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskd_redis_publish_errors_total",
			Help: "Total number of failed attempts to mirror an event to Redis",
		},
	)
)

// RecordTaskSubmission records a task submission.
func RecordTaskSubmission(group string) {
	TasksSubmitted.WithLabelValues(group).Inc()
}

// RecordTaskStart records a task transitioning to Running.
func RecordTaskStart(group string) {
	TasksStarted.WithLabelValues(group).Inc()
}

// RecordTaskFinish records a task reaching Done, along with how long it ran.
func RecordTaskFinish(group, result string, duration float64) {
	TasksFinished.WithLabelValues(group, result).Inc()
	TaskDuration.WithLabelValues(group).Observe(duration)
}

// RecordTick records how long one handler tick took.
func RecordTick(duration float64) {
	TickDuration.Observe(duration)
}

// SetGroupOccupancy sets the alive-task gauge for a group.
func SetGroupOccupancy(group string, count float64) {
	GroupOccupancy.WithLabelValues(group).Set(count)
}

// SetQueueDepth sets the queued-task gauge.
func SetQueueDepth(depth float64) {
	QueueDepth.Set(depth)
}

// RecordCallbackResult records whether a completion callback succeeded.
func RecordCallbackResult(success bool) {
	if success {
		CallbackSuccess.Inc()
		return
	}
	CallbackFailure.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// SetWebSocketConnections sets the WebSocket connections gauge.
func SetWebSocketConnections(count float64) {
	WebSocketConnections.Set(count)
}

// RecordWebSocketMessage records a WebSocket message.
func RecordWebSocketMessage(msgType string) {
	WebSocketMessages.WithLabelValues(msgType).Inc()
}

// RecordRedisPublishError records a failed Redis event-mirror publish.
func RecordRedisPublishError() {
	RedisPublishErrors.Inc()
}
