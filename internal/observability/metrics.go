package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the support chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "support_chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_messages_sent_total",
			Help: "Total number of messages accepted for delivery.",
		},
		[]string{"sender_kind"},
	)
	idempotentReplaysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_chat_idempotent_replays_total",
			Help: "Total number of send calls answered from an existing correlation id.",
		},
	)
	assignmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_chat_assignments_total",
			Help: "Total number of chats assigned to an operator.",
		},
	)
	assignmentsSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_chat_assignments_skipped_total",
			Help: "Total number of assignment attempts that found no spare capacity.",
		},
	)
	pollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "support_chat_poll_duration_seconds",
			Help:    "Long-poll wait durations in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"scope"},
	)
	pollWakeupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_poll_wakeups_total",
			Help: "Total number of long-poll completions by reason.",
		},
		[]string{"scope", "reason"},
	)
	sweeperOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_sweeper_outcomes_total",
			Help: "Total number of retry sweeper outcomes.",
		},
		[]string{"outcome"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		messagesSentTotal,
		idempotentReplaysTotal,
		assignmentsTotal,
		assignmentsSkippedTotal,
		pollDuration,
		pollWakeupsTotal,
		sweeperOutcomesTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies per route.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncMessageSent(senderKind string) {
	messagesSentTotal.WithLabelValues(senderKind).Inc()
}

func IncIdempotentReplay() {
	idempotentReplaysTotal.Inc()
}

func IncAssignment() {
	assignmentsTotal.Inc()
}

func IncAssignmentSkipped() {
	assignmentsSkippedTotal.Inc()
}

func ObservePoll(scope string, seconds float64) {
	pollDuration.WithLabelValues(scope).Observe(seconds)
}

func IncPollWakeup(scope, reason string) {
	pollWakeupsTotal.WithLabelValues(scope, reason).Inc()
}

func IncSweeperOutcome(outcome string) {
	sweeperOutcomesTotal.WithLabelValues(outcome).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
