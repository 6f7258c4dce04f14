package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evalforge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evalforge_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evalforge_experiment_runs_total",
			Help: "Total number of experiment runs by terminal status",
		},
		[]string{"status"},
	)

	itemsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evalforge_items_processed_total",
			Help: "Total number of dataset items processed",
		},
	)

	evaluatorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evalforge_evaluator_calls_total",
			Help: "Total number of evaluator invocations",
		},
		[]string{"kind", "outcome"},
	)

	evaluatorCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evalforge_evaluator_call_duration_seconds",
			Help:    "Evaluator invocation duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	targetCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evalforge_target_calls_total",
			Help: "Total number of target invocations",
		},
		[]string{"kind", "outcome"},
	)
)

// Metrics records request count and latency per route
func Metrics(skip func(*fiber.Ctx) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if skip != nil && skip(c) {
			return c.Next()
		}

		start := time.Now()
		method := c.Method()
		path := c.Route().Path

		err := c.Next()

		httpRequestsTotal.WithLabelValues(
			method, path, strconv.Itoa(c.Response().StatusCode()),
		).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		return err
	}
}

// RecordRunFinished records a run reaching a terminal status
func RecordRunFinished(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// RecordItemProcessed records one dataset item processed
func RecordItemProcessed() {
	itemsProcessed.Inc()
}

// RecordEvaluatorCall records an evaluator invocation
func RecordEvaluatorCall(kind, outcome string, duration time.Duration) {
	evaluatorCalls.WithLabelValues(kind, outcome).Inc()
	evaluatorCallDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordTargetCall records a target invocation
func RecordTargetCall(kind, outcome string) {
	targetCalls.WithLabelValues(kind, outcome).Inc()
}
