// Package metrics exposes Prometheus collectors for the forecasting pipeline and its API
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wonny/salescast/internal/contracts"
)

const namespace = "salescast"

var (
	// Pipeline metrics
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"stage"},
	)

	stageRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_rows",
			Help:      "Row count flowing through a stage in the last run",
		},
		[]string{"stage", "direction"},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by mode and outcome",
		},
		[]string{"mode", "status"},
	)

	heatFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heat",
			Name:      "fallbacks_total",
			Help:      "Heat slices labeled without clustering",
		},
		[]string{"table", "kind"},
	)

	heatCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heat",
			Name:      "cache_lookups_total",
			Help:      "Heat table cache lookups",
		},
		[]string{"result"},
	)

	modelRMSE = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "holdout_rmse",
			Help:      "Hold-out RMSE of rounded predictions of the last training run",
		},
	)

	// Scheduler metrics
	jobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by outcome",
		},
		[]string{"job", "status"},
	)

	jobAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_attempts",
			Help:      "Attempts needed per job run",
			Buckets:   []float64{1, 2, 3, 5},
		},
		[]string{"job"},
	)

	jobDuration = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_last_duration_seconds",
			Help:      "Duration of the last run of a job including retries",
		},
		[]string{"job"},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
		},
		[]string{"method", "route"},
	)

	rateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
	)
)

// Fallback kinds
const (
	FallbackBinary  = "binary"
	FallbackAllZero = "all_zero"
)

// ObserveStage records duration and row counts of a finished stage
func ObserveStage(stage contracts.Stage, d time.Duration, in, out int) {
	stageDuration.WithLabelValues(stage.String()).Observe(d.Seconds())
	stageRows.WithLabelValues(stage.String(), "in").Set(float64(in))
	stageRows.WithLabelValues(stage.String(), "out").Set(float64(out))
}

// RecordRun counts a finished pipeline run
func RecordRun(mode string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	runsTotal.WithLabelValues(mode, status).Inc()
}

// HeatFallback counts a slice labeled without clustering
func HeatFallback(table, kind string) {
	heatFallbacks.WithLabelValues(table, kind).Inc()
}

// HeatCacheLookup counts a heat cache hit or miss
func HeatCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	heatCache.WithLabelValues(result).Inc()
}

// SetModelRMSE records the hold-out RMSE
func SetModelRMSE(v float64) {
	modelRMSE.Set(v)
}

// ObserveHTTP records one served request
func ObserveHTTP(method, route, status string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RateLimited counts a rejected request
func RateLimited() {
	rateLimited.Inc()
}

// RecordJob counts a finished scheduled job run
func RecordJob(job string, success bool, attempts int, d time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	jobRuns.WithLabelValues(job, status).Inc()
	jobAttempts.WithLabelValues(job).Observe(float64(attempts))
	jobDuration.WithLabelValues(job).Set(d.Seconds())
}
