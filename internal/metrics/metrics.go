// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Planning Metrics
	PlansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plans_total",
			Help: "Total number of plan generations",
		},
		[]string{"result"}, // "ok", "error"
	)

	PlanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plan_duration_seconds",
			Help:    "Time spent validating and planning a query",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	// Warehouse Metrics
	WarehouseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warehouse_query_duration_seconds",
			Help:    "Duration of warehouse queries in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind"}, // "plan" or "comparison"
	)

	WarehouseQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_query_errors_total",
			Help: "Total number of failed warehouse queries",
		},
		[]string{"kind", "error_type"},
	)

	// Execution Metrics
	ExecutionMode = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execution_mode_total",
			Help: "Query executions by path taken",
		},
		[]string{"mode"}, // "sync", "async", "dedup", "cached"
	)

	JobTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_transitions_total",
			Help: "Total number of job state transitions by target status",
		},
		[]string{"status"},
	)

	JobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_active",
			Help: "Jobs currently queued or running",
		},
		[]string{"status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Time from job start to terminal status",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	SyncTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_timeouts_total",
			Help: "Synchronous executions that hit the hard timeout",
		},
	)

	JobAdmissionRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "job_admission_rejected_total",
			Help: "Async submissions rejected by the admission limiter or a full queue",
		},
	)

	// Derived Field Metrics
	DerivedRecompiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "derived_recompiles_total",
			Help: "Stale derived fields recompiled at query time",
		},
		[]string{"result"}, // "ok", "error"
	)

	// Bulk Metrics
	BulkBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bulk_batch_size",
			Help:    "Number of requests per bulk batch",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	BulkItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_items_total",
			Help: "Bulk batch items by outcome",
		},
		[]string{"status"}, // "success", "error"
	)

	// Dashboard Metrics
	CardHydrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "card_hydrations_total",
			Help: "Dashboard card hydrations by view mode and resulting state",
		},
		[]string{"mode", "state"},
	)

	DashboardRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_refreshes_total",
			Help: "Dashboard refresh cycles by trigger",
		},
		[]string{"trigger"}, // "manual", "auto", "period"
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry or capacity)",
		},
		[]string{"cache_type"},
	)

	// Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Job lifecycle events published",
		},
		[]string{"type", "result"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit records a request rejected by the rate limiter
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordPlan records one validate-and-plan pass
func RecordPlan(duration time.Duration, err error) {
	PlanDuration.Observe(duration.Seconds())
	PlansTotal.WithLabelValues(result(err == nil)).Inc()
}

// RecordWarehouseQuery records a warehouse query metric
func RecordWarehouseQuery(kind string, duration time.Duration, err error) {
	WarehouseQueryDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		WarehouseQueryErrors.WithLabelValues(kind, errorType).Inc()
	}
}

// RecordExecutionMode records which path a query execution took
func RecordExecutionMode(mode string) {
	ExecutionMode.WithLabelValues(mode).Inc()
}

// RecordJobTransition moves a job between status gauges. from is empty for
// newly created jobs.
func RecordJobTransition(from, to string) {
	JobTransitions.WithLabelValues(to).Inc()
	if isActive(from) {
		JobsActive.WithLabelValues(from).Dec()
	}
	if isActive(to) {
		JobsActive.WithLabelValues(to).Inc()
	}
}

func isActive(status string) bool {
	return status == "queued" || status == "running"
}

// RecordJobDuration records how long a job ran before reaching status
func RecordJobDuration(status string, duration time.Duration) {
	JobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordSyncTimeout records a synchronous execution hitting its deadline
func RecordSyncTimeout() {
	SyncTimeouts.Inc()
}

// RecordAdmissionRejected records a rejected async submission
func RecordAdmissionRejected() {
	JobAdmissionRejected.Inc()
}

// RecordDerivedRecompile records a query-time recompilation of a stale
// derived field
func RecordDerivedRecompile(ok bool) {
	DerivedRecompiles.WithLabelValues(result(ok)).Inc()
}

// RecordBulkBatch records a bulk batch and its per-item outcomes
func RecordBulkBatch(size, failures int) {
	BulkBatchSize.Observe(float64(size))
	BulkItems.WithLabelValues("success").Add(float64(size - failures))
	BulkItems.WithLabelValues("error").Add(float64(failures))
}

// RecordCardHydration records a card reaching a hydration state
func RecordCardHydration(mode, state string) {
	CardHydrations.WithLabelValues(mode, state).Inc()
}

// RecordDashboardRefresh records a dashboard refresh cycle
func RecordDashboardRefresh(trigger string) {
	DashboardRefreshes.WithLabelValues(trigger).Inc()
}

// RecordCacheHit records a cache hit
func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// UpdateCacheSize sets the number of live entries of a cache
func UpdateCacheSize(cacheType string, entries int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(entries))
}

// RecordCacheEviction records evicted cache entries
func RecordCacheEviction(cacheType string, n int) {
	CacheEvictions.WithLabelValues(cacheType).Add(float64(n))
}

// RecordEventPublished records a published job lifecycle event
func RecordEventPublished(eventType string, err error) {
	EventsPublished.WithLabelValues(eventType, result(err == nil)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
