// Package metrics provides Prometheus metrics for the wpmrank leaderboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Submission pipeline
	submissions       *prometheus.CounterVec
	rejections        *prometheus.CounterVec
	validatorWarnings prometheus.Counter
	submitLatency     prometheus.Histogram

	// Store and ranking
	storeInsertLatency prometheus.Histogram
	storeQueryLatency  *prometheus.HistogramVec
	storeErrors        *prometheus.CounterVec
	rankingLatency     *prometheus.HistogramVec
	totalUsers         prometheus.Gauge
	totalScores        prometheus.Gauge

	// Cache
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec
	cacheEntries       prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
	rateLimited         prometheus.Counter

	// Audit queue and workers
	auditQueueSize      prometheus.Gauge
	auditEnqueued       prometheus.Counter
	auditDropped        *prometheus.CounterVec
	auditProcessed      prometheus.Counter
	auditLatency        prometheus.Histogram
	replaySuspicions    prometheus.Counter
	auditWorkersRunning prometheus.Gauge

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid leaking default collectors into /metrics.
var customRegistry *prometheus.Registry //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	Init()
}

// Init rebuilds the global manager on a fresh registry with opts applied.
// Call it once at startup, before anything records or serves /metrics.
func Init(opts ...Option) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	globalManager = NewManager(append(opts, WithPrometheusRegistry(registry))...)
	customRegistry = registry
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "wpmrank",
		subsystem:        "leaderboard",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets, ConstLabels: m.constLabels}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.submissions = auto.NewCounterVec(m.counterOpts("submissions_total", "Score submissions by terminal outcome"), []string{"outcome"})
	m.rejections = auto.NewCounterVec(m.counterOpts("rejections_total", "Anti-cheat rejections by error code"), []string{"code"})
	m.validatorWarnings = auto.NewCounter(m.counterOpts("validator_warnings_total", "Borderline submissions that passed with a warning"))
	m.submitLatency = auto.NewHistogram(m.histogramOpts("submit_latency_milliseconds", "End-to-end submission latency in milliseconds"))

	m.storeInsertLatency = auto.NewHistogram(m.histogramOpts("store_insert_latency_milliseconds", "Score store insert latency in milliseconds"))
	m.storeQueryLatency = auto.NewHistogramVec(m.histogramOpts("store_query_latency_milliseconds", "Score store query latency in milliseconds"), []string{"query"})
	m.storeErrors = auto.NewCounterVec(m.counterOpts("store_errors_total", "Score store errors by operation"), []string{"operation"})
	m.rankingLatency = auto.NewHistogramVec(m.histogramOpts("ranking_latency_milliseconds", "Ranking engine query latency in milliseconds"), []string{"operation"})
	m.totalUsers = auto.NewGauge(m.gaugeOpts("users", "Distinct usernames with at least one score"))
	m.totalScores = auto.NewGauge(m.gaugeOpts("scores", "Score events persisted"))

	m.cacheHits = auto.NewCounterVec(m.counterOpts("cache_hits_total", "Leaderboard cache hits by key family"), []string{"family"})
	m.cacheMisses = auto.NewCounterVec(m.counterOpts("cache_misses_total", "Leaderboard cache misses by key family"), []string{"family"})
	m.cacheInvalidations = auto.NewCounterVec(m.counterOpts("cache_invalidations_total", "Cache entries removed by invalidation kind"), []string{"kind"})
	m.cacheEntries = auto.NewGauge(m.gaugeOpts("cache_entries", "Live cache entries"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})
	m.httpErrors = auto.NewCounterVec(m.counterOpts("http_errors_total", "HTTP error responses by endpoint and error type"), []string{"endpoint", "error_type"})
	m.rateLimited = auto.NewCounter(m.counterOpts("rate_limited_total", "Requests rejected by the submission rate limiter"))

	m.auditQueueSize = auto.NewGauge(m.gaugeOpts("audit_queue_size", "Audit events waiting to be processed"))
	m.auditEnqueued = auto.NewCounter(m.counterOpts("audit_enqueued_total", "Audit events accepted by the queue"))
	m.auditDropped = auto.NewCounterVec(m.counterOpts("audit_dropped_total", "Audit events dropped by reason"), []string{"reason"})
	m.auditProcessed = auto.NewCounter(m.counterOpts("audit_processed_total", "Audit events processed by workers"))
	m.auditLatency = auto.NewHistogram(m.histogramOpts("audit_latency_milliseconds", "Audit event processing latency in milliseconds"))
	m.replaySuspicions = auto.NewCounter(m.counterOpts("replay_suspicions_total", "Submissions whose keystroke payload was seen before"))
	m.auditWorkersRunning = auto.NewGauge(m.gaugeOpts("audit_workers", "Running audit workers"))

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
}

// Submission pipeline.

// RecordSubmission counts a submission by its terminal outcome.
func RecordSubmission(outcome string) {
	globalManager.submissions.WithLabelValues(outcome).Inc()
}

// RecordRejection counts an anti-cheat rejection by error code tag.
func RecordRejection(code string) {
	globalManager.rejections.WithLabelValues(code).Inc()
}

// RecordValidatorWarning counts a borderline submission that was let through.
func RecordValidatorWarning() {
	globalManager.validatorWarnings.Inc()
}

// RecordSubmitLatency records end-to-end submission latency.
func RecordSubmitLatency(latencyMs float64) {
	globalManager.submitLatency.Observe(latencyMs)
}

// Store and ranking.

// RecordStoreInsertLatency records store insert latency.
func RecordStoreInsertLatency(latencyMs float64) {
	globalManager.storeInsertLatency.Observe(latencyMs)
}

// RecordStoreQueryLatency records store query latency for a named query.
func RecordStoreQueryLatency(query string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(query).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(operation string) {
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

// RecordRankingLatency records a ranking engine operation.
func RecordRankingLatency(operation string, latencyMs float64) {
	globalManager.rankingLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateTotalUsers sets the distinct user count.
func UpdateTotalUsers(count int) {
	globalManager.totalUsers.Set(float64(count))
}

// UpdateTotalScores sets the persisted score count.
func UpdateTotalScores(count int) {
	globalManager.totalScores.Set(float64(count))
}

// Cache.

// RecordCacheHit counts a cache hit for a key family ("leaderboard", "rank").
func RecordCacheHit(family string) {
	globalManager.cacheHits.WithLabelValues(family).Inc()
}

// RecordCacheMiss counts a cache miss for a key family.
func RecordCacheMiss(family string) {
	globalManager.cacheMisses.WithLabelValues(family).Inc()
}

// RecordCacheInvalidation counts entries removed by an invalidation kind ("prefix", "key", "expired", "flush").
func RecordCacheInvalidation(kind string, removed int) {
	if removed <= 0 {
		return
	}
	globalManager.cacheInvalidations.WithLabelValues(kind).Add(float64(removed))
}

// UpdateCacheEntries sets the live cache entry count.
func UpdateCacheEntries(count int) {
	globalManager.cacheEntries.Set(float64(count))
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordHTTPError records an error response.
func RecordHTTPError(endpoint, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, errorType).Inc()
}

// RecordRateLimited counts a request refused by the rate limiter.
func RecordRateLimited() {
	globalManager.rateLimited.Inc()
}

// Audit.

// UpdateAuditQueueSize sets the audit backlog.
func UpdateAuditQueueSize(size int) {
	globalManager.auditQueueSize.Set(float64(size))
}

// RecordAuditEnqueued counts an accepted audit event.
func RecordAuditEnqueued() {
	globalManager.auditEnqueued.Inc()
}

// RecordAuditDropped counts a dropped audit event.
func RecordAuditDropped(reason string) {
	globalManager.auditDropped.WithLabelValues(reason).Inc()
}

// RecordAuditProcessed counts a processed audit event and its latency.
func RecordAuditProcessed(latencyMs float64) {
	globalManager.auditProcessed.Inc()
	globalManager.auditLatency.Observe(latencyMs)
}

// RecordReplaySuspicion counts a repeated keystroke fingerprint.
func RecordReplaySuspicion() {
	globalManager.replaySuspicions.Inc()
}

// UpdateAuditWorkers sets the number of running audit workers.
func UpdateAuditWorkers(count int) {
	globalManager.auditWorkersRunning.Set(float64(count))
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
