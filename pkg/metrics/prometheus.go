// Package metrics provides Prometheus metrics for the schoolboard service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultNamespace       = "schoolboard"
	subsystem              = "dashboard"
	defaultRefreshInterval = 10 * time.Second
)

// defaultLatencyBuckets are in milliseconds, from a cached hit to a slow
// spreadsheet read.
var defaultLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 20000} //nolint:gochecknoglobals // read-only defaults

// Manager manages all Prometheus metrics for the schoolboard service.
type Manager struct {
	namespace       string
	latencyBuckets  []float64
	enabled         bool
	refreshInterval time.Duration
	constLabels     map[string]string
	registry        prometheus.Registerer

	// Cache Metrics
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheInvalidations prometheus.Counter
	cacheEntries       prometheus.Gauge

	// Source Metrics - reads against the backing tables
	sourceReads       *prometheus.CounterVec
	sourceFailures    *prometheus.CounterVec
	sourceReadLatency *prometheus.HistogramVec

	// Package Metrics
	packageDuration    *prometheus.HistogramVec
	packageRecords     *prometheus.GaugeVec
	packageQueries     *prometheus.CounterVec
	domainLoadFailures *prometheus.CounterVec
	joinRequests       *prometheus.CounterVec

	// Session Metrics
	sessionsActive prometheus.Gauge
	authFailures   prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Warm-up Queue Metrics
	queueCapacity      prometheus.Gauge
	queueSize          prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Warm-up Worker Metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       defaultNamespace,
		latencyBuckets:  defaultLatencyBuckets,
		enabled:         true,
		refreshInterval: defaultRefreshInterval,
		registry:        prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// Init replaces the global manager with one built from opts on a fresh
// registry. Call it once at startup, before metrics are served or recorded
// from other goroutines.
func Init(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(customRegistry))...)
}

// RefreshInterval reports how often gauge updaters should run.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RefreshInterval reports the global manager's sampling interval.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }

// Enabled reports whether recording is switched on.
func (m *Manager) Enabled() bool { return m.enabled }

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.cacheHits = auto.NewCounterVec(m.counterOpts("cache_hits_total",
		"Cache lookups served from a valid entry"), []string{"kind"})
	m.cacheMisses = auto.NewCounterVec(m.counterOpts("cache_misses_total",
		"Cache lookups that found no entry or an expired one"), []string{"kind"})
	m.cacheInvalidations = auto.NewCounter(m.counterOpts("cache_invalidations_total",
		"Number of explicit cache invalidations"))
	m.cacheEntries = auto.NewGauge(m.gaugeOpts("cache_entries",
		"Entries currently held by the cache, valid or expired"))

	m.sourceReads = auto.NewCounterVec(m.counterOpts("source_reads_total",
		"Underlying tabular source operations issued"), []string{"operation"})
	m.sourceFailures = auto.NewCounterVec(m.counterOpts("source_read_failures_total",
		"Tabular source operations that degraded to an empty result"), []string{"operation", "reason"})
	m.sourceReadLatency = auto.NewHistogramVec(m.histogramOpts("source_read_latency_milliseconds",
		"Latency of tabular source operations in milliseconds", m.latencyBuckets), []string{"operation"})

	m.packageDuration = auto.NewHistogramVec(m.histogramOpts("package_assembly_duration_milliseconds",
		"Wall-clock time of data package assembly in milliseconds", m.latencyBuckets), []string{"dashboard"})
	m.packageRecords = auto.NewGaugeVec(m.gaugeOpts("package_records",
		"Total records in the last assembled package"), []string{"dashboard"})
	m.packageQueries = auto.NewCounterVec(m.counterOpts("package_queries_total",
		"Source reads issued while assembling packages"), []string{"dashboard"})
	m.domainLoadFailures = auto.NewCounterVec(m.counterOpts("domain_load_failures_total",
		"Domain sections that were replaced by an empty section"), []string{"domain"})
	m.joinRequests = auto.NewCounterVec(m.counterOpts("join_requests_total",
		"Cross-domain join requests by outcome"), []string{"outcome"})

	m.sessionsActive = auto.NewGauge(m.gaugeOpts("sessions_active",
		"Sessions issued and not yet expired"))
	m.authFailures = auto.NewCounter(m.counterOpts("auth_failures_total",
		"Rejected passkey attempts"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.latencyBuckets), []string{"endpoint", "method", "status_code"})

	m.queueCapacity = auto.NewGauge(m.gaugeOpts("warm_queue_capacity", "Maximum warm-up queue capacity"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("warm_queue_size", "Current warm-up queue length"))
	m.queueEnqueue = auto.NewCounter(m.counterOpts("warm_queue_enqueue_total", "Warm-up jobs enqueued"))
	m.queueDequeue = auto.NewCounter(m.counterOpts("warm_queue_dequeue_total", "Warm-up jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("warm_queue_enqueue_errors_total", "Warm-up jobs rejected by the queue"))

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("warm_worker_count", "Number of warm-up workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("warm_job_latency_milliseconds",
		"Warm-up job processing latency in milliseconds", m.latencyBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("warm_job_errors_total", "Warm-up jobs that failed"))

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Total number of errors by component"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total",
		"Total number of errors by type"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Total number of errors by endpoint"), []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogramOpts("error_latency_milliseconds",
		"Latency of operations that resulted in errors", m.latencyBuckets), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Cache Metrics Functions.

// RecordCacheHit counts a lookup served from a valid entry.
func RecordCacheHit(kind string) {
	if globalManager.enabled {
		globalManager.cacheHits.WithLabelValues(kind).Inc()
	}
}

// RecordCacheMiss counts a lookup that found nothing usable.
func RecordCacheMiss(kind string) {
	if globalManager.enabled {
		globalManager.cacheMisses.WithLabelValues(kind).Inc()
	}
}

// RecordCacheInvalidation counts an explicit invalidation.
func RecordCacheInvalidation() {
	if globalManager.enabled {
		globalManager.cacheInvalidations.Inc()
	}
}

// UpdateCacheEntries sets the number of cache entries.
func UpdateCacheEntries(n int) {
	globalManager.cacheEntries.Set(float64(n))
}

// Source Metrics Functions.

// RecordSourceRead counts one issued source operation and its latency.
func RecordSourceRead(operation string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.sourceReads.WithLabelValues(operation).Inc()
	globalManager.sourceReadLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordSourceFailure counts a source operation that degraded to empty.
func RecordSourceFailure(operation, reason string) {
	if globalManager.enabled {
		globalManager.sourceFailures.WithLabelValues(operation, reason).Inc()
	}
}

// Package Metrics Functions.

// RecordPackageAssembly records one assembly call.
func RecordPackageAssembly(dashboard string, durationMs float64, records, queries int) {
	if !globalManager.enabled {
		return
	}
	globalManager.packageDuration.WithLabelValues(dashboard).Observe(durationMs)
	globalManager.packageRecords.WithLabelValues(dashboard).Set(float64(records))
	globalManager.packageQueries.WithLabelValues(dashboard).Add(float64(queries))
}

// RecordDomainLoadFailure counts a section replaced by an empty one.
func RecordDomainLoadFailure(domain string) {
	if globalManager.enabled {
		globalManager.domainLoadFailures.WithLabelValues(domain).Inc()
	}
}

// RecordJoinRequest counts a join by outcome (ok, no_selection, error).
func RecordJoinRequest(outcome string) {
	if globalManager.enabled {
		globalManager.joinRequests.WithLabelValues(outcome).Inc()
	}
}

// Session Metrics Functions.

// UpdateSessionsActive sets the live session count.
func UpdateSessionsActive(n int) {
	globalManager.sessionsActive.Set(float64(n))
}

// RecordAuthFailure counts a rejected passkey.
func RecordAuthFailure() {
	if globalManager.enabled {
		globalManager.authFailures.Inc()
	}
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue Metrics Functions.

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
