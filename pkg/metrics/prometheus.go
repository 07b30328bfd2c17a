// Package metrics provides Prometheus metrics for the lineup scanner service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the scanner.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	stageBuckets     []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Frame pipeline
	framesDecoded      prometheus.Counter
	framesSampled      prometheus.Counter
	candidates         prometheus.Counter
	matchScore         prometheus.Histogram
	extractFailures    prometheus.Counter
	extractLatency     prometheus.Histogram
	ocrLatency         prometheus.Histogram
	rostersRejected    *prometheus.CounterVec
	rostersConfirmed   prometheus.Counter
	rostersPersisted   prometheus.Counter
	duplicateInserts   prometheus.Counter
	framesSkipped      prometheus.Counter
	activeScans        prometheus.Gauge
	scansTotal         *prometheus.CounterVec
	scanDuration       prometheus.Histogram
	videoFetchLatency  prometheus.Histogram
	eventsPublished    *prometheus.CounterVec
	eventsDropped      *prometheus.CounterVec
	storeQueryLatency  prometheus.Histogram
	storeInsertLatency prometheus.Histogram

	// Job queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueue     prometheus.Counter
	queueDequeue     prometheus.Counter
	queueEnqueueErrs prometheus.Counter
	workerCount      prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
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
		namespace:        "lineup",
		subsystem:        "scanner",
		histogramBuckets: prometheus.DefBuckets,
		stageBuckets:     []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of metric definitions
	m.framesDecoded = m.counter("frames_decoded_total", "Total number of frames read from the decoder")
	m.framesSampled = m.counter("frames_sampled_total", "Total number of frames analyzed by the template matcher")
	m.framesSkipped = m.counter("frames_skipped_total", "Total number of frames skipped after a confirmed roster")
	m.candidates = m.counter("candidates_total", "Total number of sampled frames whose score exceeded the match threshold")
	m.matchScore = m.histogram("match_score", "Correlation score of sampled frames against the template",
		[]float64{-0.5, 0, 0.25, 0.5, 0.7, 0.8, 0.85, 0.9, 0.95, 0.99})
	m.extractFailures = m.counter("extract_failures_total", "Total number of candidate frames that could not be extracted")
	m.extractLatency = m.histogram("extract_latency_milliseconds", "Exact-frame extraction latency in milliseconds", m.stageBuckets)
	m.ocrLatency = m.histogram("ocr_latency_milliseconds", "Preprocessing plus OCR latency in milliseconds", m.stageBuckets)
	m.rostersRejected = m.counterVec("rosters_rejected_total", "Parsed token sequences that did not yield a roster", "reason")
	m.rostersConfirmed = m.counter("rosters_confirmed_total", "Rosters that reached the confirm threshold")
	m.rostersPersisted = m.counter("rosters_persisted_total", "Rosters written to the roster store")
	m.duplicateInserts = m.counter("duplicate_inserts_total", "Confirmed rosters already present in the roster store")
	m.activeScans = m.gauge("active_scans", "Number of scans currently running")
	m.scansTotal = m.counterVec("scans_total", "Finished scans by outcome", "outcome")
	m.scanDuration = m.histogram("scan_duration_seconds", "Wall time of finished scans in seconds",
		[]float64{1, 5, 15, 30, 60, 120, 300, 600, 1200})
	m.videoFetchLatency = m.histogram("video_fetch_latency_milliseconds", "Latency of locating and downloading the input video", m.stageBuckets)
	m.eventsPublished = m.counterVec("events_published_total", "Progress events delivered by sink", "sink")
	m.eventsDropped = m.counterVec("events_dropped_total", "Progress events dropped by sink", "sink")
	m.storeQueryLatency = m.histogram("store_query_latency_milliseconds", "Roster store read latency in milliseconds", m.histogramBuckets)
	m.storeInsertLatency = m.histogram("store_insert_latency_milliseconds", "Roster store insert latency in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Current number of queued scan jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued scan jobs")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Total number of scan jobs enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Total number of scan jobs dequeued")
	m.queueEnqueueErrs = m.counter("queue_enqueue_errors_total", "Total number of rejected scan job submissions")
	m.workerCount = m.gauge("worker_count", "Number of scan workers")

	auto := promauto.With(m.registry)
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordFrameDecoded increments the decoded frames counter.
func RecordFrameDecoded() { globalManager.framesDecoded.Inc() }

// RecordFramesSkipped adds n to the skipped frames counter.
func RecordFramesSkipped(n int) { globalManager.framesSkipped.Add(float64(n)) }

// RecordFrameSampled records a sampled frame and its match score.
func RecordFrameSampled(score float64) {
	globalManager.framesSampled.Inc()
	globalManager.matchScore.Observe(score)
}

// RecordCandidate increments the candidate counter.
func RecordCandidate() { globalManager.candidates.Inc() }

// RecordExtractFailure increments the extraction failure counter.
func RecordExtractFailure() { globalManager.extractFailures.Inc() }

// RecordExtractLatency records extraction latency in milliseconds.
func RecordExtractLatency(latencyMs float64) { globalManager.extractLatency.Observe(latencyMs) }

// RecordOCRLatency records OCR latency in milliseconds.
func RecordOCRLatency(latencyMs float64) { globalManager.ocrLatency.Observe(latencyMs) }

// RecordRosterRejected counts a parse that did not yield a roster.
func RecordRosterRejected(reason string) { globalManager.rostersRejected.WithLabelValues(reason).Inc() }

// RecordRosterConfirmed increments the confirmed rosters counter.
func RecordRosterConfirmed() { globalManager.rostersConfirmed.Inc() }

// RecordRosterPersisted increments the persisted rosters counter.
func RecordRosterPersisted() { globalManager.rostersPersisted.Inc() }

// RecordDuplicateInsert increments the duplicate insert counter.
func RecordDuplicateInsert() { globalManager.duplicateInserts.Inc() }

// ScanStarted increments the active scan gauge.
func ScanStarted() { globalManager.activeScans.Inc() }

// ScanFinished decrements the active scan gauge and records the outcome.
func ScanFinished(outcome string, seconds float64) {
	globalManager.activeScans.Dec()
	globalManager.scansTotal.WithLabelValues(outcome).Inc()
	globalManager.scanDuration.Observe(seconds)
}

// RecordVideoFetchLatency records how long it took to obtain the input video.
func RecordVideoFetchLatency(latencyMs float64) { globalManager.videoFetchLatency.Observe(latencyMs) }

// RecordEventPublished counts an event delivered by a sink.
func RecordEventPublished(sink string) { globalManager.eventsPublished.WithLabelValues(sink).Inc() }

// RecordEventDropped counts an event a sink could not deliver.
func RecordEventDropped(sink string) { globalManager.eventsDropped.WithLabelValues(sink).Inc() }

// RecordStoreQueryLatency records roster store read latency.
func RecordStoreQueryLatency(latencyMs float64) { globalManager.storeQueryLatency.Observe(latencyMs) }

// RecordStoreInsertLatency records roster store insert latency.
func RecordStoreInsertLatency(latencyMs float64) { globalManager.storeInsertLatency.Observe(latencyMs) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueue.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeue.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrs.Inc() }

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

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

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
