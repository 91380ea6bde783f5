// Package metrics provides Prometheus metrics for the tempoguard detection engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Ingress
	eventsNormalized *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	eventsDuplicate  prometheus.Counter

	// Detection
	checkEvaluations  *prometheus.CounterVec
	scoreDeltas       *prometheus.CounterVec
	escalations       *prometheus.CounterVec
	resets            *prometheus.CounterVec
	processingLatency prometheus.Histogram
	participants      prometheus.Gauge

	// Serialization point
	queueSize          prometheus.Gauge
	queueRejected      prometheus.Counter
	workerErrors       prometheus.Counter
	workerCount        prometheus.Gauge
	taskLatencyByKind  *prometheus.HistogramVec

	// Cluster synchronization
	verdictsPublished *prometheus.CounterVec
	verdictsReceived  *prometheus.CounterVec
	reconcileSweeps   prometheus.Counter
	reconcileVerdicts prometheus.Counter

	// Async side effects
	alertsDispatched *prometheus.CounterVec
	persistence      *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors and runtime
	errorRateByComponent *prometheus.CounterVec
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "tempoguard",
		subsystem:        "engine",
		histogramBuckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
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

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.eventsNormalized = m.counterVec("events_normalized_total", "Events accepted by the normalizer by event type", "event_type")
	m.eventsDropped = m.counterVec("events_dropped_total", "Events dropped before or during processing by reason", "reason")
	m.eventsDuplicate = m.counter("events_duplicate_total", "Duplicate deliveries suppressed")

	m.checkEvaluations = m.counterVec("check_evaluations_total", "Check evaluations by check id", "check")
	m.scoreDeltas = m.counterVec("score_deltas_total", "Non-zero score deltas by check id and sign", "check", "sign")
	m.escalations = m.counterVec("escalations_total", "Local escalations by check id and level", "check", "level")
	m.resets = m.counterVec("resets_total", "Administrative resets by origin", "origin")
	m.processingLatency = m.histogram("event_processing_latency_milliseconds", "Time from dequeue to ledger update for one event")
	m.participants = m.gauge("participants", "Participants with live state on this node")

	m.queueSize = m.gauge("queue_size", "Tasks waiting in all partitions")
	m.queueRejected = m.counter("queue_rejected_total", "Tasks rejected because a partition was full")
	m.workerErrors = m.counter("worker_errors_total", "Tasks whose handler returned an error")
	m.workerCount = m.gauge("worker_count", "Partition workers running")
	m.taskLatencyByKind = m.histogramVec("task_latency_milliseconds", "Handler latency per task kind", "kind")

	m.verdictsPublished = m.counterVec("verdicts_published_total", "Cluster verdict publish attempts by outcome", "outcome")
	m.verdictsReceived = m.counterVec("verdicts_received_total", "Cluster verdicts received by outcome", "outcome")
	m.reconcileSweeps = m.counter("reconcile_sweeps_total", "Reconciliation sweeps executed")
	m.reconcileVerdicts = m.counter("reconcile_verdicts_total", "Verdicts re-broadcast by reconciliation sweeps")

	m.alertsDispatched = m.counterVec("alerts_dispatched_total", "Alert notifications by notifier and outcome", "notifier", "outcome")
	m.persistence = m.counterVec("persistence_writes_total", "Persistence gateway writes by outcome", "outcome")
	m.breakerState = m.gaugeVec("circuit_breaker_state", "Circuit breaker state (0 closed, 1 half-open, 2 open)", "breaker")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")
	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordEventNormalized counts an event accepted by the normalizer.
func RecordEventNormalized(eventType string) {
	globalManager.eventsNormalized.WithLabelValues(eventType).Inc()
}

// RecordEventDropped counts an event dropped for the given reason.
func RecordEventDropped(reason string) {
	globalManager.eventsDropped.WithLabelValues(reason).Inc()
}

// RecordEventDuplicate increments the duplicate deliveries counter.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// RecordCheckEvaluation counts one check invocation.
func RecordCheckEvaluation(checkID string) {
	globalManager.checkEvaluations.WithLabelValues(checkID).Inc()
}

// RecordScoreDelta counts a non-zero delta by sign.
func RecordScoreDelta(checkID string, amount float64) {
	sign := "positive"
	if amount < 0 {
		sign = "negative"
	}
	globalManager.scoreDeltas.WithLabelValues(checkID, sign).Inc()
}

// RecordEscalation counts a local escalation.
func RecordEscalation(checkID, level string) {
	globalManager.escalations.WithLabelValues(checkID, level).Inc()
}

// RecordReset counts an administrative reset; origin is "local" or "remote".
func RecordReset(origin string) {
	globalManager.resets.WithLabelValues(origin).Inc()
}

// RecordProcessingLatency records per-event processing latency in milliseconds.
func RecordProcessingLatency(latencyMs float64) {
	globalManager.processingLatency.Observe(latencyMs)
}

// UpdateParticipants sets the live participant gauge.
func UpdateParticipants(count int) {
	globalManager.participants.Set(float64(count))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordQueueRejected counts a task rejected on backpressure.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// RecordWorkerError counts a failed task.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordTaskLatency records handler latency for a task kind.
func RecordTaskLatency(kind string, latencyMs float64) {
	globalManager.taskLatencyByKind.WithLabelValues(kind).Observe(latencyMs)
}

// RecordVerdictPublished counts a publish attempt; outcome is "ok", "error" or "dropped".
func RecordVerdictPublished(outcome string) {
	globalManager.verdictsPublished.WithLabelValues(outcome).Inc()
}

// RecordVerdictReceived counts a received verdict by outcome.
func RecordVerdictReceived(outcome string) {
	globalManager.verdictsReceived.WithLabelValues(outcome).Inc()
}

// RecordReconcileSweep counts one sweep and the verdicts it re-broadcast.
func RecordReconcileSweep(verdicts int) {
	globalManager.reconcileSweeps.Inc()
	globalManager.reconcileVerdicts.Add(float64(verdicts))
}

// RecordAlert counts an alert notification attempt.
func RecordAlert(notifier, outcome string) {
	globalManager.alertsDispatched.WithLabelValues(notifier, outcome).Inc()
}

// RecordPersistence counts a persistence write attempt.
func RecordPersistence(outcome string) {
	globalManager.persistence.WithLabelValues(outcome).Inc()
}

// UpdateBreakerState publishes a circuit breaker state.
func UpdateBreakerState(name string, state int) {
	globalManager.breakerState.WithLabelValues(name).Set(float64(state))
}

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

// UpdateSystemMemoryUsage sets the heap memory usage in bytes.
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
