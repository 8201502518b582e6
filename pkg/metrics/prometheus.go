// Package metrics provides Prometheus metrics for the waypoint checkpoint engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Engine
	transitions        *prometheus.CounterVec
	tickDuration       *prometheus.HistogramVec
	playersEvaluated   *prometheus.CounterVec
	activeParticipants *prometheus.GaugeVec
	autoLeaves         *prometheus.CounterVec
	transitionErrors   *prometheus.CounterVec

	// Stores
	storeWrites       *prometheus.CounterVec
	storeWriteLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
	documentLoads     *prometheus.CounterVec
	cachedPlayers     *prometheus.GaugeVec
	variantsTotal     *prometheus.GaugeVec

	// Ranking
	rankingLatency  *prometheus.HistogramVec
	rankingScanned  *prometheus.GaugeVec
	rankingRequests *prometheus.CounterVec

	// Effect dispatch
	effectsEnqueued   prometheus.Counter
	effectsDropped    prometheus.Counter
	effectsDispatched prometheus.Counter
	effectErrors      prometheus.Counter
	effectQueueSize   prometheus.Gauge
	dispatcherCount   prometheus.Gauge

	// Commands
	commands *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Init rebuilds the global manager from opts on a fresh registry. It is meant
// to run once at startup; values recorded before it are discarded.
func Init(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "waypoint",
		subsystem:        "engine",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.transitions = m.counterVec("transitions_total",
		"Checkpoint transitions by event type, portal type and result", "event", "portal", "result")
	m.tickDuration = m.histogramVec("tick_duration_milliseconds",
		"Wall time spent evaluating one tick for an event type", "event")
	m.playersEvaluated = m.counterVec("players_evaluated_total",
		"Players scanned by the tick evaluator", "event")
	m.activeParticipants = m.gaugeVec("active_participants",
		"Running (participating, unfinished) players seen in the last tick", "event")
	m.autoLeaves = m.counterVec("auto_leaves_total",
		"Players removed from a variant for leaving its bounds", "event")
	m.transitionErrors = m.counterVec("transition_errors_total",
		"Transitions that could not be persisted", "event")

	m.storeWrites = m.counterVec("store_writes_total",
		"Full document rewrites by store", "store")
	m.storeWriteLatency = m.histogramVec("store_write_latency_milliseconds",
		"Document rewrite latency by store", "store")
	m.storeErrors = m.counterVec("store_errors_total",
		"Store failures by store and operation", "store", "op")
	m.documentLoads = m.counterVec("document_loads_total",
		"Documents loaded from the document store by store", "store")
	m.cachedPlayers = m.gaugeVec("cached_players",
		"Players with progress materialised in memory", "event")
	m.variantsTotal = m.gaugeVec("variants",
		"Configured variants by event type", "event")

	m.rankingLatency = m.histogramVec("ranking_latency_milliseconds",
		"Ranking computation latency including the player scan", "event")
	m.rankingScanned = m.gaugeVec("ranking_players_scanned",
		"Players scanned by the last ranking query", "event")
	m.rankingRequests = m.counterVec("ranking_requests_total",
		"Ranking queries by event type", "event")

	m.effectsEnqueued = m.counter("effects_enqueued_total", "Presentation effects accepted by the queue")
	m.effectsDropped = m.counter("effects_dropped_total", "Presentation effects dropped (queue full or closed)")
	m.effectsDispatched = m.counter("effects_dispatched_total", "Presentation effects delivered to the presenter")
	m.effectErrors = m.counter("effect_errors_total", "Presenter failures")
	m.effectQueueSize = m.gauge("effect_queue_size", "Current effect queue backlog")
	m.dispatcherCount = m.gauge("dispatcher_count", "Effect dispatcher goroutines")

	m.commands = m.counterVec("commands_total",
		"Commands by name and outcome", "command", "outcome")

	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.httpErrors = m.counterVec("http_errors_total",
		"HTTP error responses by endpoint and error type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// GetRegistry returns the registry the global manager writes to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RecordTransition counts one evaluated checkpoint transition.
func RecordTransition(event, portal, result string) {
	globalManager.transitions.WithLabelValues(event, portal, result).Inc()
}

// RecordTickDuration observes the evaluation time of one tick.
func RecordTickDuration(event string, ms float64) {
	globalManager.tickDuration.WithLabelValues(event).Observe(ms)
}

// AddPlayersEvaluated adds n scanned players.
func AddPlayersEvaluated(event string, n int) {
	globalManager.playersEvaluated.WithLabelValues(event).Add(float64(n))
}

// UpdateActiveParticipants sets the running player count.
func UpdateActiveParticipants(event string, n int) {
	globalManager.activeParticipants.WithLabelValues(event).Set(float64(n))
}

// RecordAutoLeave counts one forced leave.
func RecordAutoLeave(event string) {
	globalManager.autoLeaves.WithLabelValues(event).Inc()
}

// RecordTransitionError counts one transition that failed to persist.
func RecordTransitionError(event string) {
	globalManager.transitionErrors.WithLabelValues(event).Inc()
}

// RecordStoreWrite counts one document rewrite and its latency.
func RecordStoreWrite(store string, ms float64) {
	globalManager.storeWrites.WithLabelValues(store).Inc()
	globalManager.storeWriteLatency.WithLabelValues(store).Observe(ms)
}

// RecordStoreError counts one failed store operation.
func RecordStoreError(store, op string) {
	globalManager.storeErrors.WithLabelValues(store, op).Inc()
}

// RecordDocumentLoad counts one document materialised into a cache.
func RecordDocumentLoad(store string) {
	globalManager.documentLoads.WithLabelValues(store).Inc()
}

// UpdateCachedPlayers sets the number of cached players for an event type.
func UpdateCachedPlayers(event string, n int) {
	globalManager.cachedPlayers.WithLabelValues(event).Set(float64(n))
}

// UpdateVariants sets the number of configured variants for an event type.
func UpdateVariants(event string, n int) {
	globalManager.variantsTotal.WithLabelValues(event).Set(float64(n))
}

// RecordRanking observes one ranking query.
func RecordRanking(event string, scanned int, ms float64) {
	globalManager.rankingRequests.WithLabelValues(event).Inc()
	globalManager.rankingScanned.WithLabelValues(event).Set(float64(scanned))
	globalManager.rankingLatency.WithLabelValues(event).Observe(ms)
}

// RecordEffectEnqueued counts one accepted effect.
func RecordEffectEnqueued() { globalManager.effectsEnqueued.Inc() }

// RecordEffectDropped counts one dropped effect.
func RecordEffectDropped() { globalManager.effectsDropped.Inc() }

// RecordEffectDispatched counts one delivered effect.
func RecordEffectDispatched() { globalManager.effectsDispatched.Inc() }

// RecordEffectError counts one presenter failure.
func RecordEffectError() { globalManager.effectErrors.Inc() }

// UpdateEffectQueueSize sets the effect backlog.
func UpdateEffectQueueSize(n int) { globalManager.effectQueueSize.Set(float64(n)) }

// UpdateDispatcherCount sets the number of dispatcher goroutines.
func UpdateDispatcherCount(n int) { globalManager.dispatcherCount.Set(float64(n)) }

// RecordCommand counts a command with its outcome (ok, rejected, error).
func RecordCommand(command, outcome string) {
	globalManager.commands.WithLabelValues(command, outcome).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordHTTPError records an HTTP error response.
func RecordHTTPError(endpoint, method, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap allocation gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutineCount.Set(float64(n))
}
