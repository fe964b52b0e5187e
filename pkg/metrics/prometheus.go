// Package metrics provides Prometheus metrics for the rating race engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Seek outcomes used as label values.
const (
	SeekExact      = "exact"
	SeekNearest    = "nearest"
	SeekOutOfRange = "out_of_range"
	SeekNoFrames   = "no_frames"
)

// Manager owns every collector exported by the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingestion
	recordsIngested prometheus.Counter
	recordsDropped  prometheus.Counter
	reignsSkipped   prometheus.Counter
	framesBuilt     prometheus.Counter
	buildLatency    prometheus.Histogram
	yearsLoaded     prometheus.Gauge
	frameCacheHits  *prometheus.CounterVec

	// Playback
	ticks        prometheus.Counter
	autoStops    prometheus.Counter
	seeks        *prometheus.CounterVec
	playing      prometheus.Gauge
	speed        prometheus.Gauge
	frameIndex   prometheus.Gauge
	timerStarts  prometheus.Counter
	timerStops   prometheus.Counter
	invalidSpeed prometheus.Counter

	// Event bus
	eventsPublished *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	queueSize       prometheus.Gauge
	queueCapacity   prometheus.Gauge
	dispatchLatency prometheus.Histogram
	subscribers     prometheus.Gauge
	handlerPanics   prometheus.Counter

	// Loader
	loadErrors *prometheus.CounterVec

	// Process
	memoryUsage    prometheus.Gauge
	goroutineCount prometheus.Gauge
	recordsHeld    prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level helpers

// Custom registry keeps the default Go collectors out of the scrape.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // shared registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "barrace",
		subsystem:        "engine",
		histogramBuckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 50, 100, 500},
		constLabels:      prometheus.Labels{},
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

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.recordsIngested = m.counter("records_ingested_total", "Rating records handed to the frame builder")
	m.recordsDropped = m.counter("records_dropped_total", "Rating records discarded by the validity filter")
	m.reignsSkipped = m.counter("reigns_skipped_total", "Champion date-range parts that did not match the pattern")
	m.framesBuilt = m.counter("frames_built_total", "Year frames produced by the frame builder")
	m.buildLatency = m.histogram("build_latency_milliseconds", "Time to build a frame table")
	m.yearsLoaded = m.gauge("years_loaded", "Number of years in the loaded frame table")
	m.frameCacheHits = m.counterVec("frame_cache_total", "Frame table cache lookups", "result")

	m.ticks = m.counter("playback_ticks_total", "Timer ticks applied by the sequencer")
	m.autoStops = m.counter("playback_auto_stops_total", "Playbacks that stopped on the last frame")
	m.seeks = m.counterVec("playback_seeks_total", "Seek attempts by outcome", "outcome")
	m.playing = m.gauge("playback_playing", "1 while the sequencer is playing")
	m.speed = m.gauge("playback_speed", "Current speed multiplier")
	m.frameIndex = m.gauge("playback_frame_index", "Current frame index")
	m.timerStarts = m.counter("playback_timer_starts_total", "Repeating timers started")
	m.timerStops = m.counter("playback_timer_stops_total", "Repeating timers stopped")
	m.invalidSpeed = m.counter("playback_invalid_speed_total", "Rejected speed multipliers")

	m.eventsPublished = m.counterVec("events_published_total", "Events accepted by the queue", "kind")
	m.eventsDropped = m.counterVec("events_dropped_total", "Events rejected by the queue", "reason")
	m.queueSize = m.gauge("queue_size", "Events waiting for dispatch")
	m.queueCapacity = m.gauge("queue_capacity", "Queue capacity")
	m.dispatchLatency = m.histogram("dispatch_latency_milliseconds", "Time to deliver one event to all subscribers")
	m.subscribers = m.gauge("subscribers", "Registered event subscribers")
	m.handlerPanics = m.counter("handler_panics_total", "Subscriber handlers that panicked")

	m.loadErrors = m.counterVec("load_errors_total", "Source loading failures", "source")

	m.memoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.goroutineCount = m.gauge("system_goroutines", "Live goroutines")
	m.recordsHeld = m.gauge("records_held", "Raw rating records held by the store")
}

// Ingestion.

// RecordRecordsIngested adds n records seen by the builder.
func RecordRecordsIngested(n int) { globalManager.recordsIngested.Add(float64(n)) }

// RecordRecordsDropped adds n records discarded by the validity filter.
func RecordRecordsDropped(n int) { globalManager.recordsDropped.Add(float64(n)) }

// RecordReignSkipped counts an unparseable champion date-range part.
func RecordReignSkipped() { globalManager.reignsSkipped.Inc() }

// RecordFramesBuilt adds n built frames.
func RecordFramesBuilt(n int) { globalManager.framesBuilt.Add(float64(n)) }

// RecordBuildLatency observes a table build duration in milliseconds.
func RecordBuildLatency(ms float64) { globalManager.buildLatency.Observe(ms) }

// UpdateYearsLoaded sets the number of years in the active table.
func UpdateYearsLoaded(n int) { globalManager.yearsLoaded.Set(float64(n)) }

// RecordFrameCache counts a cache lookup; hit selects the label.
func RecordFrameCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.frameCacheHits.WithLabelValues(result).Inc()
}

// Playback.

// RecordTick counts an applied timer tick.
func RecordTick() { globalManager.ticks.Inc() }

// RecordAutoStop counts a playback that reached the last frame.
func RecordAutoStop() { globalManager.autoStops.Inc() }

// RecordSeek counts a seek attempt with one of the Seek* outcomes.
func RecordSeek(outcome string) { globalManager.seeks.WithLabelValues(outcome).Inc() }

// UpdatePlaying sets the playing gauge.
func UpdatePlaying(playing bool) {
	v := 0.0
	if playing {
		v = 1
	}
	globalManager.playing.Set(v)
}

// UpdateSpeed sets the speed gauge.
func UpdateSpeed(speed float64) { globalManager.speed.Set(speed) }

// UpdateFrameIndex sets the frame index gauge.
func UpdateFrameIndex(i int) { globalManager.frameIndex.Set(float64(i)) }

// RecordTimerStart counts a started timer.
func RecordTimerStart() { globalManager.timerStarts.Inc() }

// RecordTimerStop counts a stopped timer.
func RecordTimerStop() { globalManager.timerStops.Inc() }

// RecordInvalidSpeed counts a rejected speed multiplier.
func RecordInvalidSpeed() { globalManager.invalidSpeed.Inc() }

// Event bus.

// RecordEventPublished counts an accepted event of the given kind.
func RecordEventPublished(kind string) { globalManager.eventsPublished.WithLabelValues(kind).Inc() }

// RecordEventDropped counts a rejected event.
func RecordEventDropped(reason string) { globalManager.eventsDropped.WithLabelValues(reason).Inc() }

// UpdateQueueSize sets the queue depth gauge.
func UpdateQueueSize(n int) { globalManager.queueSize.Set(float64(n)) }

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(n int) { globalManager.queueCapacity.Set(float64(n)) }

// RecordDispatchLatency observes the fan-out time of one event in milliseconds.
func RecordDispatchLatency(ms float64) { globalManager.dispatchLatency.Observe(ms) }

// UpdateSubscribers sets the subscriber gauge.
func UpdateSubscribers(n int) { globalManager.subscribers.Set(float64(n)) }

// RecordHandlerPanic counts a recovered subscriber panic.
func RecordHandlerPanic() { globalManager.handlerPanics.Inc() }

// Loader.

// RecordLoadError counts a loader failure for source ("csv", "sqlite").
func RecordLoadError(source string) { globalManager.loadErrors.WithLabelValues(source).Inc() }

// Process.

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.memoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of live goroutines.
func UpdateSystemGoroutineCount(n int) { globalManager.goroutineCount.Set(float64(n)) }

// UpdateRecordsHeld sets the number of raw records in the store.
func UpdateRecordsHeld(n int) { globalManager.recordsHeld.Set(float64(n)) }

// GetRegistry returns the registry holding the engine metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
