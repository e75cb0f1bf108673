package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics contains the Prometheus metrics of sources, the registry and
// the coordinator. All methods are safe on a nil receiver so components can
// run without metrics.
type EngineMetrics struct {
	SourcesActive     prometheus.Gauge
	SourcesOpened     prometheus.Counter
	SourcesRetired    *prometheus.CounterVec
	SourceFailures    *prometheus.CounterVec
	Detections        *prometheus.CounterVec
	DiscoveryErrors   prometheus.Counter
	Fires             *prometheus.CounterVec
	RequestsDropped   *prometheus.CounterVec
	DebugFilesWritten prometheus.Counter
	TickDuration      prometheus.Histogram
	CoordinatorState  prometheus.Gauge
}

// NewEngineMetrics creates the engine metrics and registers them.
func NewEngineMetrics(registry prometheus.Registerer) (*EngineMetrics, error) {
	m := &EngineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register engine metrics: %w", err)
	}
	return m, nil
}

func (m *EngineMetrics) initMetrics() {
	m.SourcesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wakefire_sources_active",
		Help: "Number of detection sources currently tracked by the registry",
	})
	m.SourcesOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wakefire_sources_opened_total",
		Help: "Total number of detection sources successfully opened",
	})
	m.SourcesRetired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wakefire_sources_retired_total",
		Help: "Total number of detection sources torn down, by reason",
	}, []string{"reason"})
	m.SourceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wakefire_source_failures_total",
		Help: "Total number of detection source failures, by stage",
	}, []string{"stage"})
	m.Detections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wakefire_detections_total",
		Help: "Total number of wake phrase detections, by device",
	}, []string{"device"})
	m.DiscoveryErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wakefire_discovery_errors_total",
		Help: "Total number of failed capture device enumerations",
	})
	m.Fires = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wakefire_fires_total",
		Help: "Total number of actuations, by trigger kind",
	}, []string{"trigger"})
	m.RequestsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wakefire_requests_dropped_total",
		Help: "Total number of pending trigger requests cleared without firing, by trigger kind",
	}, []string{"trigger"})
	m.DebugFilesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wakefire_debug_files_written_total",
		Help: "Total number of debug audio files written",
	})
	m.TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wakefire_tick_duration_seconds",
		Help:    "Duration of coordinator ticks excluding the poll sleep",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
	m.CoordinatorState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wakefire_coordinator_state",
		Help: "Coordinator state (0 idle, 1 running, 2 stopping, 3 stopped)",
	})
}

// SetSourcesActive records the number of tracked sources.
func (m *EngineMetrics) SetSourcesActive(n int) {
	if m == nil {
		return
	}
	m.SourcesActive.Set(float64(n))
}

// SourceOpened counts a successful source open.
func (m *EngineMetrics) SourceOpened() {
	if m == nil {
		return
	}
	m.SourcesOpened.Inc()
}

// SourceRetired counts a teardown for the given reason.
func (m *EngineMetrics) SourceRetired(reason string) {
	if m == nil {
		return
	}
	m.SourcesRetired.WithLabelValues(reason).Inc()
}

// SourceFailed counts a source failure at the given stage.
func (m *EngineMetrics) SourceFailed(stage string) {
	if m == nil {
		return
	}
	m.SourceFailures.WithLabelValues(stage).Inc()
}

// Detection counts a wake phrase detection on device.
func (m *EngineMetrics) Detection(device string) {
	if m == nil {
		return
	}
	m.Detections.WithLabelValues(device).Inc()
}

// DiscoveryFailed counts a failed device enumeration.
func (m *EngineMetrics) DiscoveryFailed() {
	if m == nil {
		return
	}
	m.DiscoveryErrors.Inc()
}

// Fired counts an actuation.
func (m *EngineMetrics) Fired(trigger string) {
	if m == nil {
		return
	}
	m.Fires.WithLabelValues(trigger).Inc()
}

// RequestDropped counts a pending request cleared without firing.
func (m *EngineMetrics) RequestDropped(trigger string) {
	if m == nil {
		return
	}
	m.RequestsDropped.WithLabelValues(trigger).Inc()
}

// DebugFileWritten counts a debug audio file.
func (m *EngineMetrics) DebugFileWritten() {
	if m == nil {
		return
	}
	m.DebugFilesWritten.Inc()
}

// ObserveTick records the duration of one coordinator tick in seconds.
func (m *EngineMetrics) ObserveTick(seconds float64) {
	if m == nil {
		return
	}
	m.TickDuration.Observe(seconds)
}

// SetCoordinatorState records the coordinator state as a number.
func (m *EngineMetrics) SetCoordinatorState(state int) {
	if m == nil {
		return
	}
	m.CoordinatorState.Set(float64(state))
}

// Collect implements the prometheus.Collector interface.
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.SourcesActive.Collect(ch)
	m.SourcesOpened.Collect(ch)
	m.SourcesRetired.Collect(ch)
	m.SourceFailures.Collect(ch)
	m.Detections.Collect(ch)
	m.DiscoveryErrors.Collect(ch)
	m.Fires.Collect(ch)
	m.RequestsDropped.Collect(ch)
	m.DebugFilesWritten.Collect(ch)
	m.TickDuration.Collect(ch)
	m.CoordinatorState.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.SourcesActive.Describe(ch)
	m.SourcesOpened.Describe(ch)
	m.SourcesRetired.Describe(ch)
	m.SourceFailures.Describe(ch)
	m.Detections.Describe(ch)
	m.DiscoveryErrors.Describe(ch)
	m.Fires.Describe(ch)
	m.RequestsDropped.Describe(ch)
	m.DebugFilesWritten.Describe(ch)
	m.TickDuration.Describe(ch)
	m.CoordinatorState.Describe(ch)
}
