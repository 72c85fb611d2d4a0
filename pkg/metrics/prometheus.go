// Package metrics provides Prometheus metrics for the flight evaluation
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stage labels.
const (
	StageValidate = "validate"
	StageSegment  = "segment"
	StageExtract  = "extract"
	StageGrade    = "grade"
	StageAppend   = "append"
)

// Manager manages all Prometheus metrics for the evaluation engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Pipeline throughput
	flightsEvaluated prometheus.Counter
	flightsFailed    *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	qualityFlags     prometheus.Counter

	// Reference database and grading
	referenceRecords prometheus.Gauge
	gradesComputed   prometheus.Counter
	gradingErrors    prometheus.Counter
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// customRegistry keeps the scrape surface free of the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with the given options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "dockeval",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.flightsEvaluated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flights_evaluated_total",
		Help:      "Total number of flight recordings evaluated successfully",
	})

	m.flightsFailed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "flights_failed_total",
			Help:      "Total number of evaluations aborted, labeled by pipeline stage",
		},
		[]string{"stage"},
	)

	m.stageDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "stage_duration_milliseconds",
			Help:      "Duration of each pipeline stage in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"stage"},
	)

	m.qualityFlags = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "quality_flags_total",
		Help:      "Total number of data-quality fallbacks recorded on metric records",
	})

	m.referenceRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reference_records",
		Help:      "Current number of records in the reference database",
	})

	m.gradesComputed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "grades_computed_total",
		Help:      "Total number of grade reports produced",
	})

	m.gradingErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "grading_errors_total",
		Help:      "Total number of grading attempts rejected",
	})
}

// RecordFlightEvaluated increments the successful evaluation counter.
func (m *Manager) RecordFlightEvaluated() {
	if m.enabled {
		m.flightsEvaluated.Inc()
	}
}

// RecordFlightFailed increments the aborted evaluation counter for a stage.
func (m *Manager) RecordFlightFailed(stage string) {
	if m.enabled {
		m.flightsFailed.WithLabelValues(stage).Inc()
	}
}

// RecordStageDuration observes a pipeline stage duration in milliseconds.
func (m *Manager) RecordStageDuration(stage string, ms float64) {
	if m.enabled {
		m.stageDuration.WithLabelValues(stage).Observe(ms)
	}
}

// RecordQualityFlags adds the number of quality flags on a produced record.
func (m *Manager) RecordQualityFlags(n int) {
	if m.enabled && n > 0 {
		m.qualityFlags.Add(float64(n))
	}
}

// UpdateReferenceRecords sets the reference database size gauge.
func (m *Manager) UpdateReferenceRecords(n int) {
	if m.enabled {
		m.referenceRecords.Set(float64(n))
	}
}

// RecordGradeComputed increments the produced grade report counter.
func (m *Manager) RecordGradeComputed() {
	if m.enabled {
		m.gradesComputed.Inc()
	}
}

// RecordGradingError increments the rejected grading attempt counter.
func (m *Manager) RecordGradingError() {
	if m.enabled {
		m.gradingErrors.Inc()
	}
}

// Global convenience functions that use the default manager.

// RecordFlightEvaluated increments the successful evaluation counter.
func RecordFlightEvaluated() {
	globalManager.RecordFlightEvaluated()
}

// RecordFlightFailed increments the aborted evaluation counter for a stage.
func RecordFlightFailed(stage string) {
	globalManager.RecordFlightFailed(stage)
}

// RecordStageDuration observes a pipeline stage duration in milliseconds.
func RecordStageDuration(stage string, ms float64) {
	globalManager.RecordStageDuration(stage, ms)
}

// RecordQualityFlags adds the number of quality flags on a produced record.
func RecordQualityFlags(n int) {
	globalManager.RecordQualityFlags(n)
}

// UpdateReferenceRecords sets the reference database size gauge.
func UpdateReferenceRecords(n int) {
	globalManager.UpdateReferenceRecords(n)
}

// RecordGradeComputed increments the produced grade report counter.
func RecordGradeComputed() {
	globalManager.RecordGradeComputed()
}

// RecordGradingError increments the rejected grading attempt counter.
func RecordGradingError() {
	globalManager.RecordGradingError()
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler returns an HTTP handler serving the global registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}
