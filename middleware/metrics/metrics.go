// Package metrics provides Prometheus metrics for stoat.
//
// Metrics implements stoat.StoreMetrics, so wiring it up is one option:
//
//	m := metrics.New()
//	prometheus.MustRegister(m.Collectors()...)
//
//	store := stoat.New(adapter, stoat.WithMetrics(m))
//
// The metrics collected cover appends (count, duration, outcome), fan-out
// expansions, fold invocations and document writes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weaselworks/go-stoat"
)

// Metric labels.
const (
	LabelEventType      = "event_type"
	LabelProjectionName = "projection_name"
	LabelDocumentType   = "document_type"
	LabelStatus         = "status"
)

// Status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var _ stoat.StoreMetrics = (*Metrics)(nil)

// Metrics holds all Prometheus collectors for a store.
type Metrics struct {
	namespace string
	subsystem string

	appendsTotal    *prometheus.CounterVec
	appendDuration  prometheus.Histogram
	eventsTotal     prometheus.Counter
	fanOutTotal     *prometheus.CounterVec
	derivedTotal    *prometheus.CounterVec
	foldsTotal      *prometheus.CounterVec
	foldDuration    *prometheus.HistogramVec
	documentUpserts *prometheus.CounterVec
}

// Option configures Metrics.
type Option func(*Metrics)

// WithNamespace sets the Prometheus namespace.
func WithNamespace(namespace string) Option {
	return func(m *Metrics) {
		m.namespace = namespace
	}
}

// WithSubsystem sets the Prometheus subsystem.
func WithSubsystem(subsystem string) Option {
	return func(m *Metrics) {
		m.subsystem = subsystem
	}
}

// New creates a Metrics instance. Collectors are not registered; pass
// Collectors() to a prometheus registry.
func New(opts ...Option) *Metrics {
	m := &Metrics{namespace: "stoat"}
	for _, opt := range opts {
		opt(m)
	}

	m.appendsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "appends_total",
		Help:      "Total stream appends by outcome.",
	}, []string{LabelStatus})

	m.appendDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "append_duration_seconds",
		Help:      "Append operation duration, including inline projections.",
		Buckets:   prometheus.DefBuckets,
	})

	m.eventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_appended_total",
		Help:      "Total events appended.",
	})

	m.fanOutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fanout_expansions_total",
		Help:      "Total fan-out expansions by projection and source event type.",
	}, []string{LabelProjectionName, LabelEventType})

	m.derivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fanout_derived_events_total",
		Help:      "Total derived events produced by fan-out expansions.",
	}, []string{LabelProjectionName, LabelEventType})

	m.foldsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "folds_total",
		Help:      "Total fold invocations by projection, event type and outcome.",
	}, []string{LabelProjectionName, LabelEventType, LabelStatus})

	m.foldDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fold_duration_seconds",
		Help:      "Fold invocation duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{LabelProjectionName})

	m.documentUpserts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "document_upserts_total",
		Help:      "Total read-model documents written by inline projections.",
	}, []string{LabelDocumentType})

	return m
}

// Collectors returns all collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.appendsTotal,
		m.appendDuration,
		m.eventsTotal,
		m.fanOutTotal,
		m.derivedTotal,
		m.foldsTotal,
		m.foldDuration,
		m.documentUpserts,
	}
}

// RecordAppend implements stoat.StoreMetrics.
func (m *Metrics) RecordAppend(streamID string, events int, duration time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.appendsTotal.WithLabelValues(status).Inc()
	m.appendDuration.Observe(duration.Seconds())
	if err == nil {
		m.eventsTotal.Add(float64(events))
	}
}

// RecordFanOut implements stoat.StoreMetrics.
func (m *Metrics) RecordFanOut(projection, sourceType string, derived int) {
	m.fanOutTotal.WithLabelValues(projection, sourceType).Inc()
	m.derivedTotal.WithLabelValues(projection, sourceType).Add(float64(derived))
}

// RecordFold implements stoat.StoreMetrics.
func (m *Metrics) RecordFold(projection, eventType string, duration time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.foldsTotal.WithLabelValues(projection, eventType, status).Inc()
	m.foldDuration.WithLabelValues(projection).Observe(duration.Seconds())
}

// RecordDocumentWrite implements stoat.StoreMetrics.
func (m *Metrics) RecordDocumentWrite(docType string) {
	m.documentUpserts.WithLabelValues(docType).Inc()
}
