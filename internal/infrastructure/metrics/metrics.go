// Package metrics exposes pipeline measurements to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/expense-drafts/internal/application/service"
	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/event"
)

var _ service.Recorder = (*Metrics)(nil)

// Metrics implements service.Recorder on its own registry
type Metrics struct {
	registry *prometheus.Registry

	// Extractions by provider and outcome
	Extractions *prometheus.CounterVec

	// Extraction latency by provider
	ExtractionLatency *prometheus.HistogramVec

	// Policy findings by severity
	Findings *prometheus.CounterVec

	// Draft status after each lifecycle event
	Transitions *prometheus.CounterVec

	// Malformed AI payload fields dropped during coercion
	DroppedFields *prometheus.CounterVec
}

// New creates the metric set. Go runtime and process collectors are included.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expense_extractions_total",
			Help: "Receipt extractions by provider and outcome",
		}, []string{"provider", "outcome"}),

		ExtractionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "expense_extraction_duration_seconds",
			Help:    "Duration of receipt extraction calls by provider",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"provider"}),

		Findings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expense_policy_findings_total",
			Help: "Policy findings produced by evaluation, by severity",
		}, []string{"severity"}),

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expense_draft_transitions_total",
			Help: "Draft lifecycle events by resulting status",
		}, []string{"status"}),

		DroppedFields: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expense_payload_fields_dropped_total",
			Help: "Malformed AI payload fields dropped during coercion",
		}, []string{"payload"}),
	}
}

// Registry returns the registry the metrics live in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ExtractionObserved records one extraction call
func (m *Metrics) ExtractionObserved(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(provider, outcome).Inc()
	m.ExtractionLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// FindingsRecorded counts findings by severity
func (m *Metrics) FindingsRecorded(findings []entity.PolicyFinding) {
	if m == nil {
		return
	}
	for _, f := range findings {
		m.Findings.WithLabelValues(string(f.Severity)).Inc()
	}
}

// FieldsDropped counts dropped payload fields
func (m *Metrics) FieldsDropped(payload string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.DroppedFields.WithLabelValues(payload).Add(float64(count))
}

// RecordTransition is an event handler counting the status each draft event left behind
func (m *Metrics) RecordTransition(ctx context.Context, evt *event.Event) error {
	if m == nil || evt.Status == "" {
		return nil
	}
	m.Transitions.WithLabelValues(evt.Status).Inc()
	return nil
}
