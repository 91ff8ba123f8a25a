package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics tracks document throughput and the health of the external
// collaborators. One registry per process.
type PipelineMetrics struct {
	registry *prometheus.Registry

	documentsTotal    *prometheus.CounterVec
	documentDuration  *prometheus.HistogramVec
	documentsInFlight prometheus.Gauge
	validationsTotal  *prometheus.CounterVec
	providerFailures  *prometheus.CounterVec
	confidenceScore   prometheus.Histogram
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "einvoice",
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Total processed documents by outcome (success or error kind).",
		},
		[]string{"service", "outcome"},
	)
	documentDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "einvoice",
			Subsystem: "pipeline",
			Name:      "document_duration_seconds",
			Help:      "End-to-end document processing duration by outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "outcome"},
	)
	documentsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "einvoice",
			Subsystem: "pipeline",
			Name:      "documents_in_flight",
			Help:      "Number of documents currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	validationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "einvoice",
			Subsystem: "pipeline",
			Name:      "validations_total",
			Help:      "Validation attempts by resulting status.",
		},
		[]string{"service", "status"},
	)
	providerFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "einvoice",
			Subsystem: "pipeline",
			Name:      "provider_failures_total",
			Help:      "Categorization provider failures that triggered a fallback.",
		},
		[]string{"service", "provider"},
	)
	confidenceScore := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "einvoice",
			Subsystem: "pipeline",
			Name:      "document_confidence",
			Help:      "Document-level extraction confidence scores.",
			Buckets:   []float64{10, 25, 50, 70, 80, 90, 95, 99, 100},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(documentsTotal, documentDuration, documentsInFlight,
		validationsTotal, providerFailures, confidenceScore)

	return &PipelineMetrics{
		registry:          registry,
		documentsTotal:    documentsTotal,
		documentDuration:  documentDuration,
		documentsInFlight: documentsInFlight,
		validationsTotal:  validationsTotal,
		providerFailures:  providerFailures,
		confidenceScore:   confidenceScore,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StartDocument() {
	m.documentsInFlight.Inc()
}

// FinishDocument records one completed attempt. outcome is "success" or the
// machine-readable error kind.
func (m *PipelineMetrics) FinishDocument(service, outcome string, duration time.Duration) {
	m.documentsInFlight.Dec()
	m.documentsTotal.WithLabelValues(service, outcome).Inc()
	m.documentDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveValidation(service, status string) {
	m.validationsTotal.WithLabelValues(service, status).Inc()
}

func (m *PipelineMetrics) ObserveProviderFailure(service, provider string) {
	m.providerFailures.WithLabelValues(service, provider).Inc()
}

func (m *PipelineMetrics) ObserveConfidence(score float64) {
	m.confidenceScore.Observe(score)
}
