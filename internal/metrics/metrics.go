// Package metrics provides Prometheus metrics for the sentiment service.
// It defines the prediction, text cleaning, artifact and HTTP metrics exposed on the
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the sentiment service.
type Metrics struct {
	// Prediction metrics
	Predictions        prometheus.Counter   // Reviews classified
	PredictionFailures prometheus.Counter   // Prediction batches that failed
	PredictLatency     prometheus.Histogram // End-to-end batch latency
	BatchSize          prometheus.Histogram // Reviews per prediction batch
	Labels             *prometheus.CounterVec
	AcceptanceRate     prometheus.Gauge // Last computed acceptance rate

	// Text cleaning and artifacts
	StageFailures *prometheus.CounterVec
	ArtifactLoads *prometheus.CounterVec

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	gatherer := prometheus.DefaultGatherer
	if g, ok := registerer.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &Metrics{
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentiment_predictions_total",
			Help: "Total number of reviews classified",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentiment_prediction_failures_total",
			Help: "Total number of failed prediction batches",
		}),
		PredictLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentiment_predict_latency_seconds",
			Help:    "Prediction batch latency in seconds (end-to-end)",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentiment_batch_size",
			Help:    "Number of reviews per prediction batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		Labels: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentiment_label_total",
			Help: "Predicted labels by class",
		}, []string{"label"}),
		AcceptanceRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sentiment_acceptance_rate",
			Help: "Most recently computed acceptance rate in [-1, 1]",
		}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentiment_stage_failures_total",
			Help: "Text cleaning stages skipped after a failure",
		}, []string{"stage"}),
		ArtifactLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentiment_artifact_loads_total",
			Help: "Vocabulary and model load attempts by result",
		}, []string{"result"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: gatherer,
	}
}

// FailureRate returns failed batches per classified review, or 0 before any prediction.
func (m *Metrics) FailureRate() float64 {
	var total, failures float64

	metricFamilies, err := m.gatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "sentiment_predictions_total":
			for _, metric := range mf.Metric {
				total = metric.GetCounter().GetValue()
			}
		case "sentiment_prediction_failures_total":
			for _, metric := range mf.Metric {
				failures = metric.GetCounter().GetValue()
			}
		}
	}

	if total == 0 {
		return 0
	}
	return failures / total
}
