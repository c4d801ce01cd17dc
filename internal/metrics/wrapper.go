package metrics

import (
	"strconv"
	"time"
)

// MetricsWrapper adapts Metrics to the narrow interfaces the engine, the text pipeline
// and the HTTP server report through.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsAdd(n int) {
	w.m.Predictions.Add(float64(n))
}

func (w *MetricsWrapper) PredictionFailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *MetricsWrapper) PredictLatencyObserve(seconds float64) {
	w.m.PredictLatency.Observe(seconds)
}

func (w *MetricsWrapper) BatchSizeObserve(n int) {
	w.m.BatchSize.Observe(float64(n))
}

func (w *MetricsWrapper) LabelInc(label string) {
	w.m.Labels.WithLabelValues(label).Inc()
}

func (w *MetricsWrapper) AcceptanceRateSet(rate float64) {
	w.m.AcceptanceRate.Set(rate)
}

func (w *MetricsWrapper) ArtifactLoadInc(result string) {
	w.m.ArtifactLoads.WithLabelValues(result).Inc()
}

func (w *MetricsWrapper) StageFailureInc(stage string) {
	w.m.StageFailures.WithLabelValues(stage).Inc()
}

// ObserveRequest records one served HTTP request.
func (w *MetricsWrapper) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	w.m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	w.m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// FailureRate reports Metrics.FailureRate.
func (w *MetricsWrapper) FailureRate() float64 {
	return w.m.FailureRate()
}
