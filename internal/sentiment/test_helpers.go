package sentiment

import "sync"

// MockMetrics implements MetricsInterface and textclean.StageObserver for testing
type MockMetrics struct {
	mu            sync.Mutex
	predictions   int
	failures      int
	latencySum    float64
	batchSizes    []int
	labels        map[string]int
	acceptance    float64
	artifactLoads map[string]int
	stageFailures map[string]int
}

func (m *MockMetrics) PredictionsAdd(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions += n
}

func (m *MockMetrics) PredictionFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) PredictLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) BatchSizeObserve(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchSizes = append(m.batchSizes, n)
}

func (m *MockMetrics) LabelInc(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.labels == nil {
		m.labels = make(map[string]int)
	}
	m.labels[label]++
}

func (m *MockMetrics) AcceptanceRateSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acceptance = v
}

func (m *MockMetrics) ArtifactLoadInc(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.artifactLoads == nil {
		m.artifactLoads = make(map[string]int)
	}
	m.artifactLoads[result]++
}

func (m *MockMetrics) StageFailureInc(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stageFailures == nil {
		m.stageFailures = make(map[string]int)
	}
	m.stageFailures[stage]++
}

func (m *MockMetrics) Predictions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions
}

func (m *MockMetrics) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

func (m *MockMetrics) Labels(label string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.labels[label]
}

func (m *MockMetrics) Acceptance() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acceptance
}

func (m *MockMetrics) ArtifactLoads(result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifactLoads[result]
}

func (m *MockMetrics) StageFailures(stage string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stageFailures[stage]
}
