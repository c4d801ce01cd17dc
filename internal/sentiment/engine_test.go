package sentiment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"restaurant-sentiment/internal/artifact"
	"restaurant-sentiment/internal/features"
	"restaurant-sentiment/internal/ml"
	"restaurant-sentiment/internal/review"
	"restaurant-sentiment/internal/textclean"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Columns: good, bad, food, great, cold. None of them change under stemming.
func testVocabulary() features.VocabularyArtifact {
	return features.VocabularyArtifact{
		Vocabulary: map[string]int{"good": 0, "bad": 1, "food": 2, "great": 3, "cold": 4},
	}
}

func testModel() ml.ModelArtifact {
	return ml.ModelArtifact{
		Classes: []int{-1, 0, 1},
		Coef: [][]float64{
			{-1, 2, 0, -1, 2},
			{0, 0, 0.5, 0, 0},
			{2, -1, 0, 2, -1},
		},
		Intercept: []float64{0, 0.1, 0},
	}
}

func writeArtifacts(t *testing.T) (vocabPath, modelPath string) {
	t.Helper()
	dir := t.TempDir()
	vocabPath = filepath.Join(dir, "vocabulary.json")
	modelPath = filepath.Join(dir, "model.json.gz")
	require.NoError(t, artifact.Save(vocabPath, artifact.KindVocabulary, testVocabulary(),
		artifact.SaveOptions{Metadata: map[string]string{"trained_on": "unit"}}))
	require.NoError(t, artifact.Save(modelPath, artifact.KindModel, testModel(),
		artifact.SaveOptions{Compress: true}))
	return vocabPath, modelPath
}

func readyEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	vec, err := features.NewVectorizer(testVocabulary())
	require.NoError(t, err)
	clf, err := ml.NewClassifier(testModel())
	require.NoError(t, err)

	e := New(opts...)
	require.NoError(t, e.LoadFrom(vec, clf))
	return e
}

type fixedExtractor struct {
	size int
	vec  features.Vector
}

func (f fixedExtractor) TransformOne(string) features.Vector { return f.vec }
func (f fixedExtractor) Size() int                           { return f.size }

func TestEngine_Load(t *testing.T) {
	vocabPath, modelPath := writeArtifacts(t)
	metrics := &MockMetrics{}

	e := New(WithMetrics(metrics))
	assert.Equal(t, Uninitialized, e.State())

	require.NoError(t, e.Load(vocabPath, modelPath))
	assert.Equal(t, Ready, e.State())
	assert.Equal(t, 1, metrics.ArtifactLoads("success"))

	info, err := e.Info()
	require.NoError(t, err)
	assert.Equal(t, "ready", info.State)
	assert.Equal(t, 5, info.VocabularySize)
	assert.Equal(t, []review.Label{review.Negative, review.Neutral, review.Positive}, info.Classes)
	assert.Equal(t, "unit", info.VocabularyMeta["trained_on"])
	assert.Equal(t, modelPath, info.ModelPath)
	assert.Len(t, info.Stages, len(textclean.DefaultStages))

	err = e.Load(vocabPath, modelPath)
	assert.True(t, errors.Is(err, ErrAlreadyLoaded))
	assert.Equal(t, Ready, e.State())
}

func TestEngine_LoadFailureIsRetryable(t *testing.T) {
	vocabPath, modelPath := writeArtifacts(t)
	metrics := &MockMetrics{}
	e := New(WithMetrics(metrics))

	err := e.Load(vocabPath, filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.Is(err, ErrArtifactNotFound), "got %v", err)
	assert.Equal(t, Uninitialized, e.State())
	assert.Equal(t, 1, metrics.ArtifactLoads("failure"))

	// model artifact passed as vocabulary
	err = e.Load(modelPath, modelPath)
	assert.True(t, errors.Is(err, ErrArtifactCorrupt), "got %v", err)
	assert.Equal(t, Uninitialized, e.State())

	_, err = e.Predict(context.Background(), []string{"good"})
	assert.True(t, errors.Is(err, ErrModelNotLoaded))

	require.NoError(t, e.Load(vocabPath, modelPath))
	assert.Equal(t, Ready, e.State())
}

func TestEngine_LoadMismatch(t *testing.T) {
	vec, err := features.NewVectorizer(testVocabulary())
	require.NoError(t, err)
	clf, err := ml.NewClassifier(ml.ModelArtifact{
		Classes:   []int{-1, 1},
		Coef:      [][]float64{{1, 2, 3}},
		Intercept: []float64{0},
	})
	require.NoError(t, err)

	e := New()
	err = e.LoadFrom(vec, clf)
	assert.True(t, errors.Is(err, ErrModelMismatch), "got %v", err)
	assert.Equal(t, Uninitialized, e.State())

	_, err = e.Info()
	assert.True(t, errors.Is(err, ErrModelNotLoaded))
}

func TestEngine_Predict(t *testing.T) {
	metrics := &MockMetrics{}
	e := readyEngine(t, WithMetrics(metrics), WithWorkers(2))

	tests := []struct {
		name  string
		texts []string
		want  []review.Label
	}{
		{"empty batch", []string{}, []review.Label{}},
		{"nil batch", nil, []review.Label{}},
		{"positive", []string{"The food was great and good!"}, []review.Label{review.Positive}},
		{"negative", []string{"Cold, bad food."}, []review.Label{review.Negative}},
		{"empty text", []string{""}, []review.Label{review.Neutral}},
		{"markup only", []string{"<p>Food</p>"}, []review.Label{review.Neutral}},
		{
			"order preserved",
			[]string{"Cold, bad food.", "", "The food was great and good!", "bad bad cold"},
			[]review.Label{review.Negative, review.Neutral, review.Positive, review.Negative},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Predict(context.Background(), tt.texts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, 8, metrics.Predictions())
	assert.Equal(t, 3, metrics.Labels("Negative"))
	assert.Equal(t, 0, metrics.Failures())
}

func TestEngine_PredictBeforeLoad(t *testing.T) {
	e := New()
	_, err := e.Predict(context.Background(), []string{"good"})
	assert.True(t, errors.Is(err, ErrModelNotLoaded))

	_, err = e.Predict(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrModelNotLoaded))
}

func TestEngine_PredictMalformedMarkupKeepsBatch(t *testing.T) {
	metrics := &MockMetrics{}
	p := textclean.New(textclean.WithObserver(metrics))
	e := readyEngine(t, WithPipeline(p))

	huge := "<b>" + strings.Repeat("good ", 20000)
	got, err := e.Predict(context.Background(), []string{"Cold, bad food.", huge, ""})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, review.Negative, got[0])
	assert.Equal(t, review.Positive, got[1])
	assert.Equal(t, review.Neutral, got[2])
	assert.Equal(t, 1, metrics.StageFailures(textclean.StripMarkup.String()))
}

func TestEngine_PredictDimensionMismatch(t *testing.T) {
	clf, err := ml.NewClassifier(testModel())
	require.NoError(t, err)

	metrics := &MockMetrics{}
	e := New(WithMetrics(metrics))
	require.NoError(t, e.LoadFrom(fixedExtractor{size: 5, vec: features.Vector{1, 2}}, clf))

	_, err = e.Predict(context.Background(), []string{"good", "bad"})
	assert.True(t, errors.Is(err, ErrModelMismatch), "got %v", err)
	assert.Equal(t, 1, metrics.Failures())
}

func TestEngine_PredictCancelled(t *testing.T) {
	e := readyEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Predict(ctx, []string{"good", "bad"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestEngine_PredictConcurrent(t *testing.T) {
	e := readyEngine(t, WithWorkers(4))

	texts := make([]string, 64)
	want := make([]review.Label, 64)
	for i := range texts {
		if i%2 == 0 {
			texts[i] = fmt.Sprintf("great good food %d", i)
			want[i] = review.Positive
		} else {
			texts[i] = "cold bad food"
			want[i] = review.Negative
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Predict(context.Background(), texts)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestEngine_Acceptance(t *testing.T) {
	metrics := &MockMetrics{}
	e := readyEngine(t, WithMetrics(metrics))

	tests := []struct {
		name   string
		labels []review.Label
		want   float64
		err    error
	}{
		{"balanced", []review.Label{1, 1, -1, -1, 0}, 0, nil},
		{"all positive", []review.Label{1, 1, 1}, 1, nil},
		{"all negative", []review.Label{-1, -1}, -1, nil},
		{"single neutral", []review.Label{0}, 0, nil},
		{"mixed", []review.Label{1, 1, 1, 0}, 0.75, nil},
		{"empty", []review.Label{}, 0, ErrDivisionUndefined},
		{"nil", nil, 0, ErrDivisionUndefined},
		{"out of domain", []review.Label{1, 3}, 0, ErrInvalidLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Acceptance(tt.labels)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, -1.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}

	_, err := e.Acceptance([]review.Label{1, 1, 1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, metrics.Acceptance(), 1e-12)
}

func TestEngine_AcceptanceBeforeLoad(t *testing.T) {
	_, err := New().Acceptance([]review.Label{1})
	assert.True(t, errors.Is(err, ErrModelNotLoaded))
}

func TestEngine_PredictThenAccept(t *testing.T) {
	e := readyEngine(t)

	labels, err := e.Predict(context.Background(), []string{
		"The food was great and good!",
		"Cold, bad food.",
		"great great",
		"",
	})
	require.NoError(t, err)

	rate, err := e.Acceptance(labels)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, rate, 1e-12)
}
