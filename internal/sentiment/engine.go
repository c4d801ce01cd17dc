// Package sentiment composes text normalization, feature extraction and classification
// into the serving-time contract: Predict(texts) -> labels and Acceptance(labels) -> rate.
//
// An Engine starts Uninitialized, becomes Ready after its vocabulary and model artifacts
// load and agree on the feature width, and stays Ready for the life of the process. A
// failed load leaves it Uninitialized; the caller may retry.
package sentiment

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"restaurant-sentiment/internal/artifact"
	"restaurant-sentiment/internal/features"
	"restaurant-sentiment/internal/ml"
	"restaurant-sentiment/internal/review"
	"restaurant-sentiment/internal/textclean"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle stage of an Engine.
type State int32

const (
	Uninitialized State = iota
	Loaded
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loaded:
		return "loaded"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// FeatureExtractor maps cleaned text onto a fixed-width vector.
type FeatureExtractor interface {
	TransformOne(text string) features.Vector
	Size() int
}

// MetricsInterface defines the metrics the engine reports.
type MetricsInterface interface {
	PredictionsAdd(n int)
	PredictionFailuresInc()
	PredictLatencyObserve(seconds float64)
	BatchSizeObserve(n int)
	LabelInc(label string)
	AcceptanceRateSet(rate float64)
	ArtifactLoadInc(result string)
}

// Info describes the artifacts an engine is serving.
type Info struct {
	State          string            `json:"state"`
	VocabularyPath string            `json:"vocabulary_path,omitempty"`
	ModelPath      string            `json:"model_path,omitempty"`
	VocabularySize int               `json:"vocabulary_size"`
	Classes        []review.Label    `json:"classes,omitempty"`
	Stages         []string          `json:"stages"`
	VocabularyMeta map[string]string `json:"vocabulary_metadata,omitempty"`
	ModelMeta      map[string]string `json:"model_metadata,omitempty"`
	LoadedAt       time.Time         `json:"loaded_at"`
}

type servingModel struct {
	extractor FeatureExtractor
	scorer    ml.Scorer
	info      Info
}

// Engine is safe for concurrent use once Ready. Predict and Acceptance never take a lock.
type Engine struct {
	pipeline *textclean.Pipeline
	workers  int
	metrics  MetricsInterface

	loadMu sync.Mutex
	state  atomic.Int32
	model  atomic.Pointer[servingModel]
}

// Option configures an Engine.
type Option func(*Engine)

// WithPipeline replaces the default text pipeline.
func WithPipeline(p *textclean.Pipeline) Option {
	return func(e *Engine) {
		e.pipeline = p
	}
}

// WithWorkers bounds how many texts of one batch are processed in parallel.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithMetrics reports engine activity to m.
func WithMetrics(m MetricsInterface) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New returns an Uninitialized engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pipeline == nil {
		e.pipeline = textclean.New()
	}
	return e
}

// State reports the current lifecycle stage.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Load reads the vocabulary and model artifacts and moves the engine to Ready.
// Artifact errors (ErrArtifactNotFound, ErrArtifactCorrupt) and width disagreement
// (ErrModelMismatch) leave the engine Uninitialized.
func (e *Engine) Load(vocabularyPath, modelPath string) error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	if e.model.Load() != nil {
		return ErrAlreadyLoaded
	}

	vec, err := features.LoadVectorizer(vocabularyPath)
	if err != nil {
		e.loadFailed(err)
		return fmt.Errorf("load vocabulary: %w", err)
	}

	clf, err := ml.LoadClassifier(modelPath)
	if err != nil {
		e.loadFailed(err)
		return fmt.Errorf("load model: %w", err)
	}

	return e.install(vec, clf, Info{
		VocabularyPath: vocabularyPath,
		ModelPath:      modelPath,
	})
}

// LoadFrom installs an already decoded extractor and scorer.
func (e *Engine) LoadFrom(extractor FeatureExtractor, scorer ml.Scorer) error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	if e.model.Load() != nil {
		return ErrAlreadyLoaded
	}
	return e.install(extractor, scorer, Info{})
}

func (e *Engine) install(extractor FeatureExtractor, scorer ml.Scorer, info Info) error {
	e.state.Store(int32(Loaded))

	if extractor.Size() != scorer.NumFeatures() {
		err := fmt.Errorf("%w: vocabulary has %d tokens, model expects %d features",
			ErrModelMismatch, extractor.Size(), scorer.NumFeatures())
		e.loadFailed(err)
		return err
	}

	info.VocabularySize = extractor.Size()
	info.LoadedAt = time.Now()
	for _, id := range e.pipeline.Stages() {
		info.Stages = append(info.Stages, id.String())
	}
	if c, ok := scorer.(interface{ Classes() []review.Label }); ok {
		info.Classes = c.Classes()
	}
	if h, ok := extractor.(interface{ Header() artifact.Header }); ok {
		info.VocabularyMeta = h.Header().Metadata
	}
	if h, ok := scorer.(interface{ Header() artifact.Header }); ok {
		info.ModelMeta = h.Header().Metadata
	}

	e.model.Store(&servingModel{extractor: extractor, scorer: scorer, info: info})
	e.state.Store(int32(Ready))

	if e.metrics != nil {
		e.metrics.ArtifactLoadInc("success")
	}
	log.Info().
		Str("vocabulary_path", info.VocabularyPath).
		Str("model_path", info.ModelPath).
		Int("vocabulary_size", info.VocabularySize).
		Msg("sentiment model ready")

	return nil
}

func (e *Engine) loadFailed(err error) {
	e.state.Store(int32(Uninitialized))
	if e.metrics != nil {
		e.metrics.ArtifactLoadInc("failure")
	}
	log.Error().Err(err).Msg("sentiment model load failed")
}

// Info describes the loaded artifacts.
func (e *Engine) Info() (Info, error) {
	m := e.model.Load()
	if m == nil {
		return Info{State: e.State().String()}, ErrModelNotLoaded
	}
	info := m.info
	info.State = e.State().String()
	return info, nil
}

// Predict classifies every text. out[i] is the label of texts[i]; an empty batch yields
// an empty result. A text whose normalization partly fails is still classified.
// Dimension errors abort the batch and are returned unmodified in kind.
func (e *Engine) Predict(ctx context.Context, texts []string) ([]review.Label, error) {
	m := e.model.Load()
	if m == nil {
		return nil, ErrModelNotLoaded
	}

	start := time.Now()
	labels := make([]review.Label, len(texts))
	if len(texts) == 0 {
		return labels, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(e.workers, len(texts)))

	for i, text := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			l, err := m.scorer.Score(m.extractor.TransformOne(e.pipeline.Apply(text)))
			if err != nil {
				return fmt.Errorf("review %d: %w", i, err)
			}
			labels[i] = l
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if e.metrics != nil {
			e.metrics.PredictionFailuresInc()
		}
		log.Error().Err(err).Int("batch_size", len(texts)).Msg("prediction batch failed")
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.PredictionsAdd(len(texts))
		e.metrics.BatchSizeObserve(len(texts))
		e.metrics.PredictLatencyObserve(time.Since(start).Seconds())
		for _, l := range labels {
			e.metrics.LabelInc(l.String())
		}
	}

	log.Debug().
		Int("batch_size", len(texts)).
		Dur("latency", time.Since(start)).
		Msg("prediction batch complete")

	return labels, nil
}

// Acceptance returns the mean of the signed labels: positive reviews count +1, negative
// -1 and neutral 0, so the rate lies in [-1, 1]. An empty batch has no defined rate and
// fails with ErrDivisionUndefined.
func (e *Engine) Acceptance(labels []review.Label) (float64, error) {
	if e.model.Load() == nil {
		return 0, ErrModelNotLoaded
	}

	rate, err := Acceptance(labels)
	if err != nil {
		return 0, err
	}

	if e.metrics != nil {
		e.metrics.AcceptanceRateSet(rate)
	}
	return rate, nil
}

// Acceptance computes the mean of signed labels without an engine.
func Acceptance(labels []review.Label) (float64, error) {
	if len(labels) == 0 {
		return 0, ErrDivisionUndefined
	}

	var sum int
	for i, l := range labels {
		if !l.Valid() {
			return 0, fmt.Errorf("%w: label %d at index %d", ErrInvalidLabel, int8(l), i)
		}
		sum += int(l)
	}
	return float64(sum) / float64(len(labels)), nil
}
