package ml

import (
	"errors"
	"fmt"
	"math"

	"restaurant-sentiment/internal/artifact"
	"restaurant-sentiment/internal/features"
	"restaurant-sentiment/internal/review"
)

// ErrMismatch is returned when a feature vector does not have the width the model was
// trained on.
var ErrMismatch = errors.New("feature vector does not match model")

// ModelArtifact is the payload of a model artifact: a linear classifier with one weight
// row per class (one-vs-rest), or a single row for a two-class model.
type ModelArtifact struct {
	Classes   []int       `json:"classes"`
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
}

// Classifier is a linear sentiment model. It is immutable and safe for concurrent use.
type Classifier struct {
	classes   []review.Label
	coef      [][]float64
	intercept []float64
	width     int
	header    artifact.Header
}

// NewClassifier validates the model payload and copies it into a Classifier.
func NewClassifier(a ModelArtifact) (*Classifier, error) {
	if len(a.Classes) < 2 {
		return nil, fmt.Errorf("%w: model needs at least two classes, got %d", artifact.ErrCorrupt, len(a.Classes))
	}

	classes := make([]review.Label, len(a.Classes))
	seen := make(map[review.Label]bool, len(a.Classes))
	for i, c := range a.Classes {
		l, err := review.ParseLabel(c)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", artifact.ErrCorrupt, err)
		}
		if seen[l] {
			return nil, fmt.Errorf("%w: class %d listed twice", artifact.ErrCorrupt, c)
		}
		seen[l] = true
		classes[i] = l
	}

	rows := len(a.Classes)
	if rows == 2 {
		rows = 1
	}
	if len(a.Coef) != rows {
		return nil, fmt.Errorf("%w: %d weight rows for %d classes", artifact.ErrCorrupt, len(a.Coef), len(a.Classes))
	}
	if len(a.Intercept) != rows {
		return nil, fmt.Errorf("%w: %d intercepts for %d weight rows", artifact.ErrCorrupt, len(a.Intercept), rows)
	}

	width := len(a.Coef[0])
	if width == 0 {
		return nil, fmt.Errorf("%w: empty weight row", artifact.ErrCorrupt)
	}

	coef := make([][]float64, rows)
	for i, row := range a.Coef {
		if len(row) != width {
			return nil, fmt.Errorf("%w: weight row %d has %d features, row 0 has %d", artifact.ErrCorrupt, i, len(row), width)
		}
		for _, w := range row {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return nil, fmt.Errorf("%w: non-finite weight in row %d", artifact.ErrCorrupt, i)
			}
		}
		coef[i] = append([]float64(nil), row...)
	}

	return &Classifier{
		classes:   classes,
		coef:      coef,
		intercept: append([]float64(nil), a.Intercept...),
		width:     width,
	}, nil
}

// LoadClassifier reads a model artifact from path.
func LoadClassifier(path string) (*Classifier, error) {
	var a ModelArtifact
	hdr, err := artifact.Load(path, artifact.KindModel, &a)
	if err != nil {
		return nil, err
	}

	c, err := NewClassifier(a)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.header = hdr
	return c, nil
}

// NumFeatures implements Scorer.
func (c *Classifier) NumFeatures() int {
	return c.width
}

// Classes returns the labels the model can emit, in model order.
func (c *Classifier) Classes() []review.Label {
	return append([]review.Label(nil), c.classes...)
}

// Header returns the envelope of the artifact this Classifier was loaded from.
func (c *Classifier) Header() artifact.Header {
	return c.header
}

// Decision returns the raw decision value of every weight row.
func (c *Classifier) Decision(vec features.Vector) ([]float64, error) {
	if len(vec) != c.width {
		return nil, fmt.Errorf("%w: vector has %d features, model expects %d", ErrMismatch, len(vec), c.width)
	}

	out := make([]float64, len(c.coef))
	for k, row := range c.coef {
		s := c.intercept[k]
		for i, x := range vec {
			if x != 0 {
				s += row[i] * x
			}
		}
		out[k] = s
	}
	return out, nil
}

// Score implements Scorer. Two-class models pick the second class when the decision
// value is positive; otherwise the class with the highest decision value wins, the
// earlier class on ties.
func (c *Classifier) Score(vec features.Vector) (review.Label, error) {
	decision, err := c.Decision(vec)
	if err != nil {
		return 0, err
	}

	if len(decision) == 1 {
		if decision[0] > 0 {
			return c.classes[1], nil
		}
		return c.classes[0], nil
	}

	best := 0
	for k := 1; k < len(decision); k++ {
		if decision[k] > decision[best] {
			best = k
		}
	}
	return c.classes[best], nil
}
