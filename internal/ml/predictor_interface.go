// Package ml holds the trained sentiment classifier used at serving time and the
// registry of trained artifact versions it is loaded from.
//
// Models are produced by the offline training pipeline; this package only loads and
// scores them. A loaded Classifier is immutable.
package ml

import (
	"restaurant-sentiment/internal/features"
	"restaurant-sentiment/internal/review"
)

// Scorer maps a feature vector to a sentiment label.
type Scorer interface {
	// Score classifies vec. Implementations fail with ErrMismatch when len(vec)
	// differs from NumFeatures.
	Score(vec features.Vector) (review.Label, error)

	// NumFeatures is the vector width the scorer was trained on.
	NumFeatures() int
}
