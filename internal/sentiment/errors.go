package sentiment

import (
	"errors"

	"restaurant-sentiment/internal/artifact"
	"restaurant-sentiment/internal/ml"
)

var (
	ErrModelNotLoaded    = errors.New("sentiment model not loaded")
	ErrAlreadyLoaded     = errors.New("sentiment model already loaded")
	ErrDivisionUndefined = errors.New("acceptance is undefined for an empty label batch")
	ErrInvalidLabel      = errors.New("label outside {-1, 0, 1}")

	// Re-exported so callers of the engine need not import the lower layers.
	ErrModelMismatch    = ml.ErrMismatch
	ErrArtifactNotFound = artifact.ErrNotFound
	ErrArtifactCorrupt  = artifact.ErrCorrupt
)
