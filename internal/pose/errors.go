package pose

import "errors"

var (
	// ErrMalformedInput is returned when the payload does not have the
	// frames/landmarks/coordinates shape.
	ErrMalformedInput = errors.New("malformed landmark input")

	// ErrInsufficientData is returned when the sequence is too short to
	// derive motion features from.
	ErrInsufficientData = errors.New("insufficient landmark data")

	// ErrModelUnavailable is returned when no reconstruction model is loaded.
	ErrModelUnavailable = errors.New("reconstruction model unavailable")

	// ErrEmptyBatch is returned when zero feature vectors reach the scorer.
	ErrEmptyBatch = errors.New("empty feature batch")

	ErrPrediction = errors.New("reconstruction model prediction failed")
)
