package model

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotLoaded     = errors.New("model is not loaded")
	ErrShapeMismatch = errors.New("batch width does not match model input")
	ErrInvalidModel  = errors.New("invalid model artifact")
)

// Model is a loaded reconstruction model. Predict maps an (N, D) batch to a
// reconstruction of the same shape and must be safe for concurrent use.
type Model interface {
	Predict(batch *mat.Dense) (*mat.Dense, error)
	Loaded() bool
	Manifest() Manifest
}

// Manifest describes a model artifact.
type Manifest struct {
	Name                string  `json:"name"`
	Version             string  `json:"version,omitempty"`
	InputDim            int     `json:"input_dim"`
	InputShape          []int64 `json:"input_shape,omitempty"`
	OutputShape         []int64 `json:"output_shape,omitempty"`
	CalibratedThreshold float64 `json:"calibrated_threshold,omitempty"`
}

// Unavailable stands in for a model that failed to load so the server can
// keep running and report the failure per request.
type Unavailable struct {
	Reason error
}

func (u Unavailable) Predict(*mat.Dense) (*mat.Dense, error) {
	if u.Reason != nil {
		return nil, u.Reason
	}
	return nil, ErrNotLoaded
}

func (u Unavailable) Loaded() bool {
	return false
}

func (u Unavailable) Manifest() Manifest {
	return Manifest{Name: "unavailable"}
}
