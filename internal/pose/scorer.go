package pose

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultPercentile is the batch percentile used as the anomaly threshold.
const DefaultPercentile = 95.0

// Reconstructor is the read-only model the scorer runs batches through.
// Implementations must be safe for concurrent Predict calls.
type Reconstructor interface {
	Predict(batch *mat.Dense) (*mat.Dense, error)
	Loaded() bool
}

// Verdict is the outcome of scoring one feature batch.
type Verdict struct {
	Errors    []float64
	Threshold float64
	Anomalous []bool
	Residuals *mat.Dense
}

func (v *Verdict) AnomalyCount() int {
	count := 0
	for _, flagged := range v.Anomalous {
		if flagged {
			count++
		}
	}
	return count
}

// AnomalousSamples returns the flagged sample indices in ascending order.
func (v *Verdict) AnomalousSamples() []int {
	samples := make([]int, 0, v.AnomalyCount())
	for i, flagged := range v.Anomalous {
		if flagged {
			samples = append(samples, i)
		}
	}
	return samples
}

func (v *Verdict) MaxError() float64 {
	if len(v.Errors) == 0 {
		return 0
	}
	return floats.Max(v.Errors)
}

type ScorerOption func(*Scorer)

// WithPercentile overrides the batch percentile; values outside (0, 100]
// are ignored.
func WithPercentile(p float64) ScorerOption {
	return func(s *Scorer) {
		if p > 0 && p <= 100 {
			s.percentile = p
		}
	}
}

// WithCalibratedThreshold replaces the per-batch percentile with a fixed
// threshold computed offline.
func WithCalibratedThreshold(threshold float64) ScorerOption {
	return func(s *Scorer) {
		if threshold > 0 && !math.IsInf(threshold, 0) {
			s.calibrated = &threshold
		}
	}
}

type Scorer struct {
	model      Reconstructor
	percentile float64
	calibrated *float64
}

func NewScorer(model Reconstructor, opts ...ScorerOption) *Scorer {
	s := &Scorer{
		model:      model,
		percentile: DefaultPercentile,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ready reports ErrModelUnavailable when no model is loaded.
func (s *Scorer) Ready() error {
	if s.model == nil || !s.model.Loaded() {
		return ErrModelUnavailable
	}
	return nil
}

func (s *Scorer) Percentile() float64 {
	return s.percentile
}

// Score reconstructs the batch, measures the mean absolute error of every
// sample and flags the samples whose error is strictly above the threshold.
func (s *Scorer) Score(features *mat.Dense) (*Verdict, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	if features == nil || features.IsEmpty() {
		return nil, ErrEmptyBatch
	}

	rows, cols := features.Dims()
	reconstruction, err := s.model.Predict(features)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrediction, err)
	}
	if reconstruction == nil {
		return nil, fmt.Errorf("%w: model returned no reconstruction", ErrPrediction)
	}
	if r, c := reconstruction.Dims(); r != rows || c != cols {
		return nil, fmt.Errorf("%w: reconstruction shape (%d, %d) does not match input (%d, %d)", ErrPrediction, r, c, rows, cols)
	}

	for i := 0; i < rows; i++ {
		if col, ok := firstNonFinite(mat.Row(nil, i, reconstruction)); ok {
			return nil, fmt.Errorf("%w: reconstruction value (%d, %d) is not finite", ErrPrediction, i, col)
		}
	}

	residuals := mat.NewDense(rows, cols, nil)
	residuals.Sub(features, reconstruction)

	errs := make([]float64, rows)
	for i := 0; i < rows; i++ {
		errs[i] = floats.Norm(residuals.RawRowView(i), 1) / float64(cols)
	}
	if i, ok := firstNonFinite(errs); ok {
		return nil, fmt.Errorf("%w: reconstruction error of sample %d is not finite", ErrPrediction, i)
	}

	threshold, err := s.threshold(errs)
	if err != nil {
		return nil, err
	}

	return &Verdict{
		Errors:    errs,
		Threshold: threshold,
		Anomalous: Flag(errs, threshold),
		Residuals: residuals,
	}, nil
}

func (s *Scorer) threshold(errs []float64) (float64, error) {
	if s.calibrated != nil {
		return *s.calibrated, nil
	}
	return Percentile(errs, s.percentile)
}

// Flag marks every value strictly greater than threshold.
func Flag(values []float64, threshold float64) []bool {
	flags := make([]bool, len(values))
	for i, v := range values {
		flags[i] = v > threshold
	}
	return flags
}

// Percentile returns the p-th percentile of values using linear
// interpolation between closest ranks, matching numpy's default method.
func Percentile(values []float64, p float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyBatch
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(sorted) {
		hi = len(sorted) - 1
	}
	if lo == hi {
		return sorted[lo], nil
	}

	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, nil
}
