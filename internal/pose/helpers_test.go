package pose

import (
	"errors"

	"PoseAnomaly/internal/entity"

	"gonum.org/v1/gonum/mat"
)

func f64(v float64) *float64 {
	return &v
}

type position func(frame, landmark int) [3]float64

// smoothMotion moves a fixed skeleton by a constant step per frame. All
// values are exact binary fractions so repeated arithmetic is bit-identical.
func smoothMotion(frame, landmark int) [3]float64 {
	return [3]float64{
		float64(landmark%11)/16 + float64(frame)*0.125,
		float64(landmark/11)/8 + float64(frame)*0.0625,
		float64(landmark%5) / 32,
	}
}

func extremeAt(target int, base position) position {
	return func(frame, landmark int) [3]float64 {
		if frame != target {
			return base(frame, landmark)
		}
		return [3]float64{
			1000 + 37*float64(landmark),
			-500 - 11*float64(landmark),
			float64((landmark*7)%13) * 100,
		}
	}
}

func buildPayload(frames int, pos position) entity.LandmarkPayload {
	payload := entity.LandmarkPayload{Frames: make([]entity.LandmarkFrame, frames)}
	for f := 0; f < frames; f++ {
		points := make([]entity.LandmarkPoint, LandmarkCount)
		for l := 0; l < LandmarkCount; l++ {
			p := pos(f, l)
			points[l] = entity.LandmarkPoint{
				Name: LandmarkName(l),
				X:    f64(p[0]),
				Y:    f64(p[1]),
				Z:    f64(p[2]),
			}
		}
		payload.Frames[f] = entity.LandmarkFrame{Landmarks: points}
	}
	return payload
}

// zeroModel reconstructs every sample as the zero vector, so a sample's
// error equals the mean absolute value of its features.
type zeroModel struct{}

func (zeroModel) Loaded() bool { return true }

func (zeroModel) Predict(batch *mat.Dense) (*mat.Dense, error) {
	r, c := batch.Dims()
	return mat.NewDense(r, c, nil), nil
}

type unloadedModel struct{}

func (unloadedModel) Loaded() bool { return false }

func (unloadedModel) Predict(*mat.Dense) (*mat.Dense, error) {
	return nil, errors.New("predict called on unloaded model")
}

type failingModel struct{ err error }

func (failingModel) Loaded() bool { return true }

func (m failingModel) Predict(*mat.Dense) (*mat.Dense, error) {
	return nil, m.err
}

type shrinkingModel struct{}

func (shrinkingModel) Loaded() bool { return true }

func (shrinkingModel) Predict(batch *mat.Dense) (*mat.Dense, error) {
	_, c := batch.Dims()
	return mat.NewDense(1, c, nil), nil
}

// fillModel reconstructs every value as the same constant.
type fillModel struct{ value float64 }

func (fillModel) Loaded() bool { return true }

func (m fillModel) Predict(batch *mat.Dense) (*mat.Dense, error) {
	r, c := batch.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.value)
		}
	}
	return out, nil
}

// overflowAt places frame target at finite coordinates large enough for
// segment norms and dot products to overflow float64.
func overflowAt(target int, scale float64, base position) position {
	return func(frame, landmark int) [3]float64 {
		if frame != target {
			return base(frame, landmark)
		}
		return [3]float64{scale / float64(landmark+1), -scale, scale}
	}
}
