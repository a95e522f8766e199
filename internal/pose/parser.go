package pose

import (
	"fmt"
	"math"

	"PoseAnomaly/internal/entity"

	"github.com/go-gl/mathgl/mgl64"
)

// Sequence is a dense (frames, LandmarkCount, 3) landmark tensor in
// time order.
type Sequence struct {
	frames [][LandmarkCount]mgl64.Vec3
}

// NewSequence builds a sequence from already indexed frames.
func NewSequence(frames [][LandmarkCount]mgl64.Vec3) *Sequence {
	return &Sequence{frames: frames}
}

func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.frames)
}

// Shape reports the tensor dimensions (F, L, 3).
func (s *Sequence) Shape() [3]int {
	return [3]int{s.Len(), LandmarkCount, 3}
}

func (s *Sequence) Frame(i int) [LandmarkCount]mgl64.Vec3 {
	return s.frames[i]
}

func (s *Sequence) At(frame, landmark int) mgl64.Vec3 {
	return s.frames[frame][landmark]
}

// Parse converts a landmark payload into a Sequence.
//
// Every frame must carry all LandmarkCount landmarks exactly once. Missing,
// unknown or duplicate names and missing or non-finite coordinates reject
// the whole payload with ErrMalformedInput; nothing is zero-filled.
func Parse(payload entity.LandmarkPayload) (*Sequence, error) {
	if len(payload.Frames) == 0 {
		return nil, fmt.Errorf("%w: frames are missing or empty", ErrMalformedInput)
	}

	frames := make([][LandmarkCount]mgl64.Vec3, len(payload.Frames))
	for f, frame := range payload.Frames {
		parsed, err := parseFrame(frame)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %s", ErrMalformedInput, f, err)
		}
		frames[f] = parsed
	}

	return &Sequence{frames: frames}, nil
}

func parseFrame(frame entity.LandmarkFrame) ([LandmarkCount]mgl64.Vec3, error) {
	var out [LandmarkCount]mgl64.Vec3
	var seen [LandmarkCount]bool

	if len(frame.Landmarks) == 0 {
		return out, fmt.Errorf("landmarks are missing")
	}

	for _, point := range frame.Landmarks {
		idx, ok := LookupLandmark(point.Name)
		if !ok {
			return out, fmt.Errorf("unknown landmark %q", point.Name)
		}
		if seen[idx] {
			return out, fmt.Errorf("duplicate landmark %q", landmarkNames[idx])
		}

		vec, err := coordinates(point)
		if err != nil {
			return out, fmt.Errorf("landmark %q: %s", landmarkNames[idx], err)
		}

		out[idx] = vec
		seen[idx] = true
	}

	for i, ok := range seen {
		if !ok {
			return out, fmt.Errorf("missing landmark %q", landmarkNames[i])
		}
	}

	return out, nil
}

func coordinates(point entity.LandmarkPoint) (mgl64.Vec3, error) {
	axes := [3]*float64{point.X, point.Y, point.Z}
	var vec mgl64.Vec3
	for i, axis := range axes {
		if axis == nil {
			return vec, fmt.Errorf("coordinate %c is missing", "xyz"[i])
		}
		if math.IsNaN(*axis) || math.IsInf(*axis, 0) {
			return vec, fmt.Errorf("coordinate %c is not a finite number", "xyz"[i])
		}
		vec[i] = *axis
	}
	return vec, nil
}
