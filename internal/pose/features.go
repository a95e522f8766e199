package pose

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// minScale guards the torso normalisation against collapsed skeletons.
const minScale = 1e-6

// joint is an angle measured at Vertex between the segments to A and B.
type joint struct {
	Name   string
	A      int
	Vertex int
	B      int
}

var joints = [...]joint{
	{Name: "left_elbow", A: LeftShoulder, Vertex: LeftElbow, B: LeftWrist},
	{Name: "right_elbow", A: RightShoulder, Vertex: RightElbow, B: RightWrist},
	{Name: "left_shoulder", A: LeftHip, Vertex: LeftShoulder, B: LeftElbow},
	{Name: "right_shoulder", A: RightHip, Vertex: RightShoulder, B: RightElbow},
	{Name: "left_hip", A: LeftShoulder, Vertex: LeftHip, B: LeftKnee},
	{Name: "right_hip", A: RightShoulder, Vertex: RightHip, B: RightKnee},
	{Name: "left_knee", A: LeftHip, Vertex: LeftKnee, B: LeftAnkle},
	{Name: "right_knee", A: RightHip, Vertex: RightKnee, B: RightAnkle},
}

const (
	velocityDims = LandmarkCount * 3

	// FeatureDim is the width of every feature vector: normalised
	// per-landmark velocity followed by joint angle deltas.
	FeatureDim = velocityDims + len(joints)
)

// MinFrames is the shortest sequence a first difference can be taken of.
const MinFrames = 2

// FeatureKind tells what a feature column measures.
type FeatureKind int

const (
	KindMovement FeatureKind = iota
	KindAngle
)

// FeatureGroup names a contiguous run of feature columns that describe one
// body part.
type FeatureGroup struct {
	Part  string
	Kind  FeatureKind
	Start int
	End   int
}

var featureGroups = func() []FeatureGroup {
	groups := make([]FeatureGroup, 0, LandmarkCount+len(joints))
	for i, name := range landmarkNames {
		groups = append(groups, FeatureGroup{Part: name, Kind: KindMovement, Start: i * 3, End: i*3 + 3})
	}
	for i, j := range joints {
		groups = append(groups, FeatureGroup{Part: j.Name, Kind: KindAngle, Start: velocityDims + i, End: velocityDims + i + 1})
	}
	return groups
}()

// FeatureGroups lists the body-part groups of a feature vector in column order.
func FeatureGroups() []FeatureGroup {
	out := make([]FeatureGroup, len(featureGroups))
	copy(out, featureGroups)
	return out
}

// SampleFrame maps a feature row back to the frame it ends on.
func SampleFrame(sample int) int {
	return sample + 1
}

// Extract derives one motion feature vector per pair of consecutive frames.
//
// Row i describes the transition from frame i to frame i+1:
//   - columns [0, 99): hip-centred displacement of every landmark divided by
//     the torso length of frame i
//   - columns [99, 107): change of the eight limb joint angles, in radians
//
// A sequence shorter than MinFrames yields ErrInsufficientData.
func Extract(seq *Sequence) (*mat.Dense, error) {
	if seq.Len() < MinFrames {
		return nil, fmt.Errorf("%w: need at least %d frames, got %d", ErrInsufficientData, MinFrames, seq.Len())
	}

	centred := make([][LandmarkCount]mgl64.Vec3, seq.Len())
	scales := make([]float64, seq.Len())
	angles := make([][]float64, seq.Len())
	for f := 0; f < seq.Len(); f++ {
		frame := seq.Frame(f)
		centred[f] = centre(frame)
		scales[f] = torsoLength(frame)
		angles[f] = jointAngles(frame)
	}

	n := seq.Len() - 1
	features := mat.NewDense(n, FeatureDim, nil)
	row := make([]float64, FeatureDim)
	for i := 0; i < n; i++ {
		prev, next := i, i+1

		for l := 0; l < LandmarkCount; l++ {
			v := centred[next][l].Sub(centred[prev][l]).Mul(1 / scales[prev])
			row[l*3] = v.X()
			row[l*3+1] = v.Y()
			row[l*3+2] = v.Z()
		}
		for j := range joints {
			row[velocityDims+j] = angles[next][j] - angles[prev][j]
		}
		if col, ok := firstNonFinite(row); ok {
			return nil, fmt.Errorf("%w: feature %d of sample %d is not finite, coordinates out of range", ErrMalformedInput, col, i)
		}

		features.SetRow(i, row)
	}

	return features, nil
}

// firstNonFinite reports the index of the first NaN or infinite value.
func firstNonFinite(values []float64) (int, bool) {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i, true
		}
	}
	return 0, false
}

func midpoint(a, b mgl64.Vec3) mgl64.Vec3 {
	return a.Add(b).Mul(0.5)
}

func centre(frame [LandmarkCount]mgl64.Vec3) [LandmarkCount]mgl64.Vec3 {
	origin := midpoint(frame[LeftHip], frame[RightHip])
	var out [LandmarkCount]mgl64.Vec3
	for i, p := range frame {
		out[i] = p.Sub(origin)
	}
	return out
}

func torsoLength(frame [LandmarkCount]mgl64.Vec3) float64 {
	shoulders := midpoint(frame[LeftShoulder], frame[RightShoulder])
	hips := midpoint(frame[LeftHip], frame[RightHip])
	length := shoulders.Sub(hips).Len()
	if length < minScale || math.IsNaN(length) || math.IsInf(length, 0) {
		return 1
	}
	return length
}

func jointAngles(frame [LandmarkCount]mgl64.Vec3) []float64 {
	out := make([]float64, len(joints))
	for i, j := range joints {
		out[i] = angleAt(frame[j.A], frame[j.Vertex], frame[j.B])
	}
	return out
}

// angleAt returns the angle ABC in radians, zero for degenerate segments.
func angleAt(a, b, c mgl64.Vec3) float64 {
	u := a.Sub(b)
	v := c.Sub(b)
	lu, lv := u.Len(), v.Len()
	if lu < minScale || lv < minScale {
		return 0
	}
	cos := mgl64.Clamp(u.Dot(v)/(lu*lv), -1, 1)
	return math.Acos(cos)
}
