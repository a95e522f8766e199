package pose

import "strings"

// LandmarkCount is the size of the MediaPipe pose vocabulary.
const LandmarkCount = 33

const (
	Nose = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
)

var landmarkNames = [LandmarkCount]string{
	"nose",
	"left_eye_inner",
	"left_eye",
	"left_eye_outer",
	"right_eye_inner",
	"right_eye",
	"right_eye_outer",
	"left_ear",
	"right_ear",
	"mouth_left",
	"mouth_right",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_pinky",
	"right_pinky",
	"left_index",
	"right_index",
	"left_thumb",
	"right_thumb",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
	"left_heel",
	"right_heel",
	"left_foot_index",
	"right_foot_index",
}

var landmarkIndex = func() map[string]int {
	idx := make(map[string]int, LandmarkCount)
	for i, name := range landmarkNames {
		idx[name] = i
	}
	return idx
}()

// LandmarkNames returns the vocabulary in tensor order.
func LandmarkNames() []string {
	names := make([]string, LandmarkCount)
	copy(names, landmarkNames[:])
	return names
}

// LandmarkName returns the canonical identifier of landmark i.
func LandmarkName(i int) string {
	if i < 0 || i >= LandmarkCount {
		return ""
	}
	return landmarkNames[i]
}

// LookupLandmark resolves a client supplied name to its tensor index.
// "LEFT_KNEE", "left-knee" and "Left Knee" all resolve to LeftKnee.
func LookupLandmark(name string) (int, bool) {
	i, ok := landmarkIndex[normalizeName(name)]
	return i, ok
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", " ", "_").Replace(name)
}

func displayName(identifier string) string {
	return strings.ReplaceAll(identifier, "_", " ")
}
