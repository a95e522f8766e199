package pose

import (
	"errors"
	"math"
	"strings"
	"testing"

	"PoseAnomaly/internal/entity"
)

func TestParseShape(t *testing.T) {
	for _, frames := range []int{1, 2, 5, 30} {
		seq, err := Parse(buildPayload(frames, smoothMotion))
		if err != nil {
			t.Fatalf("Parse(%d frames) error: %v", frames, err)
		}
		want := [3]int{frames, LandmarkCount, 3}
		if got := seq.Shape(); got != want {
			t.Fatalf("Parse(%d frames) shape = %v, want %v", frames, got, want)
		}
	}
}

func TestParsePreservesOrderAndNames(t *testing.T) {
	payload := buildPayload(3, smoothMotion)

	// Shuffle names within a frame and use the upper case enum spelling.
	first := payload.Frames[0].Landmarks
	first[0], first[LeftKnee] = first[LeftKnee], first[0]
	for i := range first {
		first[i].Name = strings.ToUpper(first[i].Name)
	}

	seq, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	for f := 0; f < 3; f++ {
		for l := 0; l < LandmarkCount; l++ {
			want := smoothMotion(f, l)
			got := seq.At(f, l)
			if got.X() != want[0] || got.Y() != want[1] || got.Z() != want[2] {
				t.Fatalf("frame %d landmark %s = %v, want %v", f, LandmarkName(l), got, want)
			}
		}
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *entity.LandmarkPayload)
	}{
		{"missing frames", func(p *entity.LandmarkPayload) { p.Frames = nil }},
		{"empty frames", func(p *entity.LandmarkPayload) { p.Frames = []entity.LandmarkFrame{} }},
		{"empty landmarks", func(p *entity.LandmarkPayload) { p.Frames[1].Landmarks = nil }},
		{"missing landmark", func(p *entity.LandmarkPayload) {
			p.Frames[1].Landmarks = p.Frames[1].Landmarks[:LandmarkCount-1]
		}},
		{"duplicate landmark", func(p *entity.LandmarkPayload) {
			p.Frames[0].Landmarks[1].Name = p.Frames[0].Landmarks[0].Name
		}},
		{"unknown landmark", func(p *entity.LandmarkPayload) {
			p.Frames[0].Landmarks[3].Name = "tail"
		}},
		{"missing name", func(p *entity.LandmarkPayload) {
			p.Frames[0].Landmarks[3].Name = ""
		}},
		{"missing coordinate", func(p *entity.LandmarkPayload) {
			p.Frames[2].Landmarks[7].Z = nil
		}},
		{"not a number", func(p *entity.LandmarkPayload) {
			p.Frames[2].Landmarks[7].Y = f64(math.NaN())
		}},
		{"infinite", func(p *entity.LandmarkPayload) {
			p.Frames[2].Landmarks[7].X = f64(math.Inf(1))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := buildPayload(3, smoothMotion)
			tt.mutate(&payload)

			seq, err := Parse(payload)
			if !errors.Is(err, ErrMalformedInput) {
				t.Fatalf("Parse error = %v, want ErrMalformedInput", err)
			}
			if seq != nil {
				t.Fatalf("Parse returned a sequence alongside an error")
			}
		})
	}
}

func TestLookupLandmark(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"nose", Nose, true},
		{"LEFT_KNEE", LeftKnee, true},
		{"right-foot-index", RightFootIndex, true},
		{" Left Hip ", LeftHip, true},
		{"left_toe", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := LookupLandmark(tt.name)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("LookupLandmark(%q) = (%d, %v), want (%d, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}

	if len(LandmarkNames()) != LandmarkCount {
		t.Fatalf("vocabulary has %d names, want %d", len(LandmarkNames()), LandmarkCount)
	}
}
