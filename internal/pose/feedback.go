package pose

import (
	"fmt"
	"math"

	"PoseAnomaly/internal/entity"

	"gonum.org/v1/gonum/floats"
)

const NoAnomalyText = "No anomalies detected."

// Finding describes one flagged sample and the body part that contributed
// most to its reconstruction error.
type Finding struct {
	Sample int
	Frame  int
	Error  float64
	Part   string
	Kind   FeatureKind
}

func (f Finding) Text() string {
	part := displayName(f.Part)
	if f.Kind == KindAngle {
		return fmt.Sprintf("Unusual %s angle change.", part)
	}
	return fmt.Sprintf("Unusual movement in the %s.", part)
}

// Findings explains every anomalous sample of v, ordered by frame.
func Findings(v *Verdict) []Finding {
	if v == nil {
		return nil
	}

	findings := make([]Finding, 0, v.AnomalyCount())
	for _, sample := range v.AnomalousSamples() {
		group := dominantGroup(v, sample)
		findings = append(findings, Finding{
			Sample: sample,
			Frame:  SampleFrame(sample),
			Error:  v.Errors[sample],
			Part:   group.Part,
			Kind:   group.Kind,
		})
	}
	return findings
}

func dominantGroup(v *Verdict, sample int) FeatureGroup {
	best := featureGroups[0]
	if v.Residuals == nil {
		return best
	}

	row := v.Residuals.RawRowView(sample)
	bestScore := math.Inf(-1)
	for _, g := range featureGroups {
		if g.End > len(row) {
			break
		}
		score := floats.Norm(row[g.Start:g.End], 1) / float64(g.End-g.Start)
		if score > bestScore {
			best, bestScore = g, score
		}
	}
	return best
}

// BuildFeedback renders findings as the response feedback list. Without
// findings a single frame 0 entry reports that nothing was found.
func BuildFeedback(findings []Finding) []entity.Feedback {
	if len(findings) == 0 {
		return []entity.Feedback{{Frame: 0, Text: NoAnomalyText}}
	}

	feedback := make([]entity.Feedback, 0, len(findings))
	for _, f := range findings {
		feedback = append(feedback, entity.Feedback{Frame: f.Frame, Text: f.Text()})
	}
	return feedback
}
