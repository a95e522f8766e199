package pose

import (
	"PoseAnomaly/internal/entity"
)

// Result is everything one pipeline run produced.
type Result struct {
	Frames   int
	Verdict  *Verdict
	Findings []Finding
	Feedback []entity.Feedback
}

// Pipeline runs Parse, Extract and Score in order.
type Pipeline struct {
	scorer *Scorer
}

func NewPipeline(scorer *Scorer) *Pipeline {
	return &Pipeline{scorer: scorer}
}

func (p *Pipeline) Scorer() *Scorer {
	return p.scorer
}

// Run scores one payload. Model availability is checked before the payload
// is looked at so an unloaded model is never masked by an input error.
func (p *Pipeline) Run(payload entity.LandmarkPayload) (*Result, error) {
	if err := p.scorer.Ready(); err != nil {
		return nil, err
	}

	seq, err := Parse(payload)
	if err != nil {
		return nil, err
	}

	features, err := Extract(seq)
	if err != nil {
		return nil, err
	}

	verdict, err := p.scorer.Score(features)
	if err != nil {
		return nil, err
	}

	findings := Findings(verdict)
	return &Result{
		Frames:   seq.Len(),
		Verdict:  verdict,
		Findings: findings,
		Feedback: BuildFeedback(findings),
	}, nil
}
