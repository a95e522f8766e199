package anomaly

import "PoseAnomaly/internal/entity"

type DetectAnomalyResponse struct {
	FeedbackList []entity.Feedback `json:"feedbackList"`
	Summary      string            `json:"summary,omitempty"`
	AnalysisID   string            `json:"analysisId,omitempty"`
}

type ListAnalysesRequest struct {
	Page  int `query:"page" validate:"min=1"`
	Limit int `query:"limit" validate:"min=1,max=100"`
}

type AnalysisResponse struct {
	ID           string            `json:"id"`
	RequestID    string            `json:"request_id"`
	Fingerprint  string            `json:"fingerprint"`
	FrameCount   int               `json:"frame_count"`
	SampleCount  int               `json:"sample_count"`
	AnomalyCount int               `json:"anomaly_count"`
	Threshold    float64           `json:"threshold"`
	MaxError     float64           `json:"max_error"`
	Feedback     []entity.Feedback `json:"feedback"`
	ArchiveURL   string            `json:"archive_url,omitempty"`
	CreatedAt    string            `json:"created_at"`
}

type AnalysisListResponse struct {
	Analyses []AnalysisResponse `json:"analyses"`
	Page     int                `json:"page"`
	Limit    int                `json:"limit"`
	Total    int                `json:"total"`
}
