package anomaly

import (
	"PoseAnomaly/pkg/response"
	"net/http"
)

var (
	ErrHistoryUnavailable = response.NewKindError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "analysis history is not configured")
	ErrAnalysisNotFound   = response.NewKindError(http.StatusNotFound, "ANALYSIS_NOT_FOUND", "analysis not found")
)
