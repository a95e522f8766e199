package anomalyService

import (
	"PoseAnomaly/internal/api/anomaly"
	"PoseAnomaly/internal/entity"
	"PoseAnomaly/internal/pose"
	contextPkg "PoseAnomaly/pkg/context"
	"PoseAnomaly/pkg/redis"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

func (s *anomalyService) DetectAnomaly(ctx context.Context, payload entity.LandmarkPayload) (anomaly.DetectAnomalyResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if err := s.Ready(); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
		}).Warn("Rejecting detection, reconstruction model is not loaded")
		return anomaly.DetectAnomalyResponse{}, err
	}

	fingerprint, err := s.utils.Fingerprint(payload)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to fingerprint payload, skipping cache")
	}

	entry, ok := s.cachedVerdict(ctx, fingerprint)
	if !ok {
		result, err := s.pipeline.Run(payload)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"frames":     len(payload.Frames),
				"error":      err.Error(),
			}).Warn("Anomaly scoring failed")
			return anomaly.DetectAnomalyResponse{}, err
		}

		verdict := result.Verdict
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"frames":     result.Frames,
			"samples":    len(verdict.Errors),
			"anomalies":  verdict.AnomalyCount(),
			"threshold":  verdict.Threshold,
			"max_error":  verdict.MaxError(),
		}).Info("Scored landmark sequence")

		entry = verdictEntry{
			FeedbackList: result.Feedback,
			Summary:      s.narrate(ctx, result.Findings),
			FrameCount:   result.Frames,
			SampleCount:  len(verdict.Errors),
			AnomalyCount: verdict.AnomalyCount(),
			Threshold:    verdict.Threshold,
			MaxError:     verdict.MaxError(),
		}
		s.cacheVerdict(ctx, fingerprint, entry)
	}

	return anomaly.DetectAnomalyResponse{
		FeedbackList: entry.FeedbackList,
		Summary:      entry.Summary,
		AnalysisID:   s.record(ctx, fingerprint, entry, payload),
	}, nil
}

// verdictEntry is what the verdict cache holds for a payload fingerprint.
// It never carries an analysis id: every request, cached or not, gets its
// own history record.
type verdictEntry struct {
	FeedbackList []entity.Feedback `json:"feedbackList"`
	Summary      string            `json:"summary,omitempty"`
	FrameCount   int               `json:"frameCount"`
	SampleCount  int               `json:"sampleCount"`
	AnomalyCount int               `json:"anomalyCount"`
	Threshold    float64           `json:"threshold"`
	MaxError     float64           `json:"maxError"`
}

// record archives and stores the analysis for one request and returns its
// id, or "" when nothing was stored.
func (s *anomalyService) record(ctx context.Context, fingerprint string, entry verdictEntry, payload entity.LandmarkPayload) string {
	analysisID, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return ""
	}

	analysis := entity.Analysis{
		ID:           analysisID,
		RequestID:    contextPkg.GetRequestID(ctx),
		Fingerprint:  fingerprint,
		FrameCount:   entry.FrameCount,
		SampleCount:  entry.SampleCount,
		AnomalyCount: entry.AnomalyCount,
		Threshold:    entry.Threshold,
		MaxError:     entry.MaxError,
		Feedback:     entry.FeedbackList,
		CreatedAt:    time.Now(),
	}
	analysis.ArchiveKey = s.archive(ctx, analysis, payload)
	if !s.persist(ctx, analysis) {
		return ""
	}
	return analysisID
}

func (s *anomalyService) cachedVerdict(ctx context.Context, fingerprint string) (verdictEntry, bool) {
	if s.cache == nil || fingerprint == "" {
		return verdictEntry{}, false
	}

	requestID := contextPkg.GetRequestID(ctx)
	raw, err := s.cache.GetVerdict(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("Verdict cache unavailable")
		}
		return verdictEntry{}, false
	}

	var entry verdictEntry
	if err := jsoniter.Unmarshal(raw, &entry); err != nil || len(entry.FeedbackList) == 0 {
		s.log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"fingerprint": fingerprint,
		}).Warn("Ignoring unreadable cached verdict")
		return verdictEntry{}, false
	}

	s.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"fingerprint": fingerprint,
	}).Debug("Serving cached verdict")
	return entry, true
}

func (s *anomalyService) cacheVerdict(ctx context.Context, fingerprint string, entry verdictEntry) {
	if s.cache == nil || fingerprint == "" || s.cfg.CacheTTL <= 0 {
		return
	}

	raw, err := jsoniter.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.cache.SetVerdict(ctx, fingerprint, raw, s.cfg.CacheTTL); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Failed to cache verdict")
	}
}

// archive uploads payloads that produced at least one anomaly and returns
// the object key, or "" when nothing was stored.
func (s *anomalyService) archive(ctx context.Context, analysis entity.Analysis, payload entity.LandmarkPayload) string {
	if s.s3 == nil || !s.cfg.ArchiveAnomalies || analysis.AnomalyCount == 0 {
		return ""
	}

	requestID := contextPkg.GetRequestID(ctx)
	body, err := jsoniter.Marshal(payload)
	if err != nil {
		return ""
	}

	key := fmt.Sprintf("anomalies/%s/%s.json", analysis.CreatedAt.UTC().Format("2006-01-02"), analysis.ID)
	location, err := s.s3.Upload(ctx, key, body, "application/json")
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"key":        key,
			"error":      err.Error(),
		}).Error("Failed to archive anomalous payload")
		return ""
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"location":   location,
	}).Debug("Archived anomalous payload")
	return key
}

func (s *anomalyService) persist(ctx context.Context, analysis entity.Analysis) bool {
	if s.repository == nil {
		return false
	}

	requestID := contextPkg.GetRequestID(ctx)
	repo, err := s.repository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return false
	}

	if err := repo.Analysis.CreateAnalysis(ctx, analysis); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"analysis_id": analysis.ID,
			"error":       err.Error(),
		}).Error("Failed to store analysis")
		return false
	}

	return true
}

// narrate asks the language model for a short coaching summary of the
// findings. Any failure leaves the summary empty.
func (s *anomalyService) narrate(ctx context.Context, findings []pose.Finding) string {
	if s.gemini == nil || len(findings) == 0 {
		return ""
	}

	timeout := s.cfg.NarrationTimeout
	if timeout <= 0 {
		timeout = defaultNarrationTimeout
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := s.gemini.GenerateText(c, narrationPrompt(findings))
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Feedback narration failed")
		return ""
	}

	return strings.TrimSpace(text)
}

func narrationPrompt(findings []pose.Finding) string {
	var sb strings.Builder
	sb.WriteString("You are a movement coach. A pose anomaly detector flagged these frames of an exercise recording:\n")
	for _, f := range findings {
		sb.WriteString(fmt.Sprintf("- frame %d: %s (reconstruction error %.4f)\n", f.Frame, f.Text(), f.Error))
	}
	sb.WriteString("Write at most two plain sentences of advice for the athlete. Do not mention the detector or error values.")
	return sb.String()
}

func (s *anomalyService) GetAnalysis(ctx context.Context, id string) (anomaly.AnalysisResponse, error) {
	if s.repository == nil {
		return anomaly.AnalysisResponse{}, anomaly.ErrHistoryUnavailable
	}

	repo, err := s.repository.NewClient(false)
	if err != nil {
		return anomaly.AnalysisResponse{}, err
	}

	analysis, err := repo.Analysis.GetAnalysisByID(ctx, id)
	if err != nil {
		return anomaly.AnalysisResponse{}, err
	}

	resp := makeAnalysisResponse(analysis)
	if analysis.ArchiveKey != "" && s.s3 != nil {
		url, err := s.s3.PresignUrl(analysis.ArchiveKey)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"key":        analysis.ArchiveKey,
				"error":      err.Error(),
			}).Warn("Failed to presign archived payload")
		} else {
			resp.ArchiveURL = url
		}
	}

	return resp, nil
}

func (s *anomalyService) ListAnalyses(ctx context.Context, req anomaly.ListAnalysesRequest) (anomaly.AnalysisListResponse, error) {
	if s.repository == nil {
		return anomaly.AnalysisListResponse{}, anomaly.ErrHistoryUnavailable
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = defaultPageSize
	}

	repo, err := s.repository.NewClient(false)
	if err != nil {
		return anomaly.AnalysisListResponse{}, err
	}

	total, err := repo.Analysis.CountAnalyses(ctx)
	if err != nil {
		return anomaly.AnalysisListResponse{}, err
	}

	analyses, err := repo.Analysis.ListAnalyses(ctx, req.Limit, (req.Page-1)*req.Limit)
	if err != nil {
		return anomaly.AnalysisListResponse{}, err
	}

	resp := anomaly.AnalysisListResponse{
		Analyses: make([]anomaly.AnalysisResponse, 0, len(analyses)),
		Page:     req.Page,
		Limit:    req.Limit,
		Total:    total,
	}
	for _, a := range analyses {
		resp.Analyses = append(resp.Analyses, makeAnalysisResponse(a))
	}

	return resp, nil
}

func makeAnalysisResponse(a entity.Analysis) anomaly.AnalysisResponse {
	feedback := a.Feedback
	if feedback == nil {
		feedback = []entity.Feedback{}
	}

	return anomaly.AnalysisResponse{
		ID:           a.ID,
		RequestID:    a.RequestID,
		Fingerprint:  a.Fingerprint,
		FrameCount:   a.FrameCount,
		SampleCount:  a.SampleCount,
		AnomalyCount: a.AnomalyCount,
		Threshold:    a.Threshold,
		MaxError:     a.MaxError,
		Feedback:     feedback,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
	}
}
