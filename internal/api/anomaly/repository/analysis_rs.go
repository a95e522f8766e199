package anomalyRepository

import (
	"PoseAnomaly/internal/api/anomaly"
	"PoseAnomaly/internal/entity"
	contextPkg "PoseAnomaly/pkg/context"
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

type AnalysisDB struct {
	ID           string         `db:"id"`
	RequestID    string         `db:"request_id"`
	Fingerprint  string         `db:"fingerprint"`
	FrameCount   int            `db:"frame_count"`
	SampleCount  int            `db:"sample_count"`
	AnomalyCount int            `db:"anomaly_count"`
	Threshold    float64        `db:"threshold"`
	MaxError     float64        `db:"max_error"`
	Feedback     string         `db:"feedback"`
	ArchiveKey   sql.NullString `db:"archive_key"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (r *analysisRepository) CreateAnalysis(c context.Context, analysis entity.Analysis) error {
	requestID := contextPkg.GetRequestID(c)

	feedback, err := jsoniter.MarshalToString(analysis.Feedback)
	if err != nil {
		return err
	}

	createdAt := analysis.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	argsKV := map[string]interface{}{
		"id":            analysis.ID,
		"request_id":    analysis.RequestID,
		"fingerprint":   analysis.Fingerprint,
		"frame_count":   analysis.FrameCount,
		"sample_count":  analysis.SampleCount,
		"anomaly_count": analysis.AnomalyCount,
		"threshold":     analysis.Threshold,
		"max_error":     analysis.MaxError,
		"feedback":      feedback,
		"archive_key":   sql.NullString{String: analysis.ArchiveKey, Valid: analysis.ArchiveKey != ""},
		"created_at":    createdAt,
	}

	query, args, err := sqlx.Named(queryCreateAnalysis, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateAnalysis")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating analysis")
		return err
	}

	return nil
}

func (r *analysisRepository) GetAnalysisByID(c context.Context, id string) (entity.Analysis, error) {
	requestID := contextPkg.GetRequestID(c)
	var row AnalysisDB

	query, args, err := sqlx.Named(queryGetAnalysisByID, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetAnalysisByID named query preparation err")
		return entity.Analysis{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id":  requestID,
				"analysis_id": id,
			}).Warn("GetAnalysisByID no rows found")
			return entity.Analysis{}, anomaly.ErrAnalysisNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetAnalysisByID execution err")
		return entity.Analysis{}, err
	}

	return r.makeAnalysis(row), nil
}

func (r *analysisRepository) ListAnalyses(c context.Context, limit int, offset int) ([]entity.Analysis, error) {
	requestID := contextPkg.GetRequestID(c)
	var rows []AnalysisDB

	argsKV := map[string]interface{}{
		"limit":  limit,
		"offset": offset,
	}

	query, args, err := sqlx.Named(queryListAnalyses, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListAnalyses named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(c, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListAnalyses execution err")
		return nil, err
	}

	result := make([]entity.Analysis, 0, len(rows))
	for _, row := range rows {
		result = append(result, r.makeAnalysis(row))
	}

	return result, nil
}

func (r *analysisRepository) CountAnalyses(c context.Context) (int, error) {
	var total int
	if err := r.q.GetContext(c, &total, queryCountAnalyses); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(c),
			"error":      err.Error(),
		}).Error("CountAnalyses execution err")
		return 0, err
	}
	return total, nil
}

func (r *analysisRepository) makeAnalysis(row AnalysisDB) entity.Analysis {
	var feedback []entity.Feedback
	if err := jsoniter.UnmarshalFromString(row.Feedback, &feedback); err != nil {
		r.log.WithFields(logrus.Fields{
			"analysis_id": row.ID,
			"error":       err.Error(),
		}).Warn("Stored feedback is not valid JSON")
	}

	return entity.Analysis{
		ID:           row.ID,
		RequestID:    row.RequestID,
		Fingerprint:  row.Fingerprint,
		FrameCount:   row.FrameCount,
		SampleCount:  row.SampleCount,
		AnomalyCount: row.AnomalyCount,
		Threshold:    row.Threshold,
		MaxError:     row.MaxError,
		Feedback:     feedback,
		ArchiveKey:   row.ArchiveKey.String,
		CreatedAt:    row.CreatedAt,
	}
}
