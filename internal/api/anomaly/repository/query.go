package anomalyRepository

const (
	queryCreateAnalysis = `
		INSERT INTO anomaly_analyses (
			id,
			request_id,
			fingerprint,
			frame_count,
			sample_count,
			anomaly_count,
			threshold,
			max_error,
			feedback,
			archive_key,
			created_at
		) VALUES (
			:id,
			:request_id,
			:fingerprint,
			:frame_count,
			:sample_count,
			:anomaly_count,
			:threshold,
			:max_error,
			:feedback,
			:archive_key,
			:created_at
		)
	`

	queryGetAnalysisByID = `
		SELECT
			id,
			request_id,
			fingerprint,
			frame_count,
			sample_count,
			anomaly_count,
			threshold,
			max_error,
			feedback,
			archive_key,
			created_at
		FROM anomaly_analyses
		WHERE id = :id
	`

	queryListAnalyses = `
		SELECT
			id,
			request_id,
			fingerprint,
			frame_count,
			sample_count,
			anomaly_count,
			threshold,
			max_error,
			feedback,
			archive_key,
			created_at
		FROM anomaly_analyses
		ORDER BY created_at DESC, id DESC
		LIMIT :limit OFFSET :offset
	`

	queryCountAnalyses = `
		SELECT COUNT(*) FROM anomaly_analyses
	`
)
