package entity

import "time"

type Analysis struct {
	ID           string     `db:"id"`
	RequestID    string     `db:"request_id"`
	Fingerprint  string     `db:"fingerprint"`
	FrameCount   int        `db:"frame_count"`
	SampleCount  int        `db:"sample_count"`
	AnomalyCount int        `db:"anomaly_count"`
	Threshold    float64    `db:"threshold"`
	MaxError     float64    `db:"max_error"`
	Feedback     []Feedback `db:"-"`
	ArchiveKey   string     `db:"archive_key"`
	CreatedAt    time.Time  `db:"created_at"`
}
