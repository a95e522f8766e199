package anomalyRepository

import (
	"PoseAnomaly/internal/api/anomaly"
	"PoseAnomaly/internal/entity"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const testSchema = `
	CREATE TABLE anomaly_analyses (
		id            TEXT PRIMARY KEY,
		request_id    TEXT NOT NULL,
		fingerprint   TEXT NOT NULL,
		frame_count   INTEGER NOT NULL,
		sample_count  INTEGER NOT NULL,
		anomaly_count INTEGER NOT NULL,
		threshold     REAL NOT NULL,
		max_error     REAL NOT NULL,
		feedback      TEXT NOT NULL,
		archive_key   TEXT,
		created_at    TIMESTAMP NOT NULL
	);
`

func newTestRepository(t *testing.T) Repository {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		db.Close()
	})

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(db, logger)
}

func testAnalysis(id string, createdAt time.Time) entity.Analysis {
	return entity.Analysis{
		ID:           id,
		RequestID:    "req-" + id,
		Fingerprint:  "fp-" + id,
		FrameCount:   5,
		SampleCount:  4,
		AnomalyCount: 1,
		Threshold:    0.125,
		MaxError:     3.5,
		Feedback:     []entity.Feedback{{Frame: 2, Text: "Unusual movement of the left wrist."}},
		CreatedAt:    createdAt,
	}
}

func TestAnalysisRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	client, err := repo.NewClient(false)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := testAnalysis("01A", created)
	want.ArchiveKey = "anomalies/2026-03-01/01A.json"
	if err := client.Analysis.CreateAnalysis(ctx, want); err != nil {
		t.Fatalf("CreateAnalysis error: %v", err)
	}

	got, err := client.Analysis.GetAnalysisByID(ctx, "01A")
	if err != nil {
		t.Fatalf("GetAnalysisByID error: %v", err)
	}
	if got.RequestID != want.RequestID || got.Fingerprint != want.Fingerprint || got.ArchiveKey != want.ArchiveKey {
		t.Fatalf("GetAnalysisByID = %+v, want %+v", got, want)
	}
	if got.FrameCount != 5 || got.SampleCount != 4 || got.AnomalyCount != 1 || got.Threshold != 0.125 || got.MaxError != 3.5 {
		t.Fatalf("GetAnalysisByID stats = %+v", got)
	}
	if len(got.Feedback) != 1 || got.Feedback[0] != want.Feedback[0] {
		t.Fatalf("feedback = %+v, want %+v", got.Feedback, want.Feedback)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, created)
	}
}

func TestGetAnalysisByIDNotFound(t *testing.T) {
	client, err := newTestRepository(t).NewClient(false)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	if _, err := client.Analysis.GetAnalysisByID(context.Background(), "missing"); !errors.Is(err, anomaly.ErrAnalysisNotFound) {
		t.Fatalf("GetAnalysisByID error = %v, want ErrAnalysisNotFound", err)
	}
}

func TestListAnalysesNewestFirst(t *testing.T) {
	client, err := newTestRepository(t).NewClient(false)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"01A", "01B", "01C"} {
		a := testAnalysis(id, base.Add(time.Duration(i)*time.Minute))
		if err := client.Analysis.CreateAnalysis(ctx, a); err != nil {
			t.Fatalf("CreateAnalysis(%s) error: %v", id, err)
		}
	}

	total, err := client.Analysis.CountAnalyses(ctx)
	if err != nil || total != 3 {
		t.Fatalf("CountAnalyses = %d, %v, want 3", total, err)
	}

	page, err := client.Analysis.ListAnalyses(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListAnalyses error: %v", err)
	}
	if len(page) != 2 || page[0].ID != "01C" || page[1].ID != "01B" {
		t.Fatalf("first page = %+v, want 01C then 01B", page)
	}
	if page[0].ArchiveKey != "" {
		t.Fatalf("archive key = %q, want empty for a NULL column", page[0].ArchiveKey)
	}

	page, err = client.Analysis.ListAnalyses(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListAnalyses error: %v", err)
	}
	if len(page) != 1 || page[0].ID != "01A" {
		t.Fatalf("second page = %+v, want only 01A", page)
	}
}

func TestNewClientTransactionRollback(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	tx, err := repo.NewClient(true)
	if err != nil {
		t.Fatalf("NewClient(tx) error: %v", err)
	}
	if err := tx.Analysis.CreateAnalysis(ctx, testAnalysis("01T", time.Now().UTC())); err != nil {
		t.Fatalf("CreateAnalysis error: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback error: %v", err)
	}

	client, err := repo.NewClient(false)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if _, err := client.Analysis.GetAnalysisByID(ctx, "01T"); !errors.Is(err, anomaly.ErrAnalysisNotFound) {
		t.Fatalf("rolled back analysis is visible: %v", err)
	}
}
