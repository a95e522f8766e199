package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var ErrNotConfigured = errors.New("DB_HOST is not set")

const schema = `
	CREATE TABLE IF NOT EXISTS anomaly_analyses (
		id            VARCHAR(26) PRIMARY KEY,
		request_id    VARCHAR(64) NOT NULL,
		fingerprint   CHAR(64) NOT NULL,
		frame_count   INTEGER NOT NULL,
		sample_count  INTEGER NOT NULL,
		anomaly_count INTEGER NOT NULL,
		threshold     DOUBLE PRECISION NOT NULL,
		max_error     DOUBLE PRECISION NOT NULL,
		feedback      TEXT NOT NULL,
		archive_key   TEXT,
		created_at    TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_anomaly_analyses_created_at ON anomaly_analyses (created_at DESC);
`

func DSN() (string, error) {
	host := os.Getenv("DB_HOST")
	if host == "" {
		return "", ErrNotConfigured
	}

	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}
	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host,
		port,
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		sslMode,
	), nil
}

func New() (*sqlx.DB, error) {
	dsn, err := DSN()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return db, nil
}
