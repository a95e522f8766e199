package model

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	BackendDense  = "dense"
	BackendRemote = "remote"

	defaultModelPath = "./storage/models/autoencoder.json"
)

// ArtifactFetcher downloads a stored model artifact to a local path.
type ArtifactFetcher interface {
	DownloadFile(ctx context.Context, key string, dest string) error
}

type Config struct {
	Backend   string
	Path      string
	S3Key     string
	RemoteURL string
	InputDim  int
}

func ConfigFromEnv(inputDim int) Config {
	cfg := Config{
		Backend:   strings.ToLower(os.Getenv("MODEL_BACKEND")),
		Path:      os.Getenv("MODEL_PATH"),
		S3Key:     os.Getenv("MODEL_S3_KEY"),
		RemoteURL: os.Getenv("MODEL_WS_URL"),
		InputDim:  inputDim,
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendDense
	}
	if cfg.Path == "" {
		cfg.Path = defaultModelPath
	}
	return cfg
}

// Load builds the model once at startup. It always returns a usable Model:
// when loading fails the error is returned together with an Unavailable
// model so the caller can log it and keep serving.
func Load(ctx context.Context, cfg Config, fetcher ArtifactFetcher, log *logrus.Logger) (Model, error) {
	m, err := load(ctx, cfg, fetcher, log)
	if err != nil {
		return Unavailable{Reason: err}, err
	}

	manifest := m.Manifest()
	log.WithFields(logrus.Fields{
		"backend":   cfg.Backend,
		"name":      manifest.Name,
		"version":   manifest.Version,
		"input_dim": manifest.InputDim,
	}).Info("Reconstruction model loaded")

	return m, nil
}

func load(ctx context.Context, cfg Config, fetcher ArtifactFetcher, log *logrus.Logger) (Model, error) {
	switch cfg.Backend {
	case BackendRemote:
		if cfg.RemoteURL == "" {
			return nil, fmt.Errorf("MODEL_WS_URL is required for the %s backend", BackendRemote)
		}
		return NewRemoteModel(cfg.RemoteURL, Manifest{Name: cfg.RemoteURL, InputDim: cfg.InputDim}, log), nil

	case BackendDense:
		if cfg.S3Key != "" {
			if fetcher == nil {
				return nil, fmt.Errorf("MODEL_S3_KEY is set but no artifact store is configured")
			}
			if err := fetcher.DownloadFile(ctx, cfg.S3Key, cfg.Path); err != nil {
				return nil, fmt.Errorf("failed to download model %s: %w", cfg.S3Key, err)
			}
		}

		m, err := LoadDenseFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		if cfg.InputDim != 0 && m.Manifest().InputDim != cfg.InputDim {
			return nil, fmt.Errorf("%w: model takes %d features, extractor produces %d", ErrShapeMismatch, m.Manifest().InputDim, cfg.InputDim)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
}
