package anomalyService

import (
	"PoseAnomaly/internal/api/anomaly"
	anomalyRepository "PoseAnomaly/internal/api/anomaly/repository"
	"PoseAnomaly/internal/entity"
	"PoseAnomaly/internal/pose"
	"PoseAnomaly/pkg/gemini"
	"PoseAnomaly/pkg/redis"
	"PoseAnomaly/pkg/s3"
	"PoseAnomaly/pkg/utils"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	defaultCacheTTL         = 10 * time.Minute
	defaultNarrationTimeout = 5 * time.Second
	defaultPageSize         = 20
)

type IAnomalyService interface {
	Ready() error
	DetectAnomaly(ctx context.Context, payload entity.LandmarkPayload) (anomaly.DetectAnomalyResponse, error)
	GetAnalysis(ctx context.Context, id string) (anomaly.AnalysisResponse, error)
	ListAnalyses(ctx context.Context, req anomaly.ListAnalysesRequest) (anomaly.AnalysisListResponse, error)
}

// Config tunes the optional side effects of a detection.
type Config struct {
	CacheTTL         time.Duration
	ArchiveAnomalies bool
	NarrationTimeout time.Duration
}

func ConfigFromEnv() Config {
	cfg := Config{
		CacheTTL:         defaultCacheTTL,
		NarrationTimeout: defaultNarrationTimeout,
	}
	if ttl, err := time.ParseDuration(os.Getenv("ANOMALY_CACHE_TTL")); err == nil && ttl >= 0 {
		cfg.CacheTTL = ttl
	}
	if archive, err := strconv.ParseBool(os.Getenv("AWS_ARCHIVE_ANOMALIES")); err == nil {
		cfg.ArchiveAnomalies = archive
	}
	return cfg
}

type anomalyService struct {
	log        *logrus.Logger
	pipeline   *pose.Pipeline
	repository anomalyRepository.Repository
	cache      redis.IRedis
	s3         s3.ItfS3
	gemini     gemini.IGemini
	utils      utils.IUtils
	cfg        Config
}

// NewAnomalyService wires the scoring pipeline with its optional
// collaborators. Any of repository, cache, s3 and gemini may be nil.
func NewAnomalyService(
	log *logrus.Logger,
	pipeline *pose.Pipeline,
	repository anomalyRepository.Repository,
	cache redis.IRedis,
	s3 s3.ItfS3,
	gemini gemini.IGemini,
	utils utils.IUtils,
	cfg Config,
) IAnomalyService {
	return &anomalyService{
		log:        log,
		pipeline:   pipeline,
		repository: repository,
		cache:      cache,
		s3:         s3,
		gemini:     gemini,
		utils:      utils,
		cfg:        cfg,
	}
}

func (s *anomalyService) Ready() error {
	return s.pipeline.Scorer().Ready()
}
