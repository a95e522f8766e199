package config

import (
	anomalyHandler "PoseAnomaly/internal/api/anomaly/handler"
	anomalyRepository "PoseAnomaly/internal/api/anomaly/repository"
	anomalyService "PoseAnomaly/internal/api/anomaly/service"
	"PoseAnomaly/internal/middleware"
	"PoseAnomaly/internal/pose"
	"PoseAnomaly/pkg/database/postgres"
	"PoseAnomaly/pkg/gemini"
	"PoseAnomaly/pkg/model"
	"PoseAnomaly/pkg/redis"
	"PoseAnomaly/pkg/s3"
	"PoseAnomaly/pkg/utils"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine       *fiber.App
	db           *sqlx.DB
	log          *logrus.Logger
	middleware   middleware.Middleware
	validator    *validator.Validate
	utils        utils.IUtils
	handlers     []handler
	model        model.Model
	redisServer  redis.IRedis
	geminiClient gemini.IGemini
	s3Client     s3.ItfS3
}

type handler interface {
	Start(srv fiber.Router)
}

// rootHandler is implemented by handlers that also serve unversioned paths.
type rootHandler interface {
	StartRoot(app fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.model == nil {
		server.model = model.Unavailable{Reason: errors.New("no model configured")}
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

// WithModel injects the reconstruction model loaded at startup.
func WithModel(m model.Model) ServerOption {
	return func(s *Server) error {
		s.model = m
		return nil
	}
}

// WithDatabase connects to postgres when DB_HOST is set. Without it the
// analysis history endpoints answer 503.
func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if errors.Is(err, postgres.ErrNotConfigured) {
			if s.log != nil {
				s.log.Warn("DB_HOST not set, analysis history disabled")
			}
			return nil
		}
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

// WithS3Client accepts a nil client; archiving is then skipped.
func WithS3Client(client s3.ItfS3) ServerOption {
	return func(s *Server) error {
		s.s3Client = client
		return nil
	}
}

func WithGeminiClient() ServerOption {
	return func(s *Server) error {
		client, err := gemini.NewGeminiClient()
		if errors.Is(err, gemini.ErrAPIKeyMissing) {
			if s.log != nil {
				s.log.Info("GEMINI_API_KEY not set, feedback narration disabled")
			}
			return nil
		}
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to create Gemini client: %v", err)
			}
			return fmt.Errorf("failed to create Gemini client: %w", err)
		}
		s.geminiClient = client
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	if s.utils == nil {
		s.utils = utils.New()
	}
	if s.validator == nil {
		s.validator = NewValidator()
	}
	if s.middleware == nil {
		s.middleware = middleware.New(s.log)
	}

	// Anomaly Domain
	scorer := pose.NewScorer(s.model, ScorerOptionsFromEnv(s.model.Manifest(), s.log)...)
	pipeline := pose.NewPipeline(scorer)

	var anomalyRepo anomalyRepository.Repository
	if s.db != nil {
		anomalyRepo = anomalyRepository.New(s.db, s.log)
	}

	anomalyServices := anomalyService.NewAnomalyService(
		s.log,
		pipeline,
		anomalyRepo,
		s.redisServer,
		s.s3Client,
		s.geminiClient,
		s.utils,
		anomalyService.ConfigFromEnv(),
	)
	anomalyHandlers := anomalyHandler.New(s.log, s.validator, s.middleware, anomalyServices, s.utils)

	s.handlers = append(s.handlers, anomalyHandlers)
}

func (s *Server) mount() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(middleware.LoggerConfig())

	s.setupHealthCheck()

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
		if r, ok := h.(rootHandler); ok {
			r.StartRoot(s.engine)
		}
	}
}

func (s *Server) Run() error {
	s.mount()

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops the listener and releases the optional backends.
func (s *Server) Shutdown() {
	if err := s.engine.Shutdown(); err != nil {
		s.log.Errorf("Error shutting down server: %v", err)
	}
	if s.geminiClient != nil {
		s.geminiClient.Close()
	}
	if closer, ok := s.model.(interface{ Close() }); ok {
		closer.Close()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing database: %v", err)
		}
	}
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		manifest := s.model.Manifest()
		return ctx.JSON(fiber.Map{
			"message":       "Server is Healthy!",
			"model_loaded":  s.model.Loaded(),
			"model_name":    manifest.Name,
			"model_version": manifest.Version,
		})
	})
}
