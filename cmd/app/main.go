package main

import (
	"PoseAnomaly/internal/config"
	"PoseAnomaly/internal/pose"
	"PoseAnomaly/pkg/log"
	"PoseAnomaly/pkg/model"
	"PoseAnomaly/pkg/redis"
	"PoseAnomaly/pkg/s3"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.NewLogger().Warnf("No .env file loaded: %v", err)
	}
	logger := log.NewLogger()

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()

	s3Client, err := s3.New()
	if err != nil {
		logger.Warnf("S3 disabled: %v", err)
	}

	var redisServer redis.IRedis
	if os.Getenv("REDIS_ADDRESS") != "" {
		redisServer = redis.New()
	} else {
		logger.Info("REDIS_ADDRESS not set, verdict cache disabled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	reconstructionModel, err := model.Load(ctx, model.ConfigFromEnv(pose.FeatureDim), s3Client, logger)
	cancel()
	if err != nil {
		logger.Errorf("Failed to load reconstruction model, detection will answer 503: %v", err)
	}

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithModel(reconstructionModel),
		config.WithDatabase(),
		config.WithRedisServer(redisServer),
		config.WithMiddleware(),
		config.WithS3Client(s3Client),
		config.WithGeminiClient(),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")
	server.Shutdown()
}
