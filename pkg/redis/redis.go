package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrCacheMiss = errors.New("cache miss")

const verdictKeyPrefix = "anomaly:verdict:"

// IRedis caches rendered verdicts keyed by payload fingerprint.
type IRedis interface {
	SetVerdict(ctx context.Context, fingerprint string, verdict []byte, expiration time.Duration) error
	GetVerdict(ctx context.Context, fingerprint string) ([]byte, error)
	Ping(ctx context.Context) error
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) IRedis {
	return &redisClient{client: client}
}

func verdictKey(fingerprint string) string {
	return verdictKeyPrefix + fingerprint
}

func (r *redisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisClient) SetVerdict(ctx context.Context, fingerprint string, verdict []byte, expiration time.Duration) error {
	key := verdictKey(fingerprint)
	logrus.Debug(fmt.Sprintf("Caching verdict for key %s with expiration %v", key, expiration))
	err := r.client.Set(ctx, key, verdict, expiration).Err()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error caching verdict for key %s: %v", key, err))
		return err
	}
	return nil
}

func (r *redisClient) GetVerdict(ctx context.Context, fingerprint string) ([]byte, error) {
	key := verdictKey(fingerprint)
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		logrus.Debug(fmt.Sprintf("Verdict not cached for key %s", key))
		return nil, ErrCacheMiss
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error reading verdict for key %s: %v", key, err))
		return nil, err
	}
	logrus.Debug(fmt.Sprintf("Verdict cache hit for key %s", key))
	return val, nil
}
