package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/FACorreiaa/churninsight-dashboard/internal/pkg/config"
)

const defaultRetries = 5

// Pinger is the part of a Redis client WaitForRedis needs.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// NewRedisClient builds the client that backs the shared session store.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// WaitForRedis pings until the server answers or the attempts run out.
func WaitForRedis(ctx context.Context, client Pinger, logger *zap.Logger) bool {
	return waitFor(ctx, client, logger, 200*time.Millisecond)
}

func waitFor(ctx context.Context, client Pinger, logger *zap.Logger, base time.Duration) bool {
	maxAttempts := defaultRetries
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err := client.Ping(ctx).Err()
		if err == nil {
			logger.Info("Redis connection successful")
			return true
		}

		waitDuration := time.Duration(attempts) * base
		logger.Warn("Redis ping failed, retrying...",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("wait_duration", waitDuration),
			zap.Error(err),
		)
		if attempts == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			logger.Error("Redis wait cancelled", zap.Error(ctx.Err()))
			return false
		case <-time.After(waitDuration):
		}
	}
	logger.Error("Redis connection failed after multiple retries")
	return false
}
