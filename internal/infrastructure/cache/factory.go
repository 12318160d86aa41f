package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seatshield/ticket-fraud-backend/internal/infrastructure/config"
)

// CacheManager bundles the cache services backed by one redis
// connection. The server builds one at startup and hands the parts to
// whoever needs them.
type CacheManager struct {
	Cache       Cache
	RateLimiter RateLimiter

	client *redis.Client
	logger *zap.Logger
}

// NewCacheManager dials redis once and wires the cache and rate limiter
// on top of that shared client.
func NewCacheManager(cfg *config.RedisConfig, logger *zap.Logger) (*CacheManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	client := newClient(cfg)
	if err := pingClient(client, cfg.DialTimeout); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("cache manager initialized",
		zap.String("addr", cfg.URL),
		zap.Int("db", cfg.DB))

	return &CacheManager{
		Cache:       &redisCache{client: client, logger: logger},
		RateLimiter: NewRedisRateLimiter(client, logger),
		client:      client,
		logger:      logger,
	}, nil
}

// HealthCheck pings the shared connection. Used by the readiness probe.
func (cm *CacheManager) HealthCheck(ctx context.Context) error {
	if err := cm.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close tears down the shared client. The Cache and RateLimiter built
// on it are unusable afterwards.
func (cm *CacheManager) Close() error {
	if err := cm.client.Close(); err != nil {
		return fmt.Errorf("redis close failed: %w", err)
	}
	cm.logger.Info("cache manager closed")
	return nil
}
