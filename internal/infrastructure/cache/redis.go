package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seatshield/ticket-fraud-backend/internal/infrastructure/config"
)

// newClient translates our config into go-redis options. Shared by the
// standalone cache constructor and the manager so both dial the same way.
func newClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.URL,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// pingClient verifies the connection before anything is served from it,
// so a bad redis URL fails startup instead of the first request.
func pingClient(client *redis.Client, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

type redisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache dials redis and returns a Cache over it. The returned
// cache owns the connection; callers are expected to Close it.
func NewRedisCache(cfg *config.RedisConfig, logger *zap.Logger) (Cache, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	client := newClient(cfg)
	if err := pingClient(client, cfg.DialTimeout); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("redis cache initialized",
		zap.String("addr", cfg.URL),
		zap.Int("db", cfg.DB),
		zap.Int("pool_size", cfg.PoolSize))

	return &redisCache{client: client, logger: logger}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	result, err := r.client.Get(ctx, key).Result()
	switch {
	case err == redis.Nil:
		return "", ErrCacheKeyNotFound{Key: key}
	case err != nil:
		return "", r.fail("get", key, err)
	}
	return result, nil
}

func (r *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return r.fail("set", key, err)
	}
	return nil
}

func (r *redisCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, r.fail("setnx", key, err)
	}
	return ok, nil
}

func (r *redisCache) Increment(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, r.fail("incr", key, err)
	}
	return n, nil
}

func (r *redisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := r.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return r.fail("expire", key, err)
	}
	// Redis reports false when the key does not exist.
	if !ok {
		return ErrCacheKeyNotFound{Key: key}
	}
	return nil
}

func (r *redisCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("redis json decode failed for %q: %w", key, err)
	}
	return nil
}

func (r *redisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis json encode failed for %q: %w", key, err)
	}
	return r.Set(ctx, key, data, ttl)
}

func (r *redisCache) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("redis close failed: %w", err)
	}
	return nil
}

// fail logs the failed command once here so callers can wrap and return
// without each one repeating the log line.
func (r *redisCache) fail(op, key string, err error) error {
	r.logger.Error("redis command failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err))
	return fmt.Errorf("redis %s failed: %w", op, err)
}
