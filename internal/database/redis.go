package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"voicelink-backend/pkg/logger"
	"voicelink-backend/pkg/metrics"
)

// errDegraded is returned by Safe* helpers while Redis is unreachable
var errDegraded = fmt.Errorf("redis is in degraded mode")

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// RedisClient wraps Redis client with degraded mode support.
// While degraded, Safe* helpers fail fast instead of waiting on timeouts.
type RedisClient struct {
	Client         *redis.Client
	degradedMode   bool
	degradedModeMu sync.RWMutex
	healthCheckMu  sync.Mutex
	metrics        *metrics.Metrics
}

// NewRedisDB creates a Redis client from config. The connection is lazy;
// call HealthCheck to learn whether the server is reachable.
func NewRedisDB(cfg *RedisConfig, m *metrics.Metrics) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		DialTimeout:  cfg.Timeout,
	})
	return NewRedisClient(client, m)
}

// NewRedisClient wraps an existing go-redis client
func NewRedisClient(client *redis.Client, m *metrics.Metrics) *RedisClient {
	return &RedisClient{
		Client:  client,
		metrics: m,
	}
}

// Close closes the Redis client connection
func (r *RedisClient) Close() error {
	return r.Client.Close()
}

// StartHealthCheck pings Redis every interval until ctx is done. It blocks.
func (r *RedisClient) StartHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.HealthCheck(ctx); err != nil {
				logger.Warn("Redis health check failed", zap.Error(err))
			}
		}
	}
}

// IsDegraded returns true if Redis is in degraded mode
func (r *RedisClient) IsDegraded() bool {
	r.degradedModeMu.RLock()
	defer r.degradedModeMu.RUnlock()
	return r.degradedMode
}

func (r *RedisClient) setDegradedState(degraded bool) {
	r.degradedModeMu.Lock()
	changed := r.degradedMode != degraded
	r.degradedMode = degraded
	r.degradedModeMu.Unlock()

	if !changed {
		return
	}
	r.metrics.SetRedisDegraded(degraded)
	if degraded {
		logger.Warn("Redis entered degraded mode")
	} else {
		logger.Info("Redis recovered from degraded mode")
	}
}

// HealthCheck pings Redis and updates degraded mode
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	r.healthCheckMu.Lock()
	defer r.healthCheckMu.Unlock()

	healthCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.Client.Ping(healthCtx).Err(); err != nil {
		r.setDegradedState(true)
		return fmt.Errorf("redis health check failed: %w", err)
	}

	r.setDegradedState(false)
	return nil
}

// SafeSet performs a SET operation with degraded mode handling
func (r *RedisClient) SafeSet(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if r.IsDegraded() {
		return redis.NewStatusResult("", errDegraded)
	}
	return r.Client.Set(ctx, key, value, expiration)
}

// SafeDel performs a DEL operation with degraded mode handling
func (r *RedisClient) SafeDel(ctx context.Context, keys ...string) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, errDegraded)
	}
	return r.Client.Del(ctx, keys...)
}

// SafeSAdd performs a SADD operation with degraded mode handling
func (r *RedisClient) SafeSAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, errDegraded)
	}
	return r.Client.SAdd(ctx, key, members...)
}

// SafeSRem performs a SREM operation with degraded mode handling
func (r *RedisClient) SafeSRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, errDegraded)
	}
	return r.Client.SRem(ctx, key, members...)
}

// SafeSCard performs a SCARD operation with degraded mode handling
func (r *RedisClient) SafeSCard(ctx context.Context, key string) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, errDegraded)
	}
	return r.Client.SCard(ctx, key)
}
