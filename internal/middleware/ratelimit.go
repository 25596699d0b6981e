package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicelink-backend/internal/database"
	apperrors "voicelink-backend/pkg/errors"
	"voicelink-backend/pkg/logger"
	"voicelink-backend/pkg/metrics"
	"voicelink-backend/pkg/response"
)

// RateLimiter implements fixed-window rate limiting per client IP. Counters
// live in Redis; while Redis is disabled or degraded an in-process window
// is used instead.
type RateLimiter struct {
	redis    *database.RedisClient
	fallback *InMemoryRateLimiter
	requests int
	window   time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter. redis may be nil.
// requests: maximum number of requests allowed
// window: time window for the rate limit (e.g., 1 minute)
func NewRateLimiter(redis *database.RedisClient, requests int, window time.Duration, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		redis:    redis,
		fallback: NewInMemoryRateLimiter(),
		requests: requests,
		window:   window,
		metrics:  m,
		now:      time.Now,
	}
}

// Middleware returns a Gin middleware for rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := "ip:" + c.ClientIP()

		allowed, remaining, resetTime, err := rl.check(c.Request.Context(), identifier)
		if err != nil {
			// Fail-open: a broken limiter must not take the API down
			logger.Warn("Rate limit check failed, allowing request",
				zap.String("identifier", identifier),
				zap.Error(err))
			c.Next()
			return
		}

		// Set rate limit headers
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))

		if !allowed {
			rl.metrics.RecordRateLimitBlocked(c.FullPath())
			response.FromError(c, apperrors.RateLimitExceededError())
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) check(ctx context.Context, identifier string) (bool, int, int64, error) {
	if rl.redis == nil || rl.redis.IsDegraded() {
		allowed, remaining, reset := rl.fallback.Check(identifier, rl.requests, rl.window, rl.now())
		return allowed, remaining, reset, nil
	}
	return rl.checkRedis(ctx, identifier)
}

// checkRedis counts the request in the current window with INCR. The key
// carries the window start so each window gets a fresh counter.
func (rl *RateLimiter) checkRedis(ctx context.Context, identifier string) (bool, int, int64, error) {
	windowSeconds := int64(rl.window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	now := rl.now().Unix()
	windowStart := now - now%windowSeconds
	key := fmt.Sprintf("ratelimit:%s:%d", identifier, windowStart)

	pipe := rl.redis.Client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, 0, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	count := int(incr.Val())
	remaining := rl.requests - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.requests, remaining, windowStart + windowSeconds, nil
}

// InMemoryRateLimiter provides in-memory rate limiting as fallback when Redis is unavailable
type InMemoryRateLimiter struct {
	mu        sync.Mutex
	limits    map[string]*windowCount
	lastSweep int64
}

type windowCount struct {
	count       int
	windowStart int64
}

// NewInMemoryRateLimiter creates a new in-memory rate limiter
func NewInMemoryRateLimiter() *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		limits: make(map[string]*windowCount),
	}
}

// Check counts a request for identifier and reports whether it is allowed,
// how many remain and when the window resets (unix seconds)
func (im *InMemoryRateLimiter) Check(identifier string, requests int, window time.Duration, now time.Time) (bool, int, int64) {
	windowSeconds := int64(window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	unix := now.Unix()
	windowStart := unix - unix%windowSeconds

	im.mu.Lock()
	defer im.mu.Unlock()

	// Drop stale windows once per window so the map does not grow without bound
	if windowStart > im.lastSweep {
		for id, w := range im.limits {
			if w.windowStart < windowStart {
				delete(im.limits, id)
			}
		}
		im.lastSweep = windowStart
	}

	w, ok := im.limits[identifier]
	if !ok {
		w = &windowCount{windowStart: windowStart}
		im.limits[identifier] = w
	}
	w.count++

	remaining := requests - w.count
	if remaining < 0 {
		remaining = 0
	}
	return w.count <= requests, remaining, windowStart + windowSeconds
}
