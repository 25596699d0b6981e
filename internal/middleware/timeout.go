package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicelink-backend/pkg/logger"
	"voicelink-backend/pkg/metrics"
)

// TimeoutConfig holds timeout configuration
type TimeoutConfig struct {
	DefaultTimeout time.Duration
	// Paths served without a deadline, such as the websocket upgrade
	SkipPaths []string
}

// DefaultTimeoutConfig returns default timeout configuration
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		DefaultTimeout: 30 * time.Second,
		SkipPaths:      []string{"/ws"},
	}
}

// TimeoutMiddleware bounds every request with a context deadline
type TimeoutMiddleware struct {
	config  *TimeoutConfig
	skip    map[string]bool
	metrics *metrics.Metrics
}

// NewTimeoutMiddleware creates a new timeout middleware
func NewTimeoutMiddleware(config *TimeoutConfig, m *metrics.Metrics) *TimeoutMiddleware {
	if config == nil {
		config = DefaultTimeoutConfig()
	}
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}
	return &TimeoutMiddleware{config: config, skip: skip, metrics: m}
}

// Middleware returns a Gin middleware for timeout protection
func (tm *TimeoutMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tm.skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		timeout := tm.config.DefaultTimeout

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		startTime := time.Now()
		c.Next()

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return
		}

		tm.metrics.RecordRequestTimeout(c.Request.Method, c.FullPath())
		logger.Warn("Request timed out",
			zap.Duration("timeout", timeout),
			zap.Duration("duration", time.Since(startTime)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
		)

		// Only answer if the handler gave up without writing
		if !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
				"error": "Request timeout",
				"code":  "REQUEST_TIMEOUT",
			})
		}
	}
}
