package room

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"voicelink-backend/internal/domain"
	"voicelink-backend/pkg/logger"
	"voicelink-backend/pkg/metrics"
	"voicelink-backend/pkg/resilience"
)

// GuardedProvider wraps a Provider with a circuit breaker and metrics
type GuardedProvider struct {
	inner   Provider
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
}

// NewGuardedProvider wraps inner
func NewGuardedProvider(inner Provider, breaker *resilience.CircuitBreaker, m *metrics.Metrics) *GuardedProvider {
	return &GuardedProvider{inner: inner, breaker: breaker, metrics: m}
}

// CreateRoom implements Provider
func (g *GuardedProvider) CreateRoom(ctx context.Context, sessionID string, kind domain.CallKind) (string, error) {
	var roomURL string
	err := g.execute(ctx, "create", func(ctx context.Context) error {
		var err error
		roomURL, err = g.inner.CreateRoom(ctx, sessionID, kind)
		return err
	})
	if err != nil {
		return "", err
	}
	return roomURL, nil
}

// DeleteRoom implements Provider
func (g *GuardedProvider) DeleteRoom(ctx context.Context, roomURL string) error {
	if IsPlaceholder(roomURL) {
		return nil
	}
	return g.execute(ctx, "delete", func(ctx context.Context) error {
		return g.inner.DeleteRoom(ctx, roomURL)
	})
}

func (g *GuardedProvider) execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	// A missing configuration is not a dependency failure; keep it away from the breaker.
	var notConfigured bool
	err := g.breaker.Execute(ctx, operation, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, ErrNotConfigured) {
			notConfigured = true
			return nil
		}
		return err
	})
	if notConfigured {
		g.metrics.RecordRoomRequest(operation, "not_configured")
		return ErrNotConfigured
	}
	if err != nil {
		g.metrics.RecordRoomRequest(operation, resilience.ClassifyError(err))
		logger.Warn("Room provider request failed",
			zap.String("operation", operation),
			zap.Error(err))
		return err
	}
	g.metrics.RecordRoomRequest(operation, "success")
	return nil
}
