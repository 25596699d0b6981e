package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"voicelink-backend/internal/domain"
	"voicelink-backend/pkg/resilience"
)

// MockProvider is a mock implementation of Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateRoom(ctx context.Context, sessionID string, kind domain.CallKind) (string, error) {
	args := m.Called(ctx, sessionID, kind)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) DeleteRoom(ctx context.Context, roomURL string) error {
	args := m.Called(ctx, roomURL)
	return args.Error(0)
}

func newGuarded(inner Provider) (*GuardedProvider, *resilience.CircuitBreaker) {
	breaker := resilience.NewCircuitBreaker(resilience.Config{Name: "daily", FailureThreshold: 2, OpenTimeout: time.Minute}, nil)
	return NewGuardedProvider(inner, breaker, nil), breaker
}

func TestGuardedProvider_OpensOnFailures(t *testing.T) {
	inner := new(MockProvider)
	guarded, breaker := newGuarded(inner)

	// Setup expectations
	inner.On("CreateRoom", mock.Anything, mock.Anything, domain.CallKindVoice).
		Return("", errors.New("connection refused")).Twice()

	// Execute
	for i := 0; i < 3; i++ {
		_, err := guarded.CreateRoom(context.Background(), "c", domain.CallKindVoice)
		assert.Error(t, err)
	}

	// Assert
	assert.Equal(t, resilience.CircuitBreakerOpen, breaker.State())
	inner.AssertExpectations(t)
}

func TestGuardedProvider_NotConfiguredDoesNotTrip(t *testing.T) {
	inner := new(MockProvider)
	guarded, breaker := newGuarded(inner)

	inner.On("CreateRoom", mock.Anything, mock.Anything, mock.Anything).Return("", ErrNotConfigured)

	for i := 0; i < 5; i++ {
		_, err := guarded.CreateRoom(context.Background(), "c", domain.CallKindVideo)
		assert.ErrorIs(t, err, ErrNotConfigured)
	}
	assert.Equal(t, resilience.CircuitBreakerClosed, breaker.State())
}

func TestGuardedProvider_DeletePlaceholderSkipsInner(t *testing.T) {
	inner := new(MockProvider)
	guarded, _ := newGuarded(inner)

	assert.NoError(t, guarded.DeleteRoom(context.Background(), PlaceholderURL("c")))
	inner.AssertNotCalled(t, "DeleteRoom", mock.Anything, mock.Anything)
}

func TestGuardedProvider_Success(t *testing.T) {
	inner := new(MockProvider)
	guarded, _ := newGuarded(inner)

	inner.On("CreateRoom", mock.Anything, "c1", domain.CallKindVideo).Return("https://voicelink.daily.co/c1", nil)
	inner.On("DeleteRoom", mock.Anything, "https://voicelink.daily.co/c1").Return(nil)

	roomURL, err := guarded.CreateRoom(context.Background(), "c1", domain.CallKindVideo)
	assert.NoError(t, err)
	assert.Equal(t, "https://voicelink.daily.co/c1", roomURL)
	assert.NoError(t, guarded.DeleteRoom(context.Background(), roomURL))
	inner.AssertExpectations(t)
}
