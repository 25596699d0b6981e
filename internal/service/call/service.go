// Package call owns the call-session state machine:
//
//	pending --accept--> active --end--> ended
//	pending --reject--> rejected
//	pending --end-----> ended
//
// rejected and ended are terminal. Only the recipient may accept or reject.
package call

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicelink-backend/internal/domain"
	"voicelink-backend/internal/room"
	apperrors "voicelink-backend/pkg/errors"
	"voicelink-backend/pkg/logger"
	"voicelink-backend/pkg/metrics"
	"voicelink-backend/pkg/sanitize"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Service handles call session business logic
type Service struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
	nextSeq  uint64
	live     int

	rooms       room.Provider
	roomTimeout time.Duration
	metrics     *metrics.Metrics
	now         func() time.Time

	clockMu   sync.Mutex
	lastStamp time.Time
}

// session serializes transitions of a single call
type session struct {
	mu   sync.Mutex
	seq  uint64
	call domain.Call
}

// NewService creates a new call service
func NewService(rooms room.Provider, roomTimeout time.Duration, m *metrics.Metrics) *Service {
	if roomTimeout <= 0 {
		roomTimeout = 10 * time.Second
	}
	return &Service{
		sessions:    make(map[uuid.UUID]*session),
		rooms:       rooms,
		roomTimeout: roomTimeout,
		metrics:     m,
		now:         time.Now,
	}
}

// CreateCallInput contains call request data
type CreateCallInput struct {
	Caller    string
	Recipient string
	Kind      domain.CallKind
}

// Create opens a pending call session. A room is requested from the provider
// before the session becomes visible; if that fails the session gets a
// placeholder room instead of failing the request.
func (s *Service) Create(ctx context.Context, input *CreateCallInput) (*domain.Call, error) {
	caller := sanitize.UserID(input.Caller)
	recipient := sanitize.UserID(input.Recipient)
	if caller == "" {
		return nil, apperrors.MissingFieldError("caller")
	}
	if recipient == "" {
		return nil, apperrors.MissingFieldError("contact")
	}
	if !input.Kind.Valid() {
		return nil, apperrors.ValidationError(fmt.Sprintf("Invalid call type %q: must be voice or video", input.Kind))
	}

	callID := uuid.New()
	roomURL, degraded := s.acquireRoom(ctx, callID, input.Kind)

	sess := &session{
		call: domain.Call{
			CallID:       callID,
			Caller:       caller,
			Recipient:    recipient,
			Kind:         input.Kind,
			Status:       domain.CallStatusPending,
			RoomURL:      roomURL,
			DegradedRoom: degraded,
			CreatedAt:    s.stamp(),
		},
	}

	s.mu.Lock()
	s.nextSeq++
	sess.seq = s.nextSeq
	s.sessions[callID] = sess
	s.live++
	live := s.live
	s.mu.Unlock()

	s.metrics.RecordCall(string(input.Kind), string(domain.CallStatusPending))
	s.metrics.SetActiveCalls(live)

	logger.FromContext(ctx).Info("Call requested",
		zap.String("call_id", callID.String()),
		zap.String("caller", caller),
		zap.String("recipient", recipient),
		zap.String("type", string(input.Kind)),
		zap.Bool("degraded_room", degraded))

	out := sess.call
	return &out, nil
}

// Accept moves a pending call to active. Only the recipient may accept.
func (s *Service) Accept(ctx context.Context, callID uuid.UUID, userID string) (*domain.Call, error) {
	userID = sanitize.UserID(userID)
	call, err := s.transition(callID, func(c *domain.Call) error {
		if c.Recipient != userID {
			return apperrors.UnauthorizedError("Only the call recipient can accept this call")
		}
		if c.Status != domain.CallStatusPending {
			return apperrors.InvalidStateError("Call is not pending")
		}
		acceptedAt := s.stamp()
		c.Status = domain.CallStatusActive
		c.AcceptedAt = &acceptedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCall(string(call.Kind), string(call.Status))
	logger.FromContext(ctx).Info("Call accepted",
		zap.String("call_id", callID.String()),
		zap.String("user_id", userID))
	return call, nil
}

// Reject moves a pending call to rejected and releases its room.
// Only the recipient may reject; an active call must be ended instead.
func (s *Service) Reject(ctx context.Context, callID uuid.UUID, userID string) (*domain.Call, error) {
	userID = sanitize.UserID(userID)
	call, err := s.transition(callID, func(c *domain.Call) error {
		if c.Recipient != userID {
			return apperrors.UnauthorizedError("Only the call recipient can reject this call")
		}
		if c.Status != domain.CallStatusPending {
			return apperrors.InvalidStateError("Call is not pending")
		}
		endedAt := s.stamp()
		c.Status = domain.CallStatusRejected
		c.EndedAt = &endedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.finish(ctx, call)
	logger.FromContext(ctx).Info("Call rejected",
		zap.String("call_id", callID.String()),
		zap.String("user_id", userID))
	return call, nil
}

// End terminates a pending or active call and releases its room
func (s *Service) End(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	call, err := s.transition(callID, func(c *domain.Call) error {
		if c.Status.Terminal() {
			return apperrors.InvalidStateError(fmt.Sprintf("Call already %s", c.Status))
		}
		endedAt := s.stamp()
		c.Status = domain.CallStatusEnded
		c.EndedAt = &endedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	if d := call.Duration(); d > 0 {
		s.metrics.RecordCallDuration(string(call.Kind), d)
	}
	s.finish(ctx, call)
	logger.FromContext(ctx).Info("Call ended",
		zap.String("call_id", callID.String()),
		zap.Duration("duration", call.Duration()))
	return call, nil
}

// Get returns a snapshot of a call
func (s *Service) Get(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	sess, ok := s.lookup(callID)
	if !ok {
		return nil, apperrors.CallNotFoundError()
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := sess.call
	return &out, nil
}

// ListForUser returns calls the user placed or received, newest first
func (s *Service) ListForUser(ctx context.Context, userID string, limit int) ([]*domain.Call, error) {
	userID = sanitize.UserID(userID)
	if userID == "" {
		return nil, apperrors.MissingFieldError("user")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	s.mu.RLock()
	matched := make([]*session, 0)
	for _, sess := range s.sessions {
		// Caller and Recipient never change, so reading them without sess.mu is safe.
		if sess.call.Caller == userID || sess.call.Recipient == userID {
			matched = append(matched, sess)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })
	if len(matched) > limit {
		matched = matched[:limit]
	}

	calls := make([]*domain.Call, 0, len(matched))
	for _, sess := range matched {
		sess.mu.Lock()
		out := sess.call
		sess.mu.Unlock()
		calls = append(calls, &out)
	}
	return calls, nil
}

// LiveCount returns the number of pending or active calls
func (s *Service) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}

// stamp returns the current UTC time, clamped so it never runs behind an
// earlier stamp when the wall clock steps backwards
func (s *Service) stamp() time.Time {
	t := s.now().UTC()
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	if t.Before(s.lastStamp) {
		t = s.lastStamp
	}
	s.lastStamp = t
	return t
}

func (s *Service) lookup(callID uuid.UUID) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[callID]
	return sess, ok
}

// transition applies fn under the session lock. fn must either mutate the
// call and return nil or leave it untouched and return an error.
func (s *Service) transition(callID uuid.UUID, fn func(c *domain.Call) error) (*domain.Call, error) {
	sess, ok := s.lookup(callID)
	if !ok {
		return nil, apperrors.CallNotFoundError()
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := fn(&sess.call); err != nil {
		return nil, err
	}
	out := sess.call
	return &out, nil
}

// finish updates bookkeeping for a call that just reached a terminal state
// and releases its room. Must be called without holding any session lock.
func (s *Service) finish(ctx context.Context, call *domain.Call) {
	s.mu.Lock()
	s.live--
	live := s.live
	s.mu.Unlock()

	s.metrics.RecordCall(string(call.Kind), string(call.Status))
	s.metrics.SetActiveCalls(live)
	s.releaseRoom(ctx, call)
}

func (s *Service) acquireRoom(ctx context.Context, callID uuid.UUID, kind domain.CallKind) (string, bool) {
	placeholder := room.PlaceholderURL(callID.String())
	if s.rooms == nil {
		return placeholder, true
	}

	roomCtx, cancel := context.WithTimeout(ctx, s.roomTimeout)
	defer cancel()

	roomURL, err := s.rooms.CreateRoom(roomCtx, callID.String(), kind)
	if err != nil || roomURL == "" {
		s.metrics.RecordCallFailure(string(kind), "room_unavailable")
		logger.FromContext(ctx).Warn("Using placeholder room",
			zap.String("call_id", callID.String()),
			zap.Error(err))
		return placeholder, true
	}
	return roomURL, false
}

func (s *Service) releaseRoom(ctx context.Context, call *domain.Call) {
	if s.rooms == nil || call.DegradedRoom || room.IsPlaceholder(call.RoomURL) {
		return
	}

	// The room outlives the request that ended the call.
	roomCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.roomTimeout)
	defer cancel()

	if err := s.rooms.DeleteRoom(roomCtx, call.RoomURL); err != nil {
		s.metrics.RecordCallFailure(string(call.Kind), "room_release_failed")
		logger.FromContext(ctx).Warn("Failed to release room",
			zap.String("call_id", call.CallID.String()),
			zap.String("room_url", call.RoomURL),
			zap.Error(err))
	}
}
