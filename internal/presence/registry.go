// Package presence tracks which users currently hold a live realtime
// connection. The in-process Registry is the only source of truth for
// reachability.
package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"voicelink-backend/pkg/logger"
	"voicelink-backend/pkg/metrics"
)

// Conn is a live connection events can be pushed to.
// Send must not block; it reports false when the event could not be queued.
type Conn interface {
	Send(event string, payload interface{}) bool
}

// Mirror receives best-effort copies of presence changes
type Mirror interface {
	SetUserOnline(ctx context.Context, userID string) error
	SetUserOffline(ctx context.Context, userID string) error
}

// Registry maps user ids to live connections, one connection per user
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]Conn
	byConn map[Conn]string

	mirror        Mirror
	mirrorTimeout time.Duration
	metrics       *metrics.Metrics
}

// Option configures a Registry
type Option func(*Registry)

// WithMirror copies register/unregister to m in the background
func WithMirror(m Mirror) Option {
	return func(r *Registry) { r.mirror = m }
}

// WithMetrics reports registry size to m
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byUser:        make(map[string]Conn),
		byConn:        make(map[Conn]string),
		mirrorTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds userID to conn. The latest registration wins; a previous
// connection for the same user stays open but no longer resolves to it.
func (r *Registry) Register(userID string, conn Conn) {
	r.mu.Lock()
	if prev, ok := r.byUser[userID]; ok && prev != conn {
		delete(r.byConn, prev)
	}
	if prevUser, ok := r.byConn[conn]; ok && prevUser != userID {
		delete(r.byUser, prevUser)
	}
	r.byUser[userID] = conn
	r.byConn[conn] = userID
	count := len(r.byUser)
	r.mu.Unlock()

	r.metrics.SetRegisteredUsers(count)
	r.mirrorChange(userID, true)
	logger.Info("User registered", zap.String("user_id", userID), zap.Int("registered", count))
}

// Unregister removes userID. It is a no-op when the user is not registered.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	conn, ok := r.byUser[userID]
	if ok {
		delete(r.byUser, userID)
		delete(r.byConn, conn)
	}
	count := len(r.byUser)
	r.mu.Unlock()

	if !ok {
		return
	}
	r.metrics.SetRegisteredUsers(count)
	r.mirrorChange(userID, false)
	logger.Info("User unregistered", zap.String("user_id", userID), zap.Int("registered", count))
}

// UnregisterIf removes userID only while it is still bound to conn, so a
// stale connection cannot release a newer registration. It reports whether
// the binding was removed.
func (r *Registry) UnregisterIf(userID string, conn Conn) bool {
	r.mu.Lock()
	bound, ok := r.byUser[userID]
	ok = ok && bound == conn
	if ok {
		delete(r.byUser, userID)
		delete(r.byConn, conn)
	}
	count := len(r.byUser)
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.metrics.SetRegisteredUsers(count)
	r.mirrorChange(userID, false)
	logger.Info("User unregistered", zap.String("user_id", userID), zap.Int("registered", count))
	return true
}

// UnregisterHandle removes whatever user conn is currently bound to.
// Used when a connection drops without an explicit unregister.
func (r *Registry) UnregisterHandle(conn Conn) (string, bool) {
	r.mu.Lock()
	userID, ok := r.byConn[conn]
	if ok {
		delete(r.byConn, conn)
		delete(r.byUser, userID)
	}
	count := len(r.byUser)
	r.mu.Unlock()

	if !ok {
		return "", false
	}
	r.metrics.SetRegisteredUsers(count)
	r.mirrorChange(userID, false)
	return userID, true
}

// Lookup returns the live connection for userID
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byUser[userID]
	return conn, ok
}

// ResolveByHandle returns the user conn is bound to
func (r *Registry) ResolveByHandle(conn Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.byConn[conn]
	return userID, ok
}

// Count returns the number of registered users
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// OnlineUsers returns the registered user ids in no particular order
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		users = append(users, userID)
	}
	return users
}

// KeepMirrorFresh re-announces every registered user to the mirror each
// interval, so mirrored entries outlive their TTL and recover after a mirror
// outage. It blocks until ctx is done.
func (r *Registry) KeepMirrorFresh(ctx context.Context, interval time.Duration) {
	if r.mirror == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, userID := range r.OnlineUsers() {
				refreshCtx, cancel := context.WithTimeout(ctx, r.mirrorTimeout)
				err := r.mirror.SetUserOnline(refreshCtx, userID)
				cancel()
				if err != nil {
					logger.Debug("Failed to refresh mirrored presence",
						zap.String("user_id", userID),
						zap.Error(err))
				}
			}
		}
	}
}

func (r *Registry) mirrorChange(userID string, online bool) {
	if r.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.mirrorTimeout)
		defer cancel()

		var err error
		if online {
			err = r.mirror.SetUserOnline(ctx, userID)
		} else {
			err = r.mirror.SetUserOffline(ctx, userID)
		}
		if err != nil {
			logger.Warn("Failed to mirror presence",
				zap.String("user_id", userID),
				zap.Bool("online", online),
				zap.Error(err))
		}
	}()
}
