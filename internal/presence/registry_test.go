package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type fakeConn struct {
	name string
}

func (c *fakeConn) Send(event string, payload interface{}) bool { return true }

// MockMirror is a mock implementation of Mirror
type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) SetUserOnline(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockMirror) SetUserOffline(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func TestRegisterLookup(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{name: "c1"}

	r.Register("alice", conn)

	got, ok := r.Lookup("alice")
	assert.True(t, ok)
	assert.Same(t, conn, got)

	user, ok := r.ResolveByHandle(conn)
	assert.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, 1, r.Count())
}

func TestRegister_LastWriteWins(t *testing.T) {
	r := NewRegistry()
	old := &fakeConn{name: "old"}
	newer := &fakeConn{name: "new"}

	r.Register("alice", old)
	r.Register("alice", newer)

	got, _ := r.Lookup("alice")
	assert.Same(t, newer, got)

	_, ok := r.ResolveByHandle(old)
	assert.False(t, ok, "stale handle must not resolve")

	// Dropping the stale connection must not evict the new one.
	_, removed := r.UnregisterHandle(old)
	assert.False(t, removed)
	_, ok = r.Lookup("alice")
	assert.True(t, ok)
}

func TestRegister_SameHandleNewUser(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}

	r.Register("alice", conn)
	r.Register("bob", conn)

	_, ok := r.Lookup("alice")
	assert.False(t, ok)
	user, _ := r.ResolveByHandle(conn)
	assert.Equal(t, "bob", user)
	assert.Equal(t, 1, r.Count())
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}
	r.Register("alice", conn)

	r.Unregister("alice")
	r.Unregister("alice")
	r.Unregister("never-registered")

	_, ok := r.Lookup("alice")
	assert.False(t, ok)
	_, ok = r.ResolveByHandle(conn)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

func TestUnregisterIf(t *testing.T) {
	r := NewRegistry()
	stale := &fakeConn{name: "stale"}
	current := &fakeConn{name: "current"}

	r.Register("alice", stale)
	r.Register("alice", current)

	assert.False(t, r.UnregisterIf("alice", stale))
	got, ok := r.Lookup("alice")
	assert.True(t, ok)
	assert.Same(t, current, got)

	assert.False(t, r.UnregisterIf("bob", current))
	assert.True(t, r.UnregisterIf("alice", current))
	_, ok = r.Lookup("alice")
	assert.False(t, ok)
	_, ok = r.ResolveByHandle(current)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

func TestUnregisterIf_StaleConnectionNeverEvictsNewer(t *testing.T) {
	r := NewRegistry()
	stale := &fakeConn{name: "stale"}
	r.Register("alice", stale)

	var last *fakeConn
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			last = &fakeConn{name: fmt.Sprint(i)}
			r.Register("alice", last)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			r.UnregisterIf("alice", stale)
		}
	}()
	wg.Wait()

	got, ok := r.Lookup("alice")
	assert.True(t, ok)
	assert.Same(t, last, got)
}

func TestUnregisterHandle(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}
	r.Register("alice", conn)

	user, ok := r.UnregisterHandle(conn)

	assert.True(t, ok)
	assert.Equal(t, "alice", user)
	_, ok = r.Lookup("alice")
	assert.False(t, ok)
}

func TestMirror_ReceivesChanges(t *testing.T) {
	mirror := new(MockMirror)
	r := NewRegistry(WithMirror(mirror))
	done := make(chan string, 2)

	// Setup expectations
	mirror.On("SetUserOnline", mock.Anything, "alice").Return(nil).
		Run(func(mock.Arguments) { done <- "online" }).Once()
	mirror.On("SetUserOffline", mock.Anything, "alice").Return(errors.New("redis down")).
		Run(func(mock.Arguments) { done <- "offline" }).Once()

	// Execute
	r.Register("alice", &fakeConn{})
	assert.Equal(t, "online", waitFor(t, done))
	r.Unregister("alice")

	// Assert
	assert.Equal(t, "offline", waitFor(t, done))
	mirror.AssertExpectations(t)
	_, ok := r.Lookup("alice")
	assert.False(t, ok, "mirror failure never affects the registry")
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for mirror call")
		return ""
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i%10)
			conn := &fakeConn{name: fmt.Sprint(i)}
			r.Register(user, conn)
			r.Lookup(user)
			if i%3 == 0 {
				r.UnregisterHandle(conn)
			}
		}(i)
	}
	wg.Wait()

	for _, user := range r.OnlineUsers() {
		conn, ok := r.Lookup(user)
		assert.True(t, ok)
		resolved, ok := r.ResolveByHandle(conn)
		assert.True(t, ok)
		assert.Equal(t, user, resolved)
	}
}

func TestKeepMirrorFresh_ReannouncesRegisteredUsers(t *testing.T) {
	mirror := new(MockMirror)
	r := NewRegistry(WithMirror(mirror))
	refreshed := make(chan string, 8)

	mirror.On("SetUserOnline", mock.Anything, "alice").Return(nil).
		Run(func(mock.Arguments) {
			select {
			case refreshed <- "online":
			default:
			}
		})

	r.Register("alice", &fakeConn{})
	assert.Equal(t, "online", waitFor(t, refreshed))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		r.KeepMirrorFresh(ctx, 10*time.Millisecond)
		close(stopped)
	}()

	assert.Equal(t, "online", waitFor(t, refreshed))
	cancel()
	<-stopped
}

func TestKeepMirrorFresh_NoMirrorReturns(t *testing.T) {
	r := NewRegistry()
	// Returns immediately without a mirror
	r.KeepMirrorFresh(context.Background(), time.Millisecond)
}
