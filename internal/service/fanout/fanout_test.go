package fanout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"voicelink-backend/internal/presence"
)

// MockConn is a mock implementation of presence.Conn
type MockConn struct {
	mock.Mock
}

func (m *MockConn) Send(event string, payload interface{}) bool {
	args := m.Called(event, payload)
	return args.Bool(0)
}

func TestPush_Delivered(t *testing.T) {
	registry := presence.NewRegistry()
	conn := new(MockConn)
	registry.Register("bob", conn)
	f := New(registry, nil)
	payload := IncomingCallPayload{CallID: "c1", From: "alice", Type: "voice"}

	// Setup expectations
	conn.On("Send", EventIncomingCall, payload).Return(true).Once()

	// Execute
	ok := f.Push("bob", EventIncomingCall, payload)

	// Assert
	assert.True(t, ok)
	conn.AssertExpectations(t)
}

func TestPush_OfflineUserDropped(t *testing.T) {
	registry := presence.NewRegistry()
	f := New(registry, nil)

	assert.False(t, f.Push("nobody", EventNewMessage, NewMessagePayload{From: "alice", Message: "hi"}))
}

func TestPush_FullConnectionDropped(t *testing.T) {
	registry := presence.NewRegistry()
	conn := new(MockConn)
	registry.Register("bob", conn)
	f := New(registry, nil)

	conn.On("Send", EventCallRejected, mock.Anything).Return(false).Once()

	assert.False(t, f.Push("bob", EventCallRejected, CallClosedPayload{CallID: "c1"}))
	conn.AssertNumberOfCalls(t, "Send", 1)
}

func TestPush_FollowsLatestRegistration(t *testing.T) {
	registry := presence.NewRegistry()
	oldConn, newConn := new(MockConn), new(MockConn)
	registry.Register("bob", oldConn)
	registry.Register("bob", newConn)
	f := New(registry, nil)

	newConn.On("Send", EventCallEnded, mock.Anything).Return(true)

	assert.True(t, f.Push("bob", EventCallEnded, CallClosedPayload{CallID: "c1"}))
	oldConn.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
