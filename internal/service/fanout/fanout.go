// Package fanout pushes realtime events to users with a live connection.
// Delivery is best-effort: offline users simply miss the event.
package fanout

import (
	"go.uber.org/zap"

	"voicelink-backend/internal/presence"
	"voicelink-backend/pkg/logger"
	"voicelink-backend/pkg/metrics"
)

// Event names pushed to clients
const (
	EventIncomingCall = "incoming_call"
	EventCallAccepted = "call_accepted"
	EventCallRejected = "call_rejected"
	EventCallEnded    = "call_ended"
	EventNewMessage   = "new_message"
)

// IncomingCallPayload is sent to the recipient of a new call
type IncomingCallPayload struct {
	CallID string `json:"call_id"`
	From   string `json:"from"`
	Type   string `json:"type"`
}

// CallAcceptedPayload is sent to the caller once the recipient accepts
type CallAcceptedPayload struct {
	CallID  string `json:"call_id"`
	RoomURL string `json:"room_url"`
}

// CallClosedPayload is sent when a call is rejected or ended
type CallClosedPayload struct {
	CallID string `json:"call_id"`
}

// NewMessagePayload is sent to the recipient of a text message
type NewMessagePayload struct {
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	Message   string `json:"message"`
}

// Locator finds a user's live connection
type Locator interface {
	Lookup(userID string) (presence.Conn, bool)
}

// Fanout delivers events through the presence registry
type Fanout struct {
	locator Locator
	metrics *metrics.Metrics
}

// New creates a Fanout
func New(locator Locator, m *metrics.Metrics) *Fanout {
	return &Fanout{locator: locator, metrics: m}
}

// Push hands event to userID's connection without blocking. It reports
// whether the event was queued; false means it was dropped. There is no
// retry and no fallback delivery.
func (f *Fanout) Push(userID, event string, payload interface{}) bool {
	conn, ok := f.locator.Lookup(userID)
	if !ok {
		f.metrics.RecordEventPush(event, "dropped")
		logger.Debug("Event dropped: user not connected",
			zap.String("user_id", userID),
			zap.String("event", event))
		return false
	}

	if !conn.Send(event, payload) {
		f.metrics.RecordEventPush(event, "dropped")
		logger.Warn("Event dropped: connection not accepting",
			zap.String("user_id", userID),
			zap.String("event", event))
		return false
	}

	f.metrics.RecordEventPush(event, "delivered")
	return true
}
