package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallKind is the media kind requested for a call
type CallKind string

const (
	CallKindVoice CallKind = "voice"
	CallKindVideo CallKind = "video"
)

// Valid reports whether k is a supported call kind
func (k CallKind) Valid() bool {
	return k == CallKindVoice || k == CallKindVideo
}

// CallStatus is the lifecycle state of a call session
type CallStatus string

const (
	CallStatusPending  CallStatus = "pending"
	CallStatusActive   CallStatus = "active"
	CallStatusRejected CallStatus = "rejected"
	CallStatusEnded    CallStatus = "ended"
)

// Terminal reports whether no further transition is allowed from s
func (s CallStatus) Terminal() bool {
	return s == CallStatusRejected || s == CallStatusEnded
}

// Call represents a voice/video call session between two users.
// Caller, Recipient, Kind, RoomURL and CreatedAt never change after creation.
type Call struct {
	CallID       uuid.UUID  `json:"call_id"`
	Caller       string     `json:"caller"`
	Recipient    string     `json:"recipient"`
	Kind         CallKind   `json:"type"`
	Status       CallStatus `json:"status"`
	RoomURL      string     `json:"room_url"`
	DegradedRoom bool       `json:"degraded_room,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// Duration returns how long the call was active, zero if it never connected
func (c *Call) Duration() time.Duration {
	if c.AcceptedAt == nil || c.EndedAt == nil {
		return 0
	}
	return c.EndedAt.Sub(*c.AcceptedAt)
}
