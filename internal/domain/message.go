package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageStatus tracks whether the recipient has read a message
type MessageStatus string

const (
	MessageStatusSent MessageStatus = "sent"
	MessageStatusRead MessageStatus = "read"
)

// Message represents a text message between two users.
// Status only ever moves from sent to read.
type Message struct {
	MessageID uuid.UUID     `json:"message_id"`
	Sender    string        `json:"from"`
	Recipient string        `json:"to"`
	Body      string        `json:"message"`
	SentAt    time.Time     `json:"timestamp"`
	Status    MessageStatus `json:"status"`
}
