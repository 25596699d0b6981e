// Package memory holds the process-local stores backing messages and
// notifications. Contents do not survive a restart.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"voicelink-backend/internal/domain"
)

// MessageRepository is an append-only log of text messages.
// Append order equals SentAt order; SentAt is strictly increasing.
type MessageRepository struct {
	mu       sync.RWMutex
	messages []*domain.Message
	byID     map[uuid.UUID]*domain.Message
	lastSent time.Time
	now      func() time.Time
}

// NewMessageRepository creates an empty message log
func NewMessageRepository() *MessageRepository {
	return &MessageRepository{
		byID: make(map[uuid.UUID]*domain.Message),
		now:  time.Now,
	}
}

// Append stores a new message in sent state and returns a copy of it
func (r *MessageRepository) Append(sender, recipient, body string) *domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	sentAt := r.now().UTC()
	if !sentAt.After(r.lastSent) {
		sentAt = r.lastSent.Add(time.Nanosecond)
	}
	r.lastSent = sentAt

	msg := &domain.Message{
		MessageID: uuid.New(),
		Sender:    sender,
		Recipient: recipient,
		Body:      body,
		SentAt:    sentAt,
		Status:    domain.MessageStatusSent,
	}
	r.messages = append(r.messages, msg)
	r.byID[msg.MessageID] = msg

	out := *msg
	return &out
}

// History returns the conversation between a and b in either direction,
// oldest first, keeping only the most recent limit messages.
func (r *MessageRepository) History(a, b string, limit int) []*domain.Message {
	if limit <= 0 {
		return []*domain.Message{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Walk backwards so we stop once limit is reached.
	picked := make([]*domain.Message, 0, limit)
	for i := len(r.messages) - 1; i >= 0 && len(picked) < limit; i-- {
		m := r.messages[i]
		if (m.Sender == a && m.Recipient == b) || (m.Sender == b && m.Recipient == a) {
			out := *m
			picked = append(picked, &out)
		}
	}

	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}

// Unread returns messages addressed to user that are still in sent state, oldest first
func (r *MessageRepository) Unread(user string) []*domain.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Message, 0)
	for _, m := range r.messages {
		if m.Recipient == user && m.Status == domain.MessageStatusSent {
			out := *m
			result = append(result, &out)
		}
	}
	return result
}

// MarkRead moves a message to read state. It reports false for unknown ids.
func (r *MessageRepository) MarkRead(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byID[id]
	if !ok {
		return false
	}
	m.Status = domain.MessageStatusRead
	return true
}

// Count returns the number of stored messages
func (r *MessageRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}
