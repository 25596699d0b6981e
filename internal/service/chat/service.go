package chat

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicelink-backend/internal/domain"
	apperrors "voicelink-backend/pkg/errors"
	"voicelink-backend/pkg/logger"
	"voicelink-backend/pkg/metrics"
	"voicelink-backend/pkg/sanitize"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// MessageStore is the message log the service writes to
type MessageStore interface {
	Append(sender, recipient, body string) *domain.Message
	History(a, b string, limit int) []*domain.Message
	Unread(user string) []*domain.Message
	MarkRead(id uuid.UUID) bool
}

// Service handles text message business logic
type Service struct {
	messages MessageStore
	metrics  *metrics.Metrics
}

// NewService creates a new chat service
func NewService(messages MessageStore, m *metrics.Metrics) *Service {
	return &Service{
		messages: messages,
		metrics:  m,
	}
}

// SendMessageInput contains message data
type SendMessageInput struct {
	Sender    string
	Recipient string
	Body      string
}

// SendMessage stores a message. Delivery to the recipient's connection is
// the caller's concern.
func (s *Service) SendMessage(ctx context.Context, input *SendMessageInput) (*domain.Message, error) {
	if input == nil {
		return nil, apperrors.ValidationError("message is required")
	}
	sender := sanitize.UserID(input.Sender)
	recipient := sanitize.UserID(input.Recipient)
	if sender == "" {
		return nil, apperrors.MissingFieldError("sender")
	}
	if recipient == "" {
		return nil, apperrors.MissingFieldError("contact")
	}
	body := sanitize.MessageBody(input.Body)
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.MissingFieldError("message")
	}

	msg := s.messages.Append(sender, recipient, body)
	s.metrics.RecordMessage()

	logger.FromContext(ctx).Debug("Message stored",
		zap.String("message_id", msg.MessageID.String()),
		zap.String("from", sender),
		zap.String("to", recipient))

	return msg, nil
}

// GetHistory returns the conversation between user and contact, oldest
// first, truncated to the most recent limit messages. A limit of zero or
// less yields no messages.
func (s *Service) GetHistory(ctx context.Context, user, contact string, limit int) ([]*domain.Message, error) {
	user = sanitize.UserID(user)
	contact = sanitize.UserID(contact)
	if user == "" {
		return nil, apperrors.MissingFieldError("user")
	}
	if contact == "" {
		return nil, apperrors.MissingFieldError("contact")
	}
	if limit > MaxHistoryLimit {
		return nil, apperrors.ValidationError("limit must be between 1 and 200")
	}

	return s.messages.History(user, contact, limit), nil
}

// GetUnread returns messages addressed to user that have not been read
func (s *Service) GetUnread(ctx context.Context, user string) ([]*domain.Message, error) {
	user = sanitize.UserID(user)
	if user == "" {
		return nil, apperrors.MissingFieldError("user")
	}
	return s.messages.Unread(user), nil
}

// MarkRead marks a message as read
func (s *Service) MarkRead(ctx context.Context, messageID uuid.UUID) error {
	if !s.messages.MarkRead(messageID) {
		return apperrors.MessageNotFoundError()
	}
	return nil
}
