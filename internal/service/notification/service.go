package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicelink-backend/internal/domain"
	apperrors "voicelink-backend/pkg/errors"
	"voicelink-backend/pkg/logger"
	"voicelink-backend/pkg/metrics"
	"voicelink-backend/pkg/sanitize"
)

// NotificationStore is the per-user notification store
type NotificationStore interface {
	Create(input *domain.NotificationCreate) *domain.Notification
	List(userID string, unreadOnly bool) []*domain.Notification
	UnreadCount(userID string) int
	MarkRead(id uuid.UUID) bool
	MarkAllRead(userID string) int
	Delete(id uuid.UUID) bool
}

// Service handles notification business logic
type Service struct {
	notifications NotificationStore
	metrics       *metrics.Metrics
}

// NewService creates a new notification service
func NewService(notifications NotificationStore, m *metrics.Metrics) *Service {
	return &Service{
		notifications: notifications,
		metrics:       m,
	}
}

// CreateNotificationInput represents input for creating a notification
type CreateNotificationInput struct {
	UserID string
	Type   string
	Title  string
	Body   string
	Data   map[string]interface{}
}

// Create creates a new notification. An empty type means "system".
func (s *Service) Create(ctx context.Context, input *CreateNotificationInput) (*domain.Notification, error) {
	if input == nil {
		return nil, apperrors.ValidationError("notification is required")
	}
	userID := sanitize.UserID(input.UserID)
	if userID == "" {
		return nil, apperrors.MissingFieldError("user")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.MissingFieldError("title")
	}

	notifType := domain.NotificationTypeSystem
	if input.Type != "" {
		notifType = domain.NotificationType(input.Type)
		if !notifType.Valid() {
			return nil, apperrors.ValidationError(fmt.Sprintf("unknown notification type %q", input.Type))
		}
	}

	notification := s.notifications.Create(&domain.NotificationCreate{
		UserID: userID,
		Type:   notifType,
		Title:  input.Title,
		Body:   input.Body,
		Data:   input.Data,
	})
	s.metrics.RecordNotification(string(notifType))

	logger.FromContext(ctx).Debug("Notification created",
		zap.String("notification_id", notification.NotificationID.String()),
		zap.String("user_id", userID),
		zap.String("type", string(notifType)))

	return notification, nil
}

// GetNotifications retrieves notifications for a user, newest first
func (s *Service) GetNotifications(ctx context.Context, userID string, unreadOnly bool) (*domain.NotificationListResponse, error) {
	userID = sanitize.UserID(userID)
	if userID == "" {
		return nil, apperrors.MissingFieldError("user")
	}

	notifications := s.notifications.List(userID, unreadOnly)
	return &domain.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   s.notifications.UnreadCount(userID),
		TotalCount:    len(notifications),
	}, nil
}

// MarkAsRead marks a notification as read
func (s *Service) MarkAsRead(ctx context.Context, notificationID uuid.UUID) error {
	if !s.notifications.MarkRead(notificationID) {
		return apperrors.NotificationNotFoundError()
	}
	return nil
}

// MarkAllAsRead marks all of a user's notifications as read and returns how
// many changed
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	userID = sanitize.UserID(userID)
	if userID == "" {
		return 0, apperrors.MissingFieldError("user")
	}
	return s.notifications.MarkAllRead(userID), nil
}

// DeleteNotification deletes a notification
func (s *Service) DeleteNotification(ctx context.Context, notificationID uuid.UUID) error {
	if !s.notifications.Delete(notificationID) {
		return apperrors.NotificationNotFoundError()
	}
	return nil
}
