package notification

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicelink-backend/internal/domain"
	"voicelink-backend/internal/repository/memory"
	apperrors "voicelink-backend/pkg/errors"
)

func newService() *Service {
	return NewService(memory.NewNotificationRepository(), nil)
}

func TestCreate_DefaultsToSystem(t *testing.T) {
	service := newService()

	n, err := service.Create(context.Background(), &CreateNotificationInput{
		UserID: "ana",
		Title:  "Welcome",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.NotificationTypeSystem, n.Type)
	assert.False(t, n.IsRead)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input *CreateNotificationInput
		code  apperrors.ErrorCode
	}{
		{"nil input", nil, apperrors.ErrCodeValidation},
		{"missing user", &CreateNotificationInput{Title: "x"}, apperrors.ErrCodeMissingField},
		{"missing title", &CreateNotificationInput{UserID: "ana"}, apperrors.ErrCodeMissingField},
		{"unknown type", &CreateNotificationInput{UserID: "ana", Title: "x", Type: "friend_request"}, apperrors.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newService().Create(context.Background(), tt.input)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestGetNotifications(t *testing.T) {
	service := newService()
	ctx := context.Background()

	first, err := service.Create(ctx, &CreateNotificationInput{UserID: "ana", Type: "call", Title: "Missed call"})
	require.NoError(t, err)
	_, err = service.Create(ctx, &CreateNotificationInput{UserID: "ana", Type: "message", Title: "New message"})
	require.NoError(t, err)
	_, err = service.Create(ctx, &CreateNotificationInput{UserID: "ben", Title: "Other user"})
	require.NoError(t, err)

	require.NoError(t, service.MarkAsRead(ctx, first.NotificationID))

	all, err := service.GetNotifications(ctx, "ana", false)
	require.NoError(t, err)
	assert.Equal(t, 2, all.TotalCount)
	assert.Equal(t, 1, all.UnreadCount)
	assert.Equal(t, "New message", all.Notifications[0].Title)

	unread, err := service.GetNotifications(ctx, "ana", true)
	require.NoError(t, err)
	assert.Len(t, unread.Notifications, 1)
}

func TestMarkAllAsRead(t *testing.T) {
	service := newService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := service.Create(ctx, &CreateNotificationInput{UserID: "ana", Title: "n"})
		require.NoError(t, err)
	}

	count, err := service.MarkAllAsRead(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = service.MarkAllAsRead(ctx, "ana")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNotFound(t *testing.T) {
	service := newService()
	ctx := context.Background()

	err := service.MarkAsRead(ctx, uuid.New())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotificationNotFound))

	err = service.DeleteNotification(ctx, uuid.New())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotificationNotFound))
}

func TestDeleteNotification(t *testing.T) {
	service := newService()
	ctx := context.Background()

	n, err := service.Create(ctx, &CreateNotificationInput{UserID: "ana", Title: "bye"})
	require.NoError(t, err)

	require.NoError(t, service.DeleteNotification(ctx, n.NotificationID))

	list, err := service.GetNotifications(ctx, "ana", false)
	require.NoError(t, err)
	assert.Empty(t, list.Notifications)
}
