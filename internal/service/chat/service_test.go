package chat

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"voicelink-backend/internal/domain"
	"voicelink-backend/internal/repository/memory"
	apperrors "voicelink-backend/pkg/errors"
)

// MockMessageStore is a mock implementation of MessageStore
type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) Append(sender, recipient, body string) *domain.Message {
	args := m.Called(sender, recipient, body)
	return args.Get(0).(*domain.Message)
}

func (m *MockMessageStore) History(a, b string, limit int) []*domain.Message {
	args := m.Called(a, b, limit)
	return args.Get(0).([]*domain.Message)
}

func (m *MockMessageStore) Unread(user string) []*domain.Message {
	args := m.Called(user)
	return args.Get(0).([]*domain.Message)
}

func (m *MockMessageStore) MarkRead(id uuid.UUID) bool {
	args := m.Called(id)
	return args.Bool(0)
}

// TestSendMessage tests the SendMessage method
func TestSendMessage(t *testing.T) {
	store := new(MockMessageStore)
	service := NewService(store, nil)

	stored := &domain.Message{
		MessageID: uuid.New(),
		Sender:    "ana",
		Recipient: "ben",
		Body:      "hello",
		Status:    domain.MessageStatusSent,
	}
	store.On("Append", "ana", "ben", "hello").Return(stored)

	msg, err := service.SendMessage(context.Background(), &SendMessageInput{
		Sender:    " ana ",
		Recipient: "ben",
		Body:      "hello",
	})

	require.NoError(t, err)
	assert.Equal(t, stored.MessageID, msg.MessageID)
	store.AssertExpectations(t)
}

func TestSendMessage_NormalizesBody(t *testing.T) {
	service := NewService(memory.NewMessageRepository(), nil)

	msg, err := service.SendMessage(context.Background(), &SendMessageInput{
		Sender:    "ana\x00",
		Recipient: "ben",
		Body:      "first line\r\nsecond\x07 line",
	})

	require.NoError(t, err)
	assert.Equal(t, "ana", msg.Sender)
	assert.Equal(t, "first line\nsecond line", msg.Body)
}

func TestSendMessage_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input *SendMessageInput
	}{
		{"nil input", nil},
		{"missing sender", &SendMessageInput{Recipient: "ben", Body: "hi"}},
		{"missing recipient", &SendMessageInput{Sender: "ana", Body: "hi"}},
		{"blank body", &SendMessageInput{Sender: "ana", Recipient: "ben", Body: "   "}},
		{"control characters only", &SendMessageInput{Sender: "ana", Recipient: "ben", Body: "\x00\x1b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockMessageStore)
			service := NewService(store, nil)

			_, err := service.SendMessage(context.Background(), tt.input)

			require.Error(t, err)
			assert.Equal(t, 400, apperrors.GetAppError(err).StatusCode)
			store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestGetHistory(t *testing.T) {
	store := new(MockMessageStore)
	service := NewService(store, nil)

	expected := []*domain.Message{{Body: "one"}, {Body: "two"}}
	store.On("History", "ana", "ben", 2).Return(expected)

	msgs, err := service.GetHistory(context.Background(), "ana", "ben", 2)

	require.NoError(t, err)
	assert.Equal(t, expected, msgs)
	store.AssertExpectations(t)
}

func TestGetHistory_LimitTooLarge(t *testing.T) {
	store := new(MockMessageStore)
	service := NewService(store, nil)

	_, err := service.GetHistory(context.Background(), "ana", "ben", MaxHistoryLimit+1)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
	store.AssertNotCalled(t, "History", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetHistory_MissingContact(t *testing.T) {
	service := NewService(new(MockMessageStore), nil)

	_, err := service.GetHistory(context.Background(), "ana", "", 10)

	assert.Error(t, err)
}

// The three-message scenario against the real store
func TestGetHistory_MostRecentOldestFirst(t *testing.T) {
	service := NewService(memory.NewMessageRepository(), nil)
	ctx := context.Background()

	for _, body := range []string{"first", "second", "third"} {
		_, err := service.SendMessage(ctx, &SendMessageInput{Sender: "ana", Recipient: "ben", Body: body})
		require.NoError(t, err)
	}

	forward, err := service.GetHistory(ctx, "ana", "ben", 2)
	require.NoError(t, err)
	backward, err := service.GetHistory(ctx, "ben", "ana", 2)
	require.NoError(t, err)

	require.Len(t, forward, 2)
	assert.Equal(t, "second", forward[0].Body)
	assert.Equal(t, "third", forward[1].Body)
	assert.Equal(t, forward, backward)

	none, err := service.GetHistory(ctx, "ana", "ben", -1)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMarkRead(t *testing.T) {
	store := new(MockMessageStore)
	service := NewService(store, nil)

	known := uuid.New()
	store.On("MarkRead", known).Return(true)
	store.On("MarkRead", mock.Anything).Return(false)

	assert.NoError(t, service.MarkRead(context.Background(), known))

	err := service.MarkRead(context.Background(), uuid.New())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMessageNotFound))
}

func TestGetUnread(t *testing.T) {
	service := NewService(memory.NewMessageRepository(), nil)
	ctx := context.Background()

	_, err := service.SendMessage(ctx, &SendMessageInput{Sender: "ana", Recipient: "ben", Body: "hi"})
	require.NoError(t, err)

	unread, err := service.GetUnread(ctx, "ben")
	require.NoError(t, err)
	require.Len(t, unread, 1)

	require.NoError(t, service.MarkRead(ctx, unread[0].MessageID))

	unread, err = service.GetUnread(ctx, "ben")
	require.NoError(t, err)
	assert.Empty(t, unread)
}
