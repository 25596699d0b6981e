package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType categorises a notification
type NotificationType string

const (
	NotificationTypeMessage NotificationType = "message"
	NotificationTypeCall    NotificationType = "call"
	NotificationTypeSystem  NotificationType = "system"
)

// Valid reports whether t is a known notification type
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeMessage, NotificationTypeCall, NotificationTypeSystem:
		return true
	}
	return false
}

// Notification represents a user notification
type Notification struct {
	NotificationID uuid.UUID              `json:"notification_id"`
	UserID         string                 `json:"user_id"`
	Type           NotificationType       `json:"type"`
	Title          string                 `json:"title"`
	Body           string                 `json:"body"`
	Data           map[string]interface{} `json:"data,omitempty"`
	IsRead         bool                   `json:"is_read"`
	CreatedAt      time.Time              `json:"created_at"`
	ReadAt         *time.Time             `json:"read_at,omitempty"`
}

// NotificationCreate represents data needed to create a notification
type NotificationCreate struct {
	UserID string
	Type   NotificationType
	Title  string
	Body   string
	Data   map[string]interface{}
}

// NotificationListResponse is returned when listing a user's notifications
type NotificationListResponse struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int             `json:"unread_count"`
	TotalCount    int             `json:"total_count"`
}
