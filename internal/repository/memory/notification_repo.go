package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"voicelink-backend/internal/domain"
)

// NotificationRepository keeps per-user notifications in memory
type NotificationRepository struct {
	mu            sync.RWMutex
	notifications map[uuid.UUID]*domain.Notification
	seq           map[uuid.UUID]uint64
	nextSeq       uint64
	now           func() time.Time
}

// NewNotificationRepository creates an empty notification store
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		notifications: make(map[uuid.UUID]*domain.Notification),
		seq:           make(map[uuid.UUID]uint64),
		now:           time.Now,
	}
}

// Create stores a new unread notification
func (r *NotificationRepository) Create(input *domain.NotificationCreate) *domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := &domain.Notification{
		NotificationID: uuid.New(),
		UserID:         input.UserID,
		Type:           input.Type,
		Title:          input.Title,
		Body:           input.Body,
		Data:           copyData(input.Data),
		CreatedAt:      r.now().UTC(),
	}
	r.nextSeq++
	r.notifications[n.NotificationID] = n
	r.seq[n.NotificationID] = r.nextSeq

	return cloneNotification(n)
}

// List returns the user's notifications, newest first
func (r *NotificationRepository) List(userID string, unreadOnly bool) []*domain.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Notification, 0)
	for _, n := range r.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		result = append(result, n)
	}

	// Insertion sequence breaks ties between equal timestamps.
	sort.Slice(result, func(i, j int) bool {
		return r.seq[result[i].NotificationID] > r.seq[result[j].NotificationID]
	})

	for i, n := range result {
		result[i] = cloneNotification(n)
	}
	return result
}

// UnreadCount returns how many of the user's notifications are unread
func (r *NotificationRepository) UnreadCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count
}

// MarkRead marks one notification as read. It reports false for unknown ids.
func (r *NotificationRepository) MarkRead(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok {
		return false
	}
	r.markRead(n)
	return true
}

// MarkAllRead marks every unread notification of the user and returns how many changed
func (r *NotificationRepository) MarkAllRead(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			r.markRead(n)
			count++
		}
	}
	return count
}

// Delete removes a notification. It reports false for unknown ids.
func (r *NotificationRepository) Delete(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notifications[id]; !ok {
		return false
	}
	delete(r.notifications, id)
	delete(r.seq, id)
	return true
}

func (r *NotificationRepository) markRead(n *domain.Notification) {
	if n.IsRead {
		return
	}
	readAt := r.now().UTC()
	n.IsRead = true
	n.ReadAt = &readAt
}

func cloneNotification(n *domain.Notification) *domain.Notification {
	out := *n
	out.Data = copyData(n.Data)
	if n.ReadAt != nil {
		readAt := *n.ReadAt
		out.ReadAt = &readAt
	}
	return &out
}

func copyData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
