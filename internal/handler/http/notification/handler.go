package notification

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"voicelink-backend/internal/service/notification"
	"voicelink-backend/pkg/response"
)

// defaultUser is assumed when the client omits its own id
const defaultUser = "user"

// Handler handles notification HTTP requests
type Handler struct {
	notificationService *notification.Service
}

// NewHandler creates a new notification handler
func NewHandler(notificationService *notification.Service) *Handler {
	return &Handler{
		notificationService: notificationService,
	}
}

// GetNotifications retrieves a user's notifications
// GET /api/notifications?user=&unread_only=
func (h *Handler) GetNotifications(c *gin.Context) {
	unreadOnly := false
	if raw := c.Query("unread_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.ValidationError(c, "unread_only must be a boolean")
			return
		}
		unreadOnly = v
	}

	result, err := h.notificationService.GetNotifications(c.Request.Context(), c.DefaultQuery("user", defaultUser), unreadOnly)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// CreateNotificationRequest represents a create-notification request
type CreateNotificationRequest struct {
	User  string                 `json:"user"`
	Type  string                 `json:"type"`
	Title string                 `json:"title" binding:"required"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data"`
}

// CreateNotification stores a notification for a user
// POST /api/notifications
func (h *Handler) CreateNotification(c *gin.Context) {
	var req CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	if req.User == "" {
		req.User = defaultUser
	}

	created, err := h.notificationService.Create(c.Request.Context(), &notification.CreateNotificationInput{
		UserID: req.User,
		Type:   req.Type,
		Title:  req.Title,
		Body:   req.Body,
		Data:   req.Data,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, created)
}

// MarkAsRead marks a notification as read
// POST /api/notifications/:id/read
func (h *Handler) MarkAsRead(c *gin.Context) {
	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid notification ID")
		return
	}

	if err := h.notificationService.MarkAsRead(c.Request.Context(), notificationID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Notification marked as read",
	})
}

// MarkAllAsReadRequest names the user whose notifications are cleared
type MarkAllAsReadRequest struct {
	User string `json:"user"`
}

// MarkAllAsRead marks all notifications as read
// POST /api/notifications/read-all
func (h *Handler) MarkAllAsRead(c *gin.Context) {
	var req MarkAllAsReadRequest
	// An empty body means the default user
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ValidationError(c, err.Error())
			return
		}
	}
	if req.User == "" {
		req.User = defaultUser
	}

	count, err := h.notificationService.MarkAllAsRead(c.Request.Context(), req.User)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"count": count,
	})
}

// DeleteNotification deletes a notification
// DELETE /api/notifications/:id
func (h *Handler) DeleteNotification(c *gin.Context) {
	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid notification ID")
		return
	}

	if err := h.notificationService.DeleteNotification(c.Request.Context(), notificationID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Notification deleted",
	})
}
