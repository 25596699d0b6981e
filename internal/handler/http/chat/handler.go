package chat

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"voicelink-backend/internal/service/chat"
	"voicelink-backend/internal/service/fanout"
	"voicelink-backend/pkg/response"
)

// defaultUser is assumed when the client omits its own id
const defaultUser = "user"

// EventPusher delivers realtime events to connected users
type EventPusher interface {
	Push(userID, event string, payload interface{}) bool
}

// Handler handles text message HTTP requests
type Handler struct {
	chatService *chat.Service
	events      EventPusher
}

// NewHandler creates a new chat handler
func NewHandler(chatService *chat.Service, events EventPusher) *Handler {
	return &Handler{
		chatService: chatService,
		events:      events,
	}
}

// SendMessageRequest represents a send-message request
type SendMessageRequest struct {
	Sender  string `json:"sender"`
	Contact string `json:"contact" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// SendMessage stores a message and pushes it to the recipient if online
// POST /api/messages/send
func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	if req.Sender == "" {
		req.Sender = defaultUser
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), &chat.SendMessageInput{
		Sender:    req.Sender,
		Recipient: req.Contact,
		Body:      req.Message,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	h.events.Push(msg.Recipient, fanout.EventNewMessage, fanout.NewMessagePayload{
		MessageID: msg.MessageID.String(),
		From:      msg.Sender,
		Message:   msg.Body,
	})

	response.Success(c, http.StatusOK, gin.H{
		"message_id": msg.MessageID,
	})
}

// GetHistory returns the conversation between user and contact
// GET /api/messages/history?user=&contact=&limit=
func (h *Handler) GetHistory(c *gin.Context) {
	user := c.DefaultQuery("user", defaultUser)
	contact := c.Query("contact")
	if contact == "" {
		response.ValidationError(c, "contact is required")
		return
	}

	limit := chat.DefaultHistoryLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			response.ValidationError(c, "limit must be an integer")
			return
		}
		limit = l
	}

	messages, err := h.chatService.GetHistory(c.Request.Context(), user, contact, limit)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"messages": messages,
	})
}

// GetUnread returns unread messages addressed to user
// GET /api/messages/unread?user=
func (h *Handler) GetUnread(c *gin.Context) {
	messages, err := h.chatService.GetUnread(c.Request.Context(), c.DefaultQuery("user", defaultUser))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"messages": messages,
	})
}

// MarkRead marks a message as read
// POST /api/messages/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid message ID")
		return
	}

	if err := h.chatService.MarkRead(c.Request.Context(), messageID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Message marked as read",
	})
}
