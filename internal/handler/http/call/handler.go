package call

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"voicelink-backend/internal/domain"
	"voicelink-backend/internal/service/call"
	"voicelink-backend/internal/service/fanout"
	apperrors "voicelink-backend/pkg/errors"
	"voicelink-backend/pkg/response"
)

// defaultUser is assumed when the client omits its own id
const defaultUser = "user"

// EventPusher delivers realtime events to connected users
type EventPusher interface {
	Push(userID, event string, payload interface{}) bool
}

// Handler handles call HTTP requests
type Handler struct {
	callService *call.Service
	events      EventPusher
}

// NewHandler creates a new call handler
func NewHandler(callService *call.Service, events EventPusher) *Handler {
	return &Handler{
		callService: callService,
		events:      events,
	}
}

// RequestCallRequest represents a call request
type RequestCallRequest struct {
	Caller  string `json:"caller"`
	Contact string `json:"contact" binding:"required"`
	Type    string `json:"type"`
}

// RequestCall opens a call session and rings the recipient
// POST /api/calls/request
func (h *Handler) RequestCall(c *gin.Context) {
	var req RequestCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	if req.Caller == "" {
		req.Caller = defaultUser
	}
	if req.Type == "" {
		req.Type = string(domain.CallKindVoice)
	}

	session, err := h.callService.Create(c.Request.Context(), &call.CreateCallInput{
		Caller:    req.Caller,
		Recipient: req.Contact,
		Kind:      domain.CallKind(req.Type),
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	h.events.Push(session.Recipient, fanout.EventIncomingCall, fanout.IncomingCallPayload{
		CallID: session.CallID.String(),
		From:   session.Caller,
		Type:   string(session.Kind),
	})

	response.Success(c, http.StatusOK, gin.H{
		"call_id":       session.CallID,
		"room_url":      session.RoomURL,
		"degraded_room": session.DegradedRoom,
	})
}

// RespondCallRequest represents the recipient's answer
type RespondCallRequest struct {
	CallID string `json:"call_id" binding:"required"`
	User   string `json:"user"`
	Accept bool   `json:"accept"`
}

// RespondCall accepts or rejects a pending call and tells the caller
// POST /api/calls/respond
func (h *Handler) RespondCall(c *gin.Context) {
	var req RespondCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	if req.User == "" {
		req.User = defaultUser
	}

	callID, ok := parseCallID(c, req.CallID)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if req.Accept {
		session, err := h.callService.Accept(ctx, callID, req.User)
		if err != nil {
			response.FromError(c, err)
			return
		}

		h.events.Push(session.Caller, fanout.EventCallAccepted, fanout.CallAcceptedPayload{
			CallID:  session.CallID.String(),
			RoomURL: session.RoomURL,
		})

		response.Success(c, http.StatusOK, gin.H{
			"status":   session.Status,
			"room_url": session.RoomURL,
		})
		return
	}

	session, err := h.callService.Reject(ctx, callID, req.User)
	if err != nil {
		response.FromError(c, err)
		return
	}

	h.events.Push(session.Caller, fanout.EventCallRejected, fanout.CallClosedPayload{
		CallID: session.CallID.String(),
	})

	response.Success(c, http.StatusOK, gin.H{
		"status": session.Status,
	})
}

// EndCallRequest represents a hang-up
type EndCallRequest struct {
	CallID string `json:"call_id" binding:"required"`
}

// EndCall terminates a call and tells both parties
// POST /api/calls/end
func (h *Handler) EndCall(c *gin.Context) {
	var req EndCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	callID, ok := parseCallID(c, req.CallID)
	if !ok {
		return
	}

	session, err := h.callService.End(c.Request.Context(), callID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	payload := fanout.CallClosedPayload{CallID: session.CallID.String()}
	h.events.Push(session.Caller, fanout.EventCallEnded, payload)
	if session.Recipient != session.Caller {
		h.events.Push(session.Recipient, fanout.EventCallEnded, payload)
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Call ended",
		"call_id": session.CallID,
	})
}

// GetCall returns a single call session
// GET /api/calls/:id
func (h *Handler) GetCall(c *gin.Context) {
	callID, ok := parseCallID(c, c.Param("id"))
	if !ok {
		return
	}

	session, err := h.callService.Get(c.Request.Context(), callID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, session)
}

// ListCalls returns the user's recent calls, newest first
// GET /api/calls?user=&limit=
func (h *Handler) ListCalls(c *gin.Context) {
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			response.ValidationError(c, "limit must be an integer")
			return
		}
		limit = l
	}

	calls, err := h.callService.ListForUser(c.Request.Context(), c.DefaultQuery("user", defaultUser), limit)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"calls": calls,
	})
}

// parseCallID answers 404 for ids that cannot name a session
func parseCallID(c *gin.Context, raw string) (uuid.UUID, bool) {
	callID, err := uuid.Parse(raw)
	if err != nil {
		response.FromError(c, apperrors.CallNotFoundError())
		return uuid.Nil, false
	}
	return callID, true
}
