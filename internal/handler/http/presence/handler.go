package presence

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"voicelink-backend/internal/presence"
	"voicelink-backend/pkg/response"
	"voicelink-backend/pkg/sanitize"
)

// Handler reports who currently holds a live connection
type Handler struct {
	registry *presence.Registry
}

// NewHandler creates a new presence handler
func NewHandler(registry *presence.Registry) *Handler {
	return &Handler{registry: registry}
}

// ListOnline returns the registered users, sorted
// GET /api/presence
func (h *Handler) ListOnline(c *gin.Context) {
	users := h.registry.OnlineUsers()
	sort.Strings(users)

	response.Success(c, http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

// GetUser reports whether a single user is reachable
// GET /api/presence/:user
func (h *Handler) GetUser(c *gin.Context) {
	userID := sanitize.UserID(c.Param("user"))
	if userID == "" {
		response.ValidationError(c, "user is required")
		return
	}
	_, online := h.registry.Lookup(userID)

	response.Success(c, http.StatusOK, gin.H{
		"user_id": userID,
		"online":  online,
	})
}
