// Package room provisions WebRTC rooms for call sessions.
package room

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"voicelink-backend/internal/domain"
)

// placeholderHost serves rooms handed out when the provider is unavailable
const placeholderHost = "example.daily.co"

// ErrNotConfigured is returned when no API key or domain is configured
var ErrNotConfigured = errors.New("room provider not configured")

// Provider creates and deletes rooms
type Provider interface {
	CreateRoom(ctx context.Context, sessionID string, kind domain.CallKind) (string, error)
	DeleteRoom(ctx context.Context, roomURL string) error
}

// StatusError reports a non-2xx reply from the provider
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("room provider %s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// PlaceholderURL returns the deterministic room reference used when a real
// room could not be obtained
func PlaceholderURL(sessionID string) string {
	return fmt.Sprintf("https://%s/%s", placeholderHost, sessionID)
}

// IsPlaceholder reports whether roomURL was produced by PlaceholderURL
func IsPlaceholder(roomURL string) bool {
	u, err := url.Parse(roomURL)
	if err != nil {
		return strings.Contains(roomURL, placeholderHost)
	}
	return u.Host == placeholderHost
}

// RoomName extracts the room name (last path segment) from a room URL
func RoomName(roomURL string) string {
	u, err := url.Parse(roomURL)
	if err != nil || u.Path == "" {
		return ""
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return ""
	}
	return name
}
