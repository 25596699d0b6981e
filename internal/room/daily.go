package room

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voicelink-backend/internal/domain"
	apperrors "voicelink-backend/pkg/errors"
)

const providerName = "daily"

// DailyConfig holds Daily.co REST API settings
type DailyConfig struct {
	APIKey  string
	Domain  string
	BaseURL string
	Timeout time.Duration
}

// DailyClient talks to the Daily.co REST API
type DailyClient struct {
	cfg        DailyConfig
	httpClient *http.Client
}

// NewDailyClient creates a Daily.co client
func NewDailyClient(cfg DailyConfig) *DailyClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.daily.co/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &DailyClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type createRoomRequest struct {
	Name       string         `json:"name"`
	Privacy    string         `json:"privacy"`
	Properties roomProperties `json:"properties"`
}

type roomProperties struct {
	EnableChat        bool `json:"enable_chat"`
	EnableScreenshare bool `json:"enable_screenshare"`
	StartVideoOff     bool `json:"start_video_off"`
	StartAudioOff     bool `json:"start_audio_off"`
	MaxParticipants   int  `json:"max_participants"`
}

type createRoomResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (d *DailyClient) configured() bool {
	return d.cfg.APIKey != "" && d.cfg.Domain != ""
}

// CreateRoom creates a private two-person room named after the session
func (d *DailyClient) CreateRoom(ctx context.Context, sessionID string, kind domain.CallKind) (string, error) {
	if !d.configured() {
		return "", ErrNotConfigured
	}

	payload, err := json.Marshal(createRoomRequest{
		Name:    sessionID,
		Privacy: "private",
		Properties: roomProperties{
			EnableChat:        false,
			EnableScreenshare: kind == domain.CallKindVideo,
			StartVideoOff:     kind == domain.CallKindVoice,
			StartAudioOff:     false,
			MaxParticipants:   2,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode room request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.BaseURL+"/rooms", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build room request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	d.authorize(req)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", apperrors.ExternalServiceError(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperrors.ExternalServiceError(providerName, newStatusError("create", resp))
	}

	var out createRoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode room response: %w", err)
	}
	if out.URL == "" {
		name := out.Name
		if name == "" {
			name = sessionID
		}
		out.URL = fmt.Sprintf("https://%s.daily.co/%s", d.cfg.Domain, name)
	}
	return out.URL, nil
}

// DeleteRoom deletes the room behind roomURL. Placeholder rooms and rooms
// already gone are treated as deleted.
func (d *DailyClient) DeleteRoom(ctx context.Context, roomURL string) error {
	if IsPlaceholder(roomURL) {
		return nil
	}
	if !d.configured() {
		return ErrNotConfigured
	}
	name := RoomName(roomURL)
	if name == "" {
		return fmt.Errorf("cannot derive room name from %q", roomURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, d.cfg.BaseURL+"/rooms/"+url.PathEscape(name), nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}
	d.authorize(req)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return apperrors.ExternalServiceError(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.ExternalServiceError(providerName, newStatusError("delete", resp))
	}
	return nil
}

func (d *DailyClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)
}

func newStatusError(operation string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
