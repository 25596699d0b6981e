package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "https://api.daily.co/v1", cfg.Room.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Room.Timeout)
	assert.Equal(t, 1000, cfg.WebSocket.MaxConnections)
	assert.False(t, cfg.RoomProviderConfigured())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("DAILY_API_KEY", "key")
	t.Setenv("DAILY_DOMAIN", "voicelink")
	t.Setenv("ROOM_PROVIDER_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Room.Timeout)
	assert.True(t, cfg.RoomProviderConfigured())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	t.Run("invalid port", func(t *testing.T) {
		t.Setenv("PORT", "70000")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("production requires origins", func(t *testing.T) {
		t.Setenv("ENV", "production")
		_, err := Load()
		assert.ErrorContains(t, err, "CORS_ALLOWED_ORIGINS")
	})

	t.Run("bad provider url", func(t *testing.T) {
		t.Setenv("DAILY_API_URL", "not a url")
		_, err := Load()
		assert.ErrorContains(t, err, "DAILY_API_URL")
	})
}
