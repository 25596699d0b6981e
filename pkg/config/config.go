package config

import (
	"fmt"
	"net/url"
	"time"

	"voicelink-backend/pkg/env"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Room      RoomConfig
	RateLimit RateLimitConfig
	WebSocket WebSocketConfig
	Log       LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Environment    string // development, staging, production
	ServiceName    string
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// RedisConfig holds Redis configuration. Redis only backs the presence
// mirror and the rate limiter, so the service runs without it.
type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int
	Timeout     time.Duration
	PresenceTTL time.Duration
}

// RoomConfig holds the Daily.co room provider settings
type RoomConfig struct {
	APIKey  string
	Domain  string
	BaseURL string
	Timeout time.Duration
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// WebSocketConfig holds realtime channel limits
type WebSocketConfig struct {
	MaxConnections int
	PingInterval   time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string // debug, info, warn, error
	Format   string // json, text
	Output   string // stdout, file
	FilePath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           env.GetInt("PORT", 5000),
			Environment:    env.GetString("ENV", "development"),
			ServiceName:    env.GetString("SERVICE_NAME", "voicelink"),
			RequestTimeout: env.GetDuration("REQUEST_TIMEOUT", 30*time.Second),
			AllowedOrigins: env.GetStringSlice("CORS_ALLOWED_ORIGINS", nil),
		},
		Redis: RedisConfig{
			Enabled:     env.GetBool("REDIS_ENABLED", true),
			Host:        env.GetString("REDIS_HOST", "localhost"),
			Port:        env.GetInt("REDIS_PORT", 6379),
			Password:    env.GetStringFromFile("REDIS_PASSWORD", ""),
			DB:          env.GetInt("REDIS_DB", 0),
			PoolSize:    env.GetInt("REDIS_POOL_SIZE", 10),
			Timeout:     env.GetDuration("REDIS_TIMEOUT", 5*time.Second),
			PresenceTTL: env.GetDuration("PRESENCE_TTL", 5*time.Minute),
		},
		Room: RoomConfig{
			APIKey:  env.GetStringFromFile("DAILY_API_KEY", ""),
			Domain:  env.GetString("DAILY_DOMAIN", ""),
			BaseURL: env.GetString("DAILY_API_URL", "https://api.daily.co/v1"),
			Timeout: env.GetDuration("ROOM_PROVIDER_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			Requests: env.GetInt("RATE_LIMIT_REQUESTS", 120),
			Window:   env.GetDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		WebSocket: WebSocketConfig{
			MaxConnections: env.GetInt("WS_MAX_CONNECTIONS", 1000),
			PingInterval:   env.GetDuration("WS_PING_INTERVAL", 30*time.Second),
		},
		Log: LogConfig{
			Level:    env.GetString("LOG_LEVEL", "info"),
			Format:   env.GetString("LOG_FORMAT", "json"),
			Output:   env.GetString("LOG_OUTPUT", "stdout"),
			FilePath: env.GetString("LOG_FILE_PATH", "/logs/app.log"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.Room.Timeout <= 0 {
		return fmt.Errorf("ROOM_PROVIDER_TIMEOUT must be positive")
	}
	if _, err := url.ParseRequestURI(c.Room.BaseURL); err != nil {
		return fmt.Errorf("DAILY_API_URL is not a valid URL: %w", err)
	}
	if c.Redis.Enabled && c.Redis.PresenceTTL <= 0 {
		return fmt.Errorf("PRESENCE_TTL must be positive")
	}
	if c.WebSocket.MaxConnections <= 0 || c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WS_MAX_CONNECTIONS and WS_PING_INTERVAL must be positive")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	if c.Server.Environment == "production" && len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must be set in production")
	}
	return nil
}

// RoomProviderConfigured reports whether real rooms can be provisioned
func (c *Config) RoomProviderConfigured() bool {
	return c.Room.APIKey != "" && c.Room.Domain != ""
}
