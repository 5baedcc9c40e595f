package config

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Model      ModelConfig      `yaml:"model"`
	Stream     StreamConfig     `yaml:"stream"`
	Session    SessionConfig    `yaml:"session"`
	Redis      RedisConfig      `yaml:"redis"`
	Discord    DiscordConfig    `yaml:"discord"`
	RateLimit  RateLimit        `yaml:"rate_limit"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// OpenRouterConfig holds the completions endpoint settings
type OpenRouterConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Referer        string `yaml:"referer"` // sent as HTTP-Referer
	Title          string `yaml:"title"`   // sent as X-Title
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the HTTP client timeout. Zero means no timeout.
func (o *OpenRouterConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// ModelConfig holds the generation parameters for a deployment
type ModelConfig struct {
	ID           string  `yaml:"id"`
	Temperature  float64 `yaml:"temperature"`
	TopP         float64 `yaml:"top_p"`
	TopK         int     `yaml:"top_k"`
	MinP         float64 `yaml:"min_p"`
	Provider     string  `yaml:"provider"` // restrict routing to this upstream provider
	Reasoning    bool    `yaml:"reasoning"`
	SystemPrompt string  `yaml:"system_prompt"`
}

// StreamConfig holds stream decoding policy
type StreamConfig struct {
	// RequireDone treats a stream that closes without the [DONE] sentinel as an error.
	RequireDone bool `yaml:"require_done"`
}

// SessionConfig holds conversation storage settings
type SessionConfig struct {
	TTLHours     int `yaml:"ttl_hours"`
	HistoryLimit int `yaml:"history_limit"`
}

// TTL returns the session TTL as a Duration
func (s *SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address     string `yaml:"address"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	KeyPrefix   string `yaml:"key_prefix"`
}

// DiscordConfig holds Discord bot settings
type DiscordConfig struct {
	Token    string   `yaml:"-"` // From environment, not YAML
	GuildID  string   `yaml:"guild_id,omitempty"`
	Channels []string `yaml:"channels"`
	// EditIntervalMillis throttles message edits while a reply streams in.
	EditIntervalMillis int `yaml:"edit_interval_ms"`
}

// EditInterval returns the edit throttle as a Duration
func (d *DiscordConfig) EditInterval() time.Duration {
	return time.Duration(d.EditIntervalMillis) * time.Millisecond
}

// AllowsChannel reports whether the bot answers in a channel
func (d *DiscordConfig) AllowsChannel(channelID string) bool {
	for _, id := range d.Channels {
		if id == channelID {
			return true
		}
	}
	return false
}

// RateLimit defines rate limiting parameters
type RateLimit struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerHour   int `yaml:"requests_per_hour"`
}

// MetricsConfig holds Prometheus exporter settings
type MetricsConfig struct {
	Address string `yaml:"address"` // empty disables the /metrics endpoint
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}
