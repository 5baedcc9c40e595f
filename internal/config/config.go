package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file.
// A missing file is not an error when path is empty; defaults are used.
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Get Discord token from environment (only required by the bot)
	cfg.Discord.Token = os.Getenv("DISCORD_TOKEN")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid for any front-end
func (c *Config) Validate() error {
	if c.OpenRouter.BaseURL == "" {
		return fmt.Errorf("openrouter.base_url is required")
	}
	if _, err := url.ParseRequestURI(c.OpenRouter.BaseURL); err != nil {
		return fmt.Errorf("openrouter.base_url is invalid: %w", err)
	}
	if c.OpenRouter.TimeoutSeconds < 0 {
		return fmt.Errorf("openrouter.timeout_seconds must not be negative")
	}

	if c.Model.ID == "" {
		return fmt.Errorf("model.id is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model.temperature must be between 0 and 2")
	}
	if c.Model.TopP < 0 || c.Model.TopP > 1 {
		return fmt.Errorf("model.top_p must be between 0 and 1")
	}
	if c.Model.TopK < 0 {
		return fmt.Errorf("model.top_k must not be negative")
	}
	if c.Model.MinP < 0 || c.Model.MinP > 1 {
		return fmt.Errorf("model.min_p must be between 0 and 1")
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	return nil
}

// ValidateBot checks the settings only the Discord front-end needs
func (c *Config) ValidateBot() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("DISCORD_TOKEN environment variable is required")
	}
	if len(c.Discord.Channels) == 0 {
		return fmt.Errorf("discord.channels must list at least one channel")
	}
	if c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required")
	}
	if c.Session.TTLHours <= 0 {
		return fmt.Errorf("session.ttl_hours must be positive")
	}
	if c.Session.HistoryLimit <= 0 {
		return fmt.Errorf("session.history_limit must be positive")
	}
	return nil
}

// APIKey returns the credential from the configured environment variable
func (c *Config) APIKey() string {
	if c.OpenRouter.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.OpenRouter.APIKeyEnv)
}
