package config

// DefaultSystemPrompt is the persona seeded as the first turn of every session
const DefaultSystemPrompt = `You are Lumin, a multifaceted assistant with expertise spanning programming, physics, mathematics, data analysis, philosophy and the social sciences.

Write code that is clear and idiomatic, explain concepts in depth, and reflect on your own reasoning, acknowledging potential biases and limitations.

If prompted in Spanish or any other language, answer in that language as naturally as possible. In the case of Spanish, talk in Mexican Spanish.`

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		OpenRouter: OpenRouterConfig{
			BaseURL:   "https://openrouter.ai/api/v1",
			APIKeyEnv: "OPENROUTER_API_KEY",
			Title:     "Lumin",
		},
		Model: ModelConfig{
			ID:           "meta-llama/llama-3-70b-instruct",
			Temperature:  1,
			TopP:         1,
			TopK:         0,
			MinP:         0,
			Reasoning:    true,
			SystemPrompt: DefaultSystemPrompt,
		},
		Session: SessionConfig{
			TTLHours:     168, // 7 days
			HistoryLimit: 100,
		},
		Redis: RedisConfig{
			Address:   "localhost:6379",
			DB:        0,
			KeyPrefix: "lumin:",
		},
		Discord: DiscordConfig{
			EditIntervalMillis: 1500,
		},
		RateLimit: RateLimit{
			RequestsPerMinute: 6,
			RequestsPerHour:   60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
