package llm

import (
	"context"
	"iter"

	"github.com/rs/zerolog"
	"github.com/s33g/lumin/internal/config"
)

// Client streams chat completions from an OpenRouter-compatible API
type Client struct {
	transport *Transport
	logger    zerolog.Logger
}

// NewClient creates a new client for the configured endpoint
func NewClient(cfg config.OpenRouterConfig, logger zerolog.Logger) *Client {
	logger = logger.With().Str("component", "llm").Logger()
	return &Client{
		transport: NewTransport(cfg, logger),
		logger:    logger,
	}
}

// SettingsFromConfig maps a deployment's model configuration to request settings
func SettingsFromConfig(m config.ModelConfig, s config.StreamConfig) Settings {
	return Settings{
		Model:       m.ID,
		Temperature: m.Temperature,
		TopP:        m.TopP,
		TopK:        m.TopK,
		MinP:        m.MinP,
		Provider:    m.Provider,
		Reasoning:   m.Reasoning,
		RequireDone: s.RequireDone,
	}
}

// Stream issues one streaming request for the conversation history and
// returns its event sequence. No network activity happens until the first
// call to Next. The caller must Close the stream.
func (c *Client) Stream(ctx context.Context, history []Message, settings Settings, credential string) *Stream {
	body := c.transport.Open(ctx, credential, NewChatRequest(history, settings))
	return &Stream{
		decoder: NewDecoder(body,
			WithRequireDone(settings.RequireDone),
			WithDecoderLogger(c.logger),
		),
	}
}

// Stream is the ordered event sequence of one response
type Stream struct {
	decoder *Decoder
}

// Next returns the next event, or io.EOF when the stream has ended
func (s *Stream) Next() (Event, error) {
	return s.decoder.Next()
}

// All ranges over the remaining events. Stopping early closes the stream.
func (s *Stream) All() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		defer s.Close()
		for {
			ev, err := s.decoder.Next()
			if err != nil {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Stats returns frame counters for the stream so far
func (s *Stream) Stats() DecoderStats {
	return s.decoder.Stats()
}

// Close releases the connection
func (s *Stream) Close() error {
	return s.decoder.Close()
}
