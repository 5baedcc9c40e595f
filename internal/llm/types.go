package llm

// Request types for the OpenRouter chat completions API

// ChatRequest represents a streaming chat completion request
type ChatRequest struct {
	Model       string               `json:"model"`
	Messages    []Message            `json:"messages"`
	Stream      bool                 `json:"stream"`
	Temperature float64              `json:"temperature"`
	TopP        float64              `json:"top_p"`
	TopK        int                  `json:"top_k"`
	MinP        float64              `json:"min_p"`
	Provider    *ProviderPreferences `json:"provider,omitempty"`
	Reasoning   ReasoningOptions     `json:"reasoning"`
}

// Message represents a chat message as sent upstream.
// Reasoning is never part of it.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ProviderPreferences restricts which upstream providers may serve a request
type ProviderPreferences struct {
	Only []string `json:"only"`
}

// ReasoningOptions asks the model to emit its reasoning stream
type ReasoningOptions struct {
	Enabled bool `json:"enabled"`
}

// ErrorResponse represents an API error body
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"` // OpenRouter sends a number, OpenAI a string
	} `json:"error"`
}

// Settings are the generation parameters for one request.
// The caller supplies every value; nothing is defaulted here.
type Settings struct {
	Model       string
	Temperature float64
	TopP        float64
	TopK        int
	MinP        float64
	Provider    string
	Reasoning   bool
	RequireDone bool
}

// NewChatRequest builds the request payload for a conversation
func NewChatRequest(history []Message, s Settings) ChatRequest {
	messages := make([]Message, len(history))
	copy(messages, history)

	req := ChatRequest{
		Model:       s.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: s.Temperature,
		TopP:        s.TopP,
		TopK:        s.TopK,
		MinP:        s.MinP,
		Reasoning:   ReasoningOptions{Enabled: s.Reasoning},
	}
	if s.Provider != "" {
		req.Provider = &ProviderPreferences{Only: []string{s.Provider}}
	}
	return req
}
