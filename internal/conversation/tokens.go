package conversation

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens for logging and metrics.
// It is safe for concurrent use.
type TokenCounter struct {
	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
}

// NewTokenCounter creates a new token counter
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{
		encoders: make(map[string]*tiktoken.Tiktoken),
	}
}

// Count returns the number of tokens in a text for a given model.
// It falls back to an estimate when no encoder can be loaded.
func (tc *TokenCounter) Count(text, model string) int {
	if text == "" {
		return 0
	}

	encoder := tc.encoder(encodingFor(model))
	if encoder == nil {
		return estimateTokens(text)
	}
	return len(encoder.Encode(text, nil, nil))
}

func (tc *TokenCounter) encoder(encoding string) *tiktoken.Tiktoken {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if enc, ok := tc.encoders[encoding]; ok {
		return enc
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		// Misses are cached too; the encoding download is not retried.
		tc.encoders[encoding] = nil
		return nil
	}
	tc.encoders[encoding] = enc
	return enc
}

// encodingFor maps a model id to a tiktoken encoding. Non-OpenAI models are
// approximated with cl100k_base.
func encodingFor(model string) string {
	name := strings.ToLower(model)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	for _, prefix := range []string{"gpt-4o", "gpt-4.1", "gpt-5", "o1", "o3", "o4"} {
		if strings.HasPrefix(name, prefix) {
			return "o200k_base"
		}
	}
	return "cl100k_base"
}

// estimateTokens provides a rough token estimate (chars/4)
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
