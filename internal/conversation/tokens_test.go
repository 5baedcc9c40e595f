package conversation

import "testing"

func TestEncodingFor(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"openai/gpt-4o-mini", "o200k_base"},
		{"gpt-4.1", "o200k_base"},
		{"openai/o3-mini", "o200k_base"},
		{"openai/gpt-4-turbo", "cl100k_base"},
		{"meta-llama/llama-3-70b-instruct", "cl100k_base"},
		{"", "cl100k_base"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := encodingFor(tt.model); got != tt.want {
				t.Errorf("encodingFor(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestTokenCounter_Fallback(t *testing.T) {
	tc := NewTokenCounter()
	tc.encoders["cl100k_base"] = nil

	if got := tc.Count("", "any"); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}
	if got := tc.Count("hello world", "meta-llama/llama-3-70b-instruct"); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
}
