package conversation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/s33g/lumin/internal/llm"
)

// Role identifies who authored a turn
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one entry of a conversation
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Reasoning string    `json:"reasoning,omitempty"` // never sent upstream
	Tokens    int       `json:"tokens,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Message converts the turn to its wire form, dropping reasoning
func (t Turn) Message() llm.Message {
	return llm.Message{Role: string(t.Role), Content: t.Content}
}

// MarshalTurn converts a Turn to JSON for storage
func MarshalTurn(t Turn) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalTurn converts stored JSON back to a Turn
func UnmarshalTurn(data string) (Turn, error) {
	var t Turn
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return Turn{}, err
	}
	if !t.Role.Valid() {
		return Turn{}, fmt.Errorf("unknown role %q", t.Role)
	}
	return t, nil
}
