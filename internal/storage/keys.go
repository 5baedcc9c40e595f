package storage

import (
	"fmt"
)

// Keys generates Redis keys with consistent naming
type Keys struct {
	prefix string
}

// NewKeys creates a new Keys generator
func NewKeys(prefix string) *Keys {
	return &Keys{prefix: prefix}
}

// Turns returns the key for a session's turn list
func (k *Keys) Turns(sessionID string) string {
	return fmt.Sprintf("%ssession:%s:turns", k.prefix, sessionID)
}

// RateLimitMinute returns the key for per-minute rate limiting
func (k *Keys) RateLimitMinute(userID string) string {
	return fmt.Sprintf("%sratelimit:%s:minute", k.prefix, userID)
}

// RateLimitHour returns the key for per-hour rate limiting
func (k *Keys) RateLimitHour(userID string) string {
	return fmt.Sprintf("%sratelimit:%s:hour", k.prefix, userID)
}
