package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/s33g/lumin/internal/storage"
)

// Store persists session turns
type Store interface {
	Append(ctx context.Context, sessionID string, turn Turn) error
	Load(ctx context.Context, sessionID string) ([]Turn, error)
	Clear(ctx context.Context, sessionID string) error
}

// RedisStore keeps each session's turns in a capped Redis list with a TTL
type RedisStore struct {
	client   *storage.Client
	ttl      time.Duration
	maxTurns int
}

// NewRedisStore creates a new Redis-backed turn store
func NewRedisStore(client *storage.Client, ttl time.Duration, maxTurns int) *RedisStore {
	return &RedisStore{
		client:   client,
		ttl:      ttl,
		maxTurns: maxTurns,
	}
}

// Append adds a turn to the session history
func (r *RedisStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	key := r.client.Keys().Turns(sessionID)

	data, err := MarshalTurn(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	pipe := r.client.Redis().TxPipeline()
	pipe.RPush(ctx, key, data)
	if r.maxTurns > 0 {
		pipe.LTrim(ctx, key, -int64(r.maxTurns), -1)
	}
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// Load returns the stored turns in order
func (r *RedisStore) Load(ctx context.Context, sessionID string) ([]Turn, error) {
	key := r.client.Keys().Turns(sessionID)

	data, err := r.client.Redis().LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}

	turns := make([]Turn, 0, len(data))
	for _, d := range data {
		t, err := UnmarshalTurn(d)
		if err != nil {
			// Skip malformed entries
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Clear removes the session history
func (r *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Redis().Del(ctx, r.client.Keys().Turns(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}
	return nil
}
