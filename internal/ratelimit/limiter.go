package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/s33g/lumin/internal/config"
	"github.com/s33g/lumin/internal/storage"
)

// Both windows are checked before either is incremented, so a rejected
// request does not consume quota.
var requestScript = redis.NewScript(`
local minute = tonumber(redis.call('GET', KEYS[1]) or "0")
local hour = tonumber(redis.call('GET', KEYS[2]) or "0")
local minute_limit = tonumber(ARGV[1])
local hour_limit = tonumber(ARGV[2])

if minute_limit > 0 and minute >= minute_limit then
    local ttl = redis.call('TTL', KEYS[1])
    return {-1, ttl > 0 and ttl or tonumber(ARGV[3])}
end

if hour_limit > 0 and hour >= hour_limit then
    local ttl = redis.call('TTL', KEYS[2])
    return {-2, ttl > 0 and ttl or tonumber(ARGV[4])}
end

if minute == 0 then
    redis.call('SET', KEYS[1], 1, 'EX', tonumber(ARGV[3]))
else
    redis.call('INCR', KEYS[1])
end

if hour == 0 then
    redis.call('SET', KEYS[2], 1, 'EX', tonumber(ARGV[4]))
else
    redis.call('INCR', KEYS[2])
end

return {1, 0}
`)

// Window names a rate limit window
type Window string

const (
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
)

// Limiter enforces per-user request limits in Redis
type Limiter struct {
	client *storage.Client

	mu     sync.RWMutex
	limits config.RateLimit
}

// NewLimiter creates a limiter and preloads its script
func NewLimiter(ctx context.Context, client *storage.Client, limits config.RateLimit) (*Limiter, error) {
	if err := requestScript.Load(ctx, client.Redis()).Err(); err != nil {
		return nil, fmt.Errorf("failed to load rate limit script: %w", err)
	}
	return &Limiter{client: client, limits: limits}, nil
}

// SetLimits replaces the limits, e.g. after a config reload
func (l *Limiter) SetLimits(limits config.RateLimit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits = limits
}

// Result holds the outcome of a rate limit check
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
	Window     Window
}

// Allow checks and, when allowed, counts one request for userID
func (l *Limiter) Allow(ctx context.Context, userID string) (Result, error) {
	l.mu.RLock()
	limits := l.limits
	l.mu.RUnlock()

	keys := []string{
		l.client.Keys().RateLimitMinute(userID),
		l.client.Keys().RateLimitHour(userID),
	}

	raw, err := requestScript.Run(ctx, l.client.Redis(), keys,
		limits.RequestsPerMinute,
		limits.RequestsPerHour,
		int(time.Minute.Seconds()),
		int(time.Hour.Seconds()),
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return Result{}, fmt.Errorf("unexpected rate limit result format")
	}

	status, _ := values[0].(int64)
	seconds, _ := values[1].(int64)
	retry := time.Duration(seconds) * time.Second

	switch status {
	case 1:
		return Result{Allowed: true}, nil
	case -1:
		return Result{RetryAfter: retry, Window: WindowMinute}, nil
	case -2:
		return Result{RetryAfter: retry, Window: WindowHour}, nil
	default:
		return Result{}, fmt.Errorf("unknown rate limit status: %d", status)
	}
}
