package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyRemaining      = "pagefeed:rate_limit:remaining"
	RedisKeyResetTimestamp = "pagefeed:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "pagefeed:rate_limit:last_update"
)

// Store persists the rate limit state between requests.
// Load returns (nil, nil) when nothing has been stored yet.
type Store interface {
	Load(ctx context.Context) (*RateLimitState, error)
	Save(ctx context.Context, state *RateLimitState) error
}

// MemoryStore keeps the state in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	state *RateLimitState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) (*RateLimitState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return nil, nil
	}
	cp := *m.state
	return &cp, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, state *RateLimitState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	cp := *state
	m.mu.Lock()
	m.state = &cp
	m.mu.Unlock()
	return nil
}

// RedisStore shares the state between processes talking to the same endpoint.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context) (*RateLimitState, error) {
	remaining, err := r.redis.Get(ctx, RedisKeyRemaining).Int()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	resetTimestamp, err := r.redis.Get(ctx, RedisKeyResetTimestamp).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	lastUpdateStr, err := r.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &RateLimitState{
		Remaining:  remaining,
		ResetAt:    time.Unix(resetTimestamp, 0),
		LastUpdate: lastUpdate,
	}
	state.UpdateHealth()
	return state, nil
}

// Save implements Store. Keys expire shortly after the window resets.
func (r *RedisStore) Save(ctx context.Context, state *RateLimitState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	ttl := state.TimeUntilReset() + time.Minute

	pipe := r.redis.Pipeline()
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, ttl)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), ttl)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}
