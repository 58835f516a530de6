// Package persistence holds the short-lived state the inbox keeps outside
// process memory.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// OAuthStateKey is the Redis key prefix for pending OAuth states.
const OAuthStateKey = "inbox:oauth:state:"

var (
	ErrEmptyState   = errors.New("state cannot be empty")
	ErrStateUnknown = errors.New("state not found or expired")
)

// RedisOAuthStateStore keeps OAuth states in Redis for CSRF protection.
type RedisOAuthStateStore struct {
	client *redis.Client
}

func NewRedisOAuthStateStore(client *redis.Client) *RedisOAuthStateStore {
	return &RedisOAuthStateStore{client: client}
}

// StoreState saves state until ttl elapses.
func (s *RedisOAuthStateStore) StoreState(ctx context.Context, state string, ttl time.Duration) error {
	if state == "" {
		return ErrEmptyState
	}
	if err := s.client.Set(ctx, OAuthStateKey+state, time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to store OAuth state: %w", err)
	}
	return nil
}

// ValidateState consumes state. GETDEL makes the check and the delete one
// atomic step, so a state can never be replayed.
func (s *RedisOAuthStateStore) ValidateState(ctx context.Context, state string) error {
	if state == "" {
		return ErrEmptyState
	}
	err := s.client.GetDel(ctx, OAuthStateKey+state).Err()
	if err == redis.Nil {
		return ErrStateUnknown
	}
	if err != nil {
		return fmt.Errorf("failed to validate OAuth state: %w", err)
	}
	return nil
}

// MemoryOAuthStateStore is the fallback used when Redis is not configured.
type MemoryOAuthStateStore struct {
	mu     sync.Mutex
	states map[string]time.Time // state -> expiry
	now    func() time.Time
}

func NewMemoryOAuthStateStore() *MemoryOAuthStateStore {
	return &MemoryOAuthStateStore{
		states: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *MemoryOAuthStateStore) StoreState(_ context.Context, state string, ttl time.Duration) error {
	if state == "" {
		return ErrEmptyState
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.states {
		if now.After(exp) {
			delete(s.states, k)
		}
	}
	s.states[state] = now.Add(ttl)
	return nil
}

func (s *MemoryOAuthStateStore) ValidateState(_ context.Context, state string) error {
	if state == "" {
		return ErrEmptyState
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.states[state]
	if !ok {
		return ErrStateUnknown
	}
	delete(s.states, state)
	if s.now().After(exp) {
		return ErrStateUnknown
	}
	return nil
}
