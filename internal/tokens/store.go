package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"leadcolor/internal/constants"
)

// Token is the OAuth pair the token service issues for one subdomain.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Store keeps tokens for a limited time. Get reports false for absent or
// expired keys.
type Store interface {
	Get(ctx context.Context, key string) (Token, bool, error)
	Set(ctx context.Context, key string, token Token, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key is the store key for a subdomain and OAuth client.
func Key(subdomain, clientID string) string {
	return constants.CacheKeyPrefixToken + subdomain + ":" + clientID
}

type memoryEntry struct {
	token     Token
	expiresAt time.Time
}

type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Token, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return Token{}, false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return Token{}, false, nil
	}
	return entry.token, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, token Token, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = memoryEntry{token: token, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// RedisStore shares tokens between service instances. Values are JSON with a
// Redis-side expiry.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (Token, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, fmt.Errorf("redis GET failed: %w", err)
	}

	var token Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return Token{}, false, fmt.Errorf("corrupt token at %s: %w", key, err)
	}
	return token, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, token Token, ttl time.Duration) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis DEL failed: %w", err)
	}
	return nil
}
