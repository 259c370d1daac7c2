package tokens

import (
	"context"
	"fmt"
	"time"

	"leadcolor/internal/config"
	"leadcolor/pkg/circuitbreaker"
)

const storeBreakerName = "redis-tokens"

// CircuitBreakerStore stops calling a failing store for a while. With the
// breaker disabled in config it is a plain pass-through.
type CircuitBreakerStore struct {
	store Store
	cb    *circuitbreaker.Wrapper
}

func NewCircuitBreakerStore(store Store, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	if !cfg.Enabled {
		return &CircuitBreakerStore{store: store}
	}
	return &CircuitBreakerStore{
		store: store,
		cb:    circuitbreaker.NewWrapper(circuitbreaker.FromConfig(storeBreakerName, cfg)),
	}
}

type storedToken struct {
	token Token
	found bool
}

func (s *CircuitBreakerStore) Get(ctx context.Context, key string) (Token, bool, error) {
	if s.cb == nil {
		return s.store.Get(ctx, key)
	}

	res, err := circuitbreaker.Execute(ctx, s.cb, func() (storedToken, error) {
		token, found, err := s.store.Get(ctx, key)
		return storedToken{token: token, found: found}, err
	})
	if err != nil {
		return Token{}, false, s.wrap(err)
	}
	return res.token, res.found, nil
}

func (s *CircuitBreakerStore) Set(ctx context.Context, key string, token Token, ttl time.Duration) error {
	if s.cb == nil {
		return s.store.Set(ctx, key, token, ttl)
	}

	_, err := circuitbreaker.Execute(ctx, s.cb, func() (struct{}, error) {
		return struct{}{}, s.store.Set(ctx, key, token, ttl)
	})
	return s.wrap(err)
}

func (s *CircuitBreakerStore) Delete(ctx context.Context, key string) error {
	if s.cb == nil {
		return s.store.Delete(ctx, key)
	}

	_, err := circuitbreaker.Execute(ctx, s.cb, func() (struct{}, error) {
		return struct{}{}, s.store.Delete(ctx, key)
	})
	return s.wrap(err)
}

func (s *CircuitBreakerStore) State() string {
	if s.cb == nil {
		return "disabled"
	}
	return s.cb.State().String()
}

func (s *CircuitBreakerStore) wrap(err error) error {
	if err != nil && s.cb.IsOpen() {
		return fmt.Errorf("circuit breaker is open for %s: %w", storeBreakerName, err)
	}
	return err
}
