package tokens

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"leadcolor/internal/constants"
	"leadcolor/internal/logger"
	"leadcolor/pkg/metrics"
)

// Fetcher obtains a fresh token from the token service.
type Fetcher interface {
	Fetch(ctx context.Context, subdomain, clientID string) (Token, error)
}

// Cache serves tokens from the store and falls back to the fetcher. A store
// that fails is logged and treated as a miss.
type Cache struct {
	fetcher Fetcher
	store   Store
	ttl     time.Duration
	logger  logger.Logger
	group   singleflight.Group
}

func NewCache(fetcher Fetcher, store Store, ttl time.Duration, log logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = constants.DefaultTokenTTL
	}
	return &Cache{
		fetcher: fetcher,
		store:   store,
		ttl:     ttl,
		logger:  log,
	}
}

func (c *Cache) Get(ctx context.Context, subdomain, clientID string) (Token, error) {
	key := Key(subdomain, clientID)

	token, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		metrics.IncTokenCache("error")
		c.logger.WarnwCtx(ctx, "Token store read failed, fetching",
			"subdomain", subdomain,
			"error", err,
		)
	case ok:
		metrics.IncTokenCache("hit")
		return token, nil
	default:
		metrics.IncTokenCache("miss")
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		fetched, err := c.fetcher.Fetch(ctx, subdomain, clientID)
		if err != nil {
			return Token{}, err
		}
		if err := c.store.Set(ctx, key, fetched, c.ttl); err != nil {
			c.logger.WarnwCtx(ctx, "Token store write failed",
				"subdomain", subdomain,
				"error", err,
			)
		}
		return fetched, nil
	})
	if err != nil {
		return Token{}, err
	}
	return v.(Token), nil
}

// Invalidate drops the stored token so the next Get fetches a new one.
func (c *Cache) Invalidate(ctx context.Context, subdomain, clientID string) error {
	key := Key(subdomain, clientID)
	c.group.Forget(key)
	return c.store.Delete(ctx, key)
}

// ForClient binds the cache to one OAuth client.
func (c *Cache) ForClient(clientID string) *ClientTokens {
	return &ClientTokens{cache: c, clientID: clientID}
}

// ClientTokens hands out access tokens of a single OAuth client.
type ClientTokens struct {
	cache    *Cache
	clientID string
}

func (t *ClientTokens) AccessToken(ctx context.Context, subdomain string) (string, error) {
	token, err := t.cache.Get(ctx, subdomain, t.clientID)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func (t *ClientTokens) Invalidate(ctx context.Context, subdomain string) error {
	return t.cache.Invalidate(ctx, subdomain, t.clientID)
}
