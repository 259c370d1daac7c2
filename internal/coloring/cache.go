package coloring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"leadcolor/internal/constants"
	"leadcolor/internal/logger"
	"leadcolor/pkg/metrics"
)

// Snapshot is an immutable view of one subdomain's active rules.
type Snapshot struct {
	Subdomain string
	Rules     []Rule
	Location  *time.Location
	LoadedAt  time.Time
}

// RuleCache keeps per-subdomain rule snapshots for a TTL. Readers get a copy
// of the rule slice, so a snapshot never changes once published.
type RuleCache struct {
	repo       Repository
	ttl        time.Duration
	defaultLoc *time.Location
	now        func() time.Time
	logger     logger.Logger

	mu      sync.RWMutex
	entries map[string]*Snapshot
	// generations and epoch are bumped on invalidation; loads that started
	// under an older value are returned to their caller but never stored.
	generations map[string]uint64
	epoch       uint64
	group       singleflight.Group
}

type CacheOption func(*RuleCache)

func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *RuleCache) {
		c.now = now
	}
}

func NewRuleCache(repo Repository, ttl time.Duration, defaultTimezone string, log logger.Logger, opts ...CacheOption) *RuleCache {
	if ttl <= 0 {
		ttl = constants.DefaultRuleTTL
	}

	c := &RuleCache{
		repo:        repo,
		ttl:         ttl,
		now:         time.Now,
		logger:      log,
		entries:     make(map[string]*Snapshot),
		generations: make(map[string]uint64),
	}
	c.defaultLoc = c.loadLocation(defaultTimezone, time.UTC)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached snapshot for subdomain, loading it on a miss.
// Concurrent misses for the same subdomain share one load.
func (c *RuleCache) Get(ctx context.Context, subdomain string) (Snapshot, error) {
	c.mu.RLock()
	snap, ok := c.entries[subdomain]
	gen, epoch := c.generations[subdomain], c.epoch
	c.mu.RUnlock()

	if ok && c.fresh(snap) {
		metrics.IncRuleCache("hit")
		return snap.copy(), nil
	}
	if ok {
		metrics.IncRuleCache("expired")
	} else {
		metrics.IncRuleCache("miss")
	}

	v, err, _ := c.group.Do(subdomain, func() (interface{}, error) {
		loaded, err := c.load(ctx, subdomain)
		if err != nil {
			return nil, err
		}
		c.store(loaded, gen, epoch)
		return loaded, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(*Snapshot).copy(), nil
}

func (c *RuleCache) Invalidate(ctx context.Context, subdomain string) {
	c.mu.Lock()
	delete(c.entries, subdomain)
	c.generations[subdomain]++
	size := len(c.entries)
	c.mu.Unlock()

	c.group.Forget(subdomain)
	metrics.SetRuleCacheSubdomains(size)
	c.logger.DebugwCtx(ctx, "Rule cache invalidated", "subdomain", subdomain)
}

func (c *RuleCache) InvalidateAll(ctx context.Context) {
	c.mu.Lock()
	subdomains := make([]string, 0, len(c.entries))
	for subdomain := range c.entries {
		subdomains = append(subdomains, subdomain)
	}
	c.entries = make(map[string]*Snapshot)
	c.epoch++
	c.mu.Unlock()

	for _, subdomain := range subdomains {
		c.group.Forget(subdomain)
	}
	metrics.SetRuleCacheSubdomains(0)
	c.logger.InfowCtx(ctx, "Rule cache cleared", "subdomains", len(subdomains))
}

// Evict drops expired snapshots and returns how many were removed.
func (c *RuleCache) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for subdomain, snap := range c.entries {
		if !c.fresh(snap) {
			delete(c.entries, subdomain)
			removed++
		}
	}
	metrics.SetRuleCacheSubdomains(len(c.entries))
	return removed
}

func (c *RuleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartJanitor evicts expired snapshots every interval until ctx is done.
func (c *RuleCache) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.Evict(); removed > 0 {
					c.logger.Debugw("Evicted expired rule snapshots", "count", removed)
				}
			}
		}
	}()
}

func (c *RuleCache) fresh(snap *Snapshot) bool {
	return c.now().Sub(snap.LoadedAt) < c.ttl
}

func (c *RuleCache) load(ctx context.Context, subdomain string) (*Snapshot, error) {
	rules, err := c.repo.ListActive(ctx, subdomain)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for %s: %w", subdomain, err)
	}

	loc := c.defaultLoc
	if len(rules) > 0 {
		tz, err := c.repo.Timezone(ctx, subdomain)
		if err != nil {
			c.logger.WarnwCtx(ctx, "Failed to read subdomain timezone, using default",
				"subdomain", subdomain,
				"error", err,
			)
		} else {
			loc = c.loadLocation(tz, c.defaultLoc)
		}
	}

	return &Snapshot{
		Subdomain: subdomain,
		Rules:     SortRules(rules),
		Location:  loc,
		LoadedAt:  c.now(),
	}, nil
}

func (c *RuleCache) store(snap *Snapshot, gen, epoch uint64) {
	c.mu.Lock()
	if c.generations[snap.Subdomain] != gen || c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.entries[snap.Subdomain] = snap
	size := len(c.entries)
	c.mu.Unlock()

	metrics.SetRuleCacheSubdomains(size)
}

func (c *RuleCache) loadLocation(name string, fallback *time.Location) *time.Location {
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		c.logger.Warnw("Unknown timezone, using fallback", "timezone", name, "error", err)
		return fallback
	}
	return loc
}

func (s *Snapshot) copy() Snapshot {
	out := *s
	out.Rules = make([]Rule, len(s.Rules))
	copy(out.Rules, s.Rules)
	return out
}
