// Package ratelimit throttles the management API per tenant.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"leadcolor/internal/config"
	pkgerrors "leadcolor/pkg/errors"
	"leadcolor/pkg/metrics"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per key. Buckets idle for longer than
// maxAge are dropped by Run.
type Limiter struct {
	rps    float64
	burst  int
	maxAge time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*entry
}

func NewLimiter(rps float64, burst int, maxAge time.Duration) *Limiter {
	return &Limiter{
		rps:     rps,
		burst:   burst,
		maxAge:  maxAge,
		now:     time.Now,
		buckets: make(map[string]*entry),
	}
}

func FromConfig(cfg config.RateLimitConfig) *Limiter {
	return NewLimiter(cfg.RPS, cfg.Burst, time.Duration(cfg.MaxAge)*time.Second)
}

// Allow takes a token for key and reports the tokens left.
func (l *Limiter) Allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.buckets[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.buckets[key] = e
	}
	e.lastSeen = now

	allowed := e.limiter.AllowN(now, 1)
	remaining := int(e.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining
}

// Cleanup drops idle buckets and returns how many are left.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, e := range l.buckets {
		if now.Sub(e.lastSeen) > l.maxAge {
			delete(l.buckets, key)
		}
	}
	return len(l.buckets)
}

// Run cleans up every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

// Middleware limits requests per subdomain path parameter, falling back to the
// client IP on routes without one.
func (l *Limiter) Middleware() gin.HandlerFunc {
	limit := strconv.Itoa(int(l.rps))
	return func(c *gin.Context) {
		key := c.Param("subdomain")
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		allowed, remaining := l.Allow(key)
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("Retry-After", "1")
			err := pkgerrors.ErrRateLimited.WithMessage("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, pkgerrors.ToErrorResponse(err))
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		c.Next()
	}
}
