package health

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const checkTimeout = 5 * time.Second

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func NewCheckerFunc(name string, fn func(ctx context.Context) error) CheckerFunc {
	return CheckerFunc{name: name, fn: fn}
}

func (c CheckerFunc) Name() string { return c.name }
func (c CheckerFunc) Check(ctx context.Context) error { return c.fn(ctx) }

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Optional  bool      `json:"optional,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type registered struct {
	checker  Checker
	optional bool
}

// CheckerRegistry runs all checks concurrently. A failing required check
// makes the service unhealthy; a failing optional one only degrades it.
type CheckerRegistry struct {
	mu       sync.RWMutex
	checkers []registered
	now      func() time.Time
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{now: time.Now}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.add(checker, false)
}

// RegisterOptional adds a dependency the service can run without, such as
// the history store.
func (r *CheckerRegistry) RegisterOptional(checker Checker) {
	r.add(checker, true)
}

func (r *CheckerRegistry) add(checker Checker, optional bool) {
	r.mu.Lock()
	r.checkers = append(r.checkers, registered{checker: checker, optional: optional})
	r.mu.Unlock()
}

func (r *CheckerRegistry) Check(ctx context.Context) Health {
	r.mu.RLock()
	checkers := append([]registered(nil), r.checkers...)
	r.mu.RUnlock()

	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func(i int, c registered) {
			defer wg.Done()
			results[i] = r.run(ctx, c)
		}(i, c)
	}
	wg.Wait()

	overall := StatusHealthy
	checks := make(map[string]CheckResult, len(checkers))
	for i, c := range checkers {
		res := results[i]
		checks[c.checker.Name()] = res
		if res.Status == StatusHealthy {
			continue
		}
		if c.optional {
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		} else {
			overall = StatusUnhealthy
		}
	}

	return Health{
		Status:    overall,
		Timestamp: r.now(),
		Checks:    checks,
	}
}

func (r *CheckerRegistry) run(ctx context.Context, c registered) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	result := CheckResult{Status: StatusHealthy, Optional: c.optional}
	if err := c.checker.Check(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	result.Timestamp = r.now()
	return result
}

type PostgreSQLChecker struct {
	db *sql.DB
}

func NewPostgreSQLChecker(db *sql.DB) *PostgreSQLChecker {
	return &PostgreSQLChecker{db: db}
}

func (c *PostgreSQLChecker) Name() string {
	return "postgresql"
}

func (c *PostgreSQLChecker) Check(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgresql ping failed: %w", err)
	}
	return nil
}

type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string {
	return "redis"
}

func (c *RedisChecker) Check(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

type MongoDBChecker struct {
	client *mongo.Client
}

func NewMongoDBChecker(client *mongo.Client) *MongoDBChecker {
	return &MongoDBChecker{client: client}
}

func (c *MongoDBChecker) Name() string {
	return "mongodb"
}

func (c *MongoDBChecker) Check(ctx context.Context) error {
	if err := c.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}
