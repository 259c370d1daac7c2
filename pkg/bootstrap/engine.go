package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"leadcolor/internal/amocrm"
	"leadcolor/internal/broker"
	"leadcolor/internal/coloring"
	"leadcolor/internal/conditions"
	"leadcolor/internal/config_handler"
	"leadcolor/internal/constants"
	"leadcolor/internal/fields"
	"leadcolor/internal/history"
	"leadcolor/internal/management"
	"leadcolor/internal/tokens"
	"leadcolor/pkg/health"
	"leadcolor/pkg/metrics"
	"leadcolor/pkg/migrations"
	"leadcolor/pkg/models"
)

// Engine holds the coloring components shared by the services: the rule
// cache, the CRM-backed resolver and the optional pass history.
type Engine struct {
	Rules   *coloring.RuleCache
	Service *coloring.Service
	Fields  *fields.Service
	RPC     *broker.RPCClient
	// History is nil unless enabled and MongoDB is reachable.
	History *history.MongoRecorder

	redis *redis.Client
	mongo *mongo.Client
}

// InitEngine wires the coloring stack on top of the broker. InitBroker must
// have run first. Token store and history failures degrade the engine rather
// than failing startup.
func (b *Base) InitEngine(ctx context.Context, db *sql.DB, dc *DatabaseConnector, serviceName string) (*Engine, error) {
	if b.Producer == nil {
		return nil, fmt.Errorf("broker is not initialized")
	}

	cfg := b.Config
	e := &Engine{}

	replyTopic := cfg.Broker.Kafka.ReplyTopic
	if replyTopic == "" {
		replyTopic = constants.DefaultReplyTopic
	}
	e.RPC = broker.NewRPCClient(b.Producer, replyTopic, serviceName, cfg.Tokens.RPCTimeout, b.Logger)

	store, err := e.tokenStore(ctx, dc, b)
	if err != nil {
		return nil, err
	}
	cache := tokens.NewCache(tokens.NewRPCFetcher(e.RPC, cfg.Tokens, b.Logger), store, cfg.Tokens.TTL(), b.Logger)
	provider := cache.ForClient(cfg.Tokens.ClientID)

	crm := amocrm.NewClient(amocrm.ConfigFrom(cfg.AmoCRM, cfg.CircuitBreaker), b.Logger)

	e.Rules = coloring.NewRuleCache(coloring.NewRepository(db, b.Logger), cfg.Coloring.RuleCacheTTL(), cfg.Coloring.DefaultTimezone, b.Logger)

	var opts []coloring.ServiceOption
	if cfg.History.Enabled {
		e.History = e.historyRecorder(ctx, dc, b)
		if e.History != nil {
			opts = append(opts, coloring.WithPassRecorder(e.History))
		}
	}

	evaluator := conditions.NewEvaluator()
	resolver := coloring.NewResolver(evaluator, cfg.Coloring.Workers, b.Logger)
	e.Service = coloring.NewService(e.Rules, provider, crm, resolver, evaluator, b.Logger, opts...)
	e.Fields = fields.NewService(provider, crm, b.Logger)

	metrics.RegisterColoringMetrics()
	metrics.RegisterCRMMetrics()
	return e, nil
}

func (e *Engine) tokenStore(ctx context.Context, dc *DatabaseConnector, b *Base) (tokens.Store, error) {
	cfg := b.Config
	switch cfg.Tokens.Store {
	case "memory":
		return tokens.NewMemoryStore(time.Now), nil
	case "redis", "":
		client, err := dc.InitRedis(ctx)
		if err != nil {
			b.Logger.WarnwCtx(ctx, "Redis unavailable, caching tokens in memory", "error", err)
			return tokens.NewMemoryStore(time.Now), nil
		}
		e.redis = client
		var store tokens.Store = tokens.NewRedisStore(client)
		if cfg.CircuitBreaker.Enabled {
			store = tokens.NewCircuitBreakerStore(store, cfg.CircuitBreaker)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown token store: %s", cfg.Tokens.Store)
	}
}

func (e *Engine) historyRecorder(ctx context.Context, dc *DatabaseConnector, b *Base) *history.MongoRecorder {
	client, err := dc.InitMongoDB(ctx)
	if err != nil || client == nil {
		b.Logger.WarnwCtx(ctx, "History disabled, MongoDB unavailable", "error", err)
		return nil
	}
	e.mongo = client

	cfg := b.Config.History
	db := client.Database(b.Config.Database.MongoDB.Database)
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	if err := migrations.EnsureHistoryCollection(ctx, db, cfg.Collection, retention); err != nil {
		b.Logger.WarnwCtx(ctx, "Failed to ensure history indexes", "error", err)
	}
	return history.NewMongoRecorder(db, cfg.Collection, b.Logger)
}

// RegisterHealth adds the engine's stores to registry. History is optional.
func (e *Engine) RegisterHealth(registry *health.CheckerRegistry) {
	if e.redis != nil {
		registry.Register(health.NewRedisChecker(e.redis))
	}
	if e.mongo != nil {
		registry.RegisterOptional(health.NewMongoDBChecker(e.mongo))
	}
}

// Start runs the cache janitor until ctx is done.
func (e *Engine) Start(ctx context.Context, janitorInterval time.Duration) {
	e.Rules.StartJanitor(ctx, janitorInterval)
}

func (e *Engine) Close(ctx context.Context, dc *DatabaseConnector) []error {
	return dc.ShutdownDatabases(ctx, e.redis, nil, e.mongo)
}

// RuleService builds the rule management service with the audit trail and
// rule change events.
func (b *Base) RuleService(db *sql.DB, serviceName string) management.Service {
	topic := b.Config.Broker.Kafka.RuleEventsTopic
	if topic == "" {
		topic = constants.DefaultRuleEventsTopic
	}

	opts := []management.ServiceOption{management.WithAuditLog(management.NewAuditLog(db))}
	if b.Producer != nil {
		opts = append(opts, management.WithEvents(management.NewRuleEventProducer(b.Producer, topic, serviceName)))
	}

	metrics.RegisterManagementMetrics()
	return management.NewService(management.NewRepository(db, b.Logger), b.Logger, opts...)
}

// Subscribe consumes the rule events and RPC replies on the instance's own
// broadcast group until ctx is done. Every instance must see both streams:
// events to drop its cached rules, replies to complete its own calls.
func (e *Engine) Subscribe(ctx context.Context, b *Base, g *errgroup.Group) {
	cfg := b.Config.Broker.Kafka
	eventsTopic := cfg.RuleEventsTopic
	if eventsTopic == "" {
		eventsTopic = constants.DefaultRuleEventsTopic
	}
	replyTopic := cfg.ReplyTopic
	if replyTopic == "" {
		replyTopic = constants.DefaultReplyTopic
	}

	events := config_handler.NewHandlerWithInvalidator(models.EventTypeColoringRulesChanged, e.Rules, b.Logger)
	g.Go(func() error {
		return b.Broadcast.Consume(ctx, eventsTopic, events.HandleRulesChangedEvent)
	})
	g.Go(func() error {
		return b.Broadcast.Consume(ctx, replyTopic, e.RPC.HandleReply)
	})
}
