package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"leadcolor/internal/broker"
	"leadcolor/internal/config"
	"leadcolor/internal/constants"
	"leadcolor/internal/logger"
	"leadcolor/internal/rpcapi"
	"leadcolor/pkg/bootstrap"
	"leadcolor/pkg/health"
	"leadcolor/pkg/logging"
	"leadcolor/pkg/metrics"
	"leadcolor/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	instanceID     string
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	engine         *bootstrap.Engine
	routes         map[string]broker.HandlerFunc
	health         *health.CheckerRegistry
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		instanceID:  uuid.NewString()[:8],
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		health:      health.NewCheckerRegistry(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.InitBroker(serviceName, a.instanceID); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	engine, err := a.InitEngine(ctx, a.db, a.dbConnector, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize coloring engine: %w", err)
	}
	a.engine = engine

	a.health.Register(health.NewPostgreSQLChecker(a.db))
	a.engine.RegisterHealth(a.health)

	rpcServer := broker.NewRPCServer(a.Producer, serviceName, broker.ConsumerPolicy(a.Config.Broker.Kafka.Retry), a.Logger)
	handlers := rpcapi.NewHandlers(
		a.RuleService(a.db, serviceName),
		a.engine.Service,
		a.engine.Fields,
		serviceName,
		a.Logger,
		rpcapi.WithHealth(a.health),
		rpcapi.WithMaxLeads(a.Config.AmoCRM.MaxLeadsPerRequest),
	)
	a.routes = handlers.Routes(rpcServer)

	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.Config.Database.RunMigrations {
		if err := bootstrap.RunMigrations(db, a.Logger); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := a.health.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(h)
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      mux,
		ReadTimeout:  a.Config.Server.ReadTimeout(),
		WriteTimeout: a.Config.Server.WriteTimeout(),
	}
}

// Run serves every request queue on the shared consumer group until ctx is
// done.
func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	runCtx := logging.WithServiceName(gCtx, serviceName)

	g.Go(func() error {
		a.Logger.InfowCtx(runCtx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	a.engine.Start(gCtx, a.Config.Coloring.JanitorInterval())
	a.engine.Subscribe(runCtx, a.Base, g)

	for queue, handler := range a.routes {
		g.Go(func() error {
			return a.Consumer.Consume(runCtx, queue, handler)
		})
	}

	a.Logger.InfowCtx(runCtx, "Serving queues", "queues", len(a.routes), "instance", a.instanceID)
	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}
		if a.engine != nil {
			errs = append(errs, a.engine.Close(ctx, a.dbConnector)...)
		}
		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, nil, a.db, nil)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
