package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	"leadcolor/internal/config"
	"leadcolor/internal/constants"
	"leadcolor/internal/logger"
	"leadcolor/internal/management"
	"leadcolor/pkg/bootstrap"
	"leadcolor/pkg/health"
	"leadcolor/pkg/logging"
	"leadcolor/pkg/metrics"
	"leadcolor/pkg/middleware"
	"leadcolor/pkg/ratelimit"
	"leadcolor/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	instanceID     string
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	engine         *bootstrap.Engine
	limiter        *ratelimit.Limiter
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		instanceID:  uuid.NewString()[:8],
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
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

	a.initRouter()

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeout(),
		WriteTimeout: a.Config.Server.WriteTimeout(),
	}
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

func (a *App) initRouter() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}
	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))

	if rl := a.Config.Management.RateLimit; rl.Enabled {
		a.limiter = ratelimit.FromConfig(rl)
		router.Use(a.limiter.Middleware())
		a.Logger.Infow("Rate limiting enabled", "rps", rl.RPS, "burst", rl.Burst)
	}

	management.NewHandler(a.RuleService(a.db, serviceName), a.Logger).RegisterRoutes(router)

	var historyReader management.HistoryReader
	if a.engine.History != nil {
		historyReader = a.engine.History
	}
	management.NewLeadsHandler(a.engine.Service, a.engine.Fields, historyReader, a.Config.AmoCRM.MaxLeadsPerRequest, a.Logger).
		RegisterLeadsRoutes(router)

	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	a.engine.RegisterHealth(healthRegistry)

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	runCtx := logging.WithServiceName(gCtx, serviceName)

	g.Go(func() error {
		a.Logger.InfowCtx(runCtx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.limiter != nil {
		cleanup := time.Duration(a.Config.Management.RateLimit.CleanupInterval) * time.Second
		if cleanup <= 0 {
			cleanup = time.Minute
		}
		go a.limiter.Run(gCtx, cleanup)
	}

	a.engine.Start(gCtx, a.Config.Coloring.JanitorInterval())
	a.engine.Subscribe(runCtx, a.Base, g)

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
