// Package app wires the cart service together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/shopcart/internal/config"
	"github.com/utafrali/shopcart/internal/engine"
	"github.com/utafrali/shopcart/internal/event"
	handler "github.com/utafrali/shopcart/internal/handler/http"
	"github.com/utafrali/shopcart/internal/inventory"
	"github.com/utafrali/shopcart/internal/notify"
	"github.com/utafrali/shopcart/internal/session"
	"github.com/utafrali/shopcart/internal/store"
	pgstore "github.com/utafrali/shopcart/internal/store/postgres"
	redisstore "github.com/utafrali/shopcart/internal/store/redis"
	"github.com/utafrali/shopcart/migrations"
	"github.com/utafrali/shopcart/pkg/database"
	"github.com/utafrali/shopcart/pkg/health"
	"github.com/utafrali/shopcart/pkg/httpclient"
	pkgkafka "github.com/utafrali/shopcart/pkg/kafka"
	"github.com/utafrali/shopcart/pkg/tracing"
)

const serviceName = "cart-service"

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          store.Store
	producer       *pkgkafka.Producer
	kafkaNotifier  *notify.Kafka
	registry       *session.Registry
	httpServer     *http.Server
	tracerShutdown func(context.Context) error

	// followers tracks the cart event goroutines so shutdown can wait for them.
	followers sync.WaitGroup
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Tracing.
	tcfg := tracing.DefaultConfig(serviceName)
	tcfg.Environment = cfg.Environment
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	tcfg.Enabled = cfg.OTELEnabled
	tracerShutdown, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Persistent store.
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.store = st

	// Inventory client: retries inside, circuit breaker outside.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.InventoryTimeout
	httpCfg.MaxRetries = cfg.InventoryRetries
	cbCfg := httpclient.CircuitBreakerConfig{
		Name:             inventory.ServiceName,
		HalfOpenRequests: cfg.CBMaxRequests,
		OpenTimeout:      cfg.CBTimeout,
		Window:           cfg.CBWindow,
		MinRequests:      cfg.CBMinRequests,
		FailureRatio:     cfg.CBFailureRatio,
	}
	doer := httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg), cbCfg, logger).
		WithFallback(inventory.CircuitOpenFallback)
	inv := inventory.NewClient(doer, cfg.InventoryURL, logger)

	// Notifications and cart events.
	notifiers := notify.Multi{notify.NewLog(logger), notify.ContextInbox{}}
	var events *event.Producer
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.kafkaNotifier = notify.NewKafka(a.producer, logger, 5*time.Second)
		notifiers = append(notifiers, a.kafkaNotifier)
		events = event.NewProducer(a.producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithNotifier(notifiers),
		engine.WithInventoryTimeout(cfg.InventoryTimeout),
		engine.WithStoreTimeout(cfg.StoreTimeout),
	}
	if cfg.SerializeProducts {
		opts = append(opts, engine.WithProductSerialization())
	}

	factory := func(ctx context.Context, sessionID string) (*engine.Engine, error) {
		eng, err := engine.New(ctx, engine.StoreKey(sessionID), inv, st, opts...)
		if err != nil {
			return nil, err
		}
		if events != nil {
			a.followers.Add(1)
			go func() {
				defer a.followers.Done()
				events.Follow(context.Background(), sessionID, eng)
			}()
		}
		return eng, nil
	}
	a.registry = session.NewRegistry(factory, cfg.SessionIdleTTL, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("store", st.Ping)
	if a.producer != nil {
		healthHandler.Register("kafka", a.producer.Ping)
	}

	router := handler.NewRouter(a.registry, healthHandler, handler.RouterConfig{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: /api/v1/cart/events streams. Other routes carry
		// chi's Timeout middleware.
		IdleTimeout: 60 * time.Second,
	}

	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case store.BackendMemory:
		logger.Warn("using in-memory cart store; carts are lost on restart")
		return store.NewMemory(), nil

	case store.BackendRedis:
		rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		return redisstore.New(rdb, cfg.RedisTTL), nil

	case store.BackendPostgres:
		pgCfg := database.DefaultPostgresConfig(cfg.PostgresDSN)
		pgCfg.MaxConns = cfg.DBMaxConns
		pgCfg.MinConns = cfg.DBMinConns
		pool, err := database.NewPostgresPool(ctx, pgCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		database.SlowQueryThreshold = time.Duration(cfg.SlowQueryThresholdMs) * time.Millisecond

		collector := database.NewPoolStatsCollector(pool, serviceName)
		if err := prometheus.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				logger.Warn("pool stats collector not registered", slog.String("error", err.Error()))
			}
		}
		return pgstore.New(pool, logger, pool.Close), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go a.registry.Run(ctx, a.cfg.SessionSweepInterval)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("store", a.cfg.StoreBackend),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Event streams never finish on their own; closing the engines below ends them.
	a.httpServer.RegisterOnShutdown(a.registry.Close)
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	// Engines close their watch channels, which ends every follower.
	a.registry.Close()
	a.followers.Wait()

	if a.kafkaNotifier != nil {
		if err := a.kafkaNotifier.Close(shutdownCtx); err != nil {
			a.logger.Error("kafka notifier close error", slog.String("error", err.Error()))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.store.Close(); err != nil {
		a.logger.Error("store close error", slog.String("error", err.Error()))
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
