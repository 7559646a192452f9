// Package app wires together all gateway dependencies and runs the server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/youssefhesham2000/Catalog-Service/internal/cache"
	"github.com/youssefhesham2000/Catalog-Service/internal/config"
	"github.com/youssefhesham2000/Catalog-Service/internal/engine"
	"github.com/youssefhesham2000/Catalog-Service/internal/engine/memory"
	osengine "github.com/youssefhesham2000/Catalog-Service/internal/engine/opensearch"
	"github.com/youssefhesham2000/Catalog-Service/internal/event"
	handler "github.com/youssefhesham2000/Catalog-Service/internal/handler/http"
	"github.com/youssefhesham2000/Catalog-Service/internal/repository"
	pgrepo "github.com/youssefhesham2000/Catalog-Service/internal/repository/postgres"
	"github.com/youssefhesham2000/Catalog-Service/internal/search"
	"github.com/youssefhesham2000/Catalog-Service/internal/throttle"
	"github.com/youssefhesham2000/Catalog-Service/pkg/breaker"
	pkgconfig "github.com/youssefhesham2000/Catalog-Service/pkg/config"
	"github.com/youssefhesham2000/Catalog-Service/pkg/database"
	"github.com/youssefhesham2000/Catalog-Service/pkg/health"
	pkgkafka "github.com/youssefhesham2000/Catalog-Service/pkg/kafka"
	"github.com/youssefhesham2000/Catalog-Service/pkg/middleware"
	"github.com/youssefhesham2000/Catalog-Service/pkg/tracing"
)

// App wires together all dependencies and runs the search gateway.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	memLimiter     *throttle.MemoryLimiter
	consumers      []*pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Postgres and Redis are soft dependencies: if either is unreachable the
// gateway starts degraded (no variant options, no cache) instead of failing.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}

	// Tracing (no-op provider unless enabled).
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "search-gateway",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	app.tracerShutdown = tracerShutdown

	breakerCfg := func(name string) breaker.Config {
		return breaker.Config{
			Name:         name,
			MaxRequests:  1,
			Interval:     cfg.CircuitWindow,
			Timeout:      cfg.CircuitResetTimeout,
			FailureRatio: float64(cfg.CircuitErrorThresholdPct) / 100,
			MinRequests:  uint32(cfg.CircuitVolumeThreshold),
		}
	}

	healthHandler := health.NewHandler()

	// Search engine.
	var eng engine.SearchEngine
	switch cfg.SearchEngine {
	case config.EngineOpenSearch:
		osEng, err := osengine.New(osengine.Config{
			Node:          cfg.OpenSearchNode,
			Index:         cfg.OpenSearchIndex,
			Timeout:       cfg.OpenSearchTimeout,
			BoostFactor:   cfg.SalesBoostFactor,
			BoostModifier: cfg.SalesBoostModifier,
			Breaker:       breakerCfg("engine-search"),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init opensearch engine: %w", err)
		}
		eng = osEng
		healthHandler.Register("opensearch", osEng.Ping)
		logger.Info("opensearch engine initialized",
			slog.String("node", cfg.OpenSearchNode),
			slog.String("index", cfg.OpenSearchIndex),
		)
	default:
		memEng := memory.New()
		eng = memEng
		healthHandler.Register("opensearch", memEng.Ping)
		logger.Info("in-memory search engine initialized")
	}

	// Postgres pool for variant option enrichment.
	var variantRepo repository.VariantOptionRepository
	pgCfg := database.DefaultPostgresConfig(cfg.DatabaseURL)
	pgCfg.ConnectTimeout = cfg.ConnectTimeout
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		logger.Warn("postgres unavailable, variant options disabled",
			slog.String("url", pkgconfig.RedactURL(cfg.DatabaseURL)),
			slog.String("error", err.Error()),
		)
		// Keep readiness honest: the instance stays not-ready until a
		// restart picks the database back up.
		initErr := err
		healthHandler.Register("postgres", func(ctx context.Context) error {
			return fmt.Errorf("postgres init failed: %w", initErr)
		})
	} else {
		app.pool = pool
		repo := pgrepo.NewVariantOptionRepository(pool, cfg.DatabaseTimeout, breakerCfg("catalog-variants"), logger)
		variantRepo = repo
		healthHandler.Register("postgres", repo.Ping)
		database.RegisterPoolMetrics(pool, "search-gateway")
		logger.Info("postgres pool initialized",
			slog.String("url", pkgconfig.RedactURL(cfg.DatabaseURL)),
		)
	}

	// Redis backs both the response cache and the distributed throttle.
	redisClient := database.NewRedisClient(database.RedisConfig{
		Host:        cfg.RedisHost,
		Port:        cfg.RedisPort,
		Password:    cfg.RedisPassword,
		DialTimeout: cfg.ConnectTimeout,
	})
	app.redisClient = redisClient

	responseCache := cache.NewRedisCache(redisClient, cfg.CacheStaleGrace, breakerCfg("cache"), logger)
	healthHandler.Register("redis", responseCache.Ping)

	var limiter throttle.Limiter
	throttleCfg := throttle.Config{Limit: cfg.ThrottleLimit, Window: cfg.ThrottleTTL}
	switch cfg.ThrottleStore {
	case config.ThrottleStoreRedis:
		limiter = throttle.NewRedisLimiter(redisClient, throttleCfg)
	default:
		memLimiter := throttle.NewMemoryLimiter(throttleCfg)
		app.memLimiter = memLimiter
		limiter = memLimiter
	}

	// Service layer.
	searchService := search.NewService(eng, variantRepo, responseCache, search.Config{
		SearchTTL: cfg.CacheTTLSearch,
		FacetsTTL: cfg.CacheTTLFacets,
	}, logger)

	// Kafka consumers for cache invalidation events.
	if cfg.KafkaEnabled {
		eventConsumer := event.NewConsumer(responseCache, eng, logger)

		topics := []string{
			event.TopicProductUpdated,
			event.TopicProductDeleted,
		}
		for _, topic := range topics {
			c := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
				Brokers:  cfg.KafkaBrokers,
				GroupID:  cfg.KafkaGroupID,
				Topic:    topic,
				MinBytes: 1,
				MaxBytes: 10e6, // 10 MB
			}, eventConsumer.Handle, logger)
			app.consumers = append(app.consumers, c)
		}
		healthHandler.Register("kafka", func(ctx context.Context) error {
			return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
		})
		logger.Info("kafka consumers initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.Int("topic_count", len(topics)),
		)
	}

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	var pprofCIDRs []string
	if cfg.PprofEnabled {
		pprofCIDRs = cfg.PprofAllowedCIDRs
	}

	router := handler.NewRouter(searchService, limiter, healthHandler, handler.RouterConfig{
		APIPrefix:          cfg.APIPrefix,
		RequestTimeout:     cfg.RequestTimeout,
		CacheControlMaxAge: int(cfg.CacheTTLSearch.Seconds()),
		CORS:               corsCfg,
		PprofCIDRs:         pprofCIDRs,
	}, logger)

	app.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP server and Kafka consumers, blocking until the context
// is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.memLimiter != nil {
		a.memLimiter.Close()
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
