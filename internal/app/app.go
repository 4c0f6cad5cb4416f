package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/techstore/internal/config"
	"github.com/utafrali/techstore/internal/event"
	handler "github.com/utafrali/techstore/internal/handler/http"
	"github.com/utafrali/techstore/internal/repository"
	"github.com/utafrali/techstore/internal/repository/memory"
	"github.com/utafrali/techstore/internal/repository/postgres"
	rediscache "github.com/utafrali/techstore/internal/repository/redis"
	"github.com/utafrali/techstore/internal/service"
	"github.com/utafrali/techstore/migrations"
	"github.com/utafrali/techstore/pkg/database"
	"github.com/utafrali/techstore/pkg/health"
	pkgkafka "github.com/utafrali/techstore/pkg/kafka"
	"github.com/utafrali/techstore/pkg/tracing"
)

const (
	serviceName    = "techstore"
	serviceVersion = "0.1.0"

	idempotencyTTL = 24 * time.Hour
)

// Stores bundles one storage backend behind the repository contracts.
type Stores struct {
	Categories repository.CategoryRepository
	Products   repository.ProductRepository
	Orders     repository.OrderRepository
	Reports    repository.ReportRepository
	Tx         repository.Transactor
}

// App wires together all dependencies and runs the techstore server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	orderConfirmed *pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown tracing.Shutdown

	// Services are exposed for cmd/seed.
	Catalog *service.CatalogService
	Orders  *service.OrderService
	Reports *service.ReportService
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.Init(initCtx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		Endpoint:       cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	stores, err := a.openStores(initCtx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	// Report cache. Reports are served uncached when Redis is unreachable.
	var cache service.ReportCache
	if cfg.RedisURL != "" {
		client, err := database.NewRedisClient(initCtx, database.RedisConfig{
			URL:          cfg.RedisURL,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		})
		if err != nil {
			logger.Warn("redis unavailable, serving reports uncached", slog.String("error", err.Error()))
		} else {
			a.redis = client
			cache = rediscache.NewReportCache(client, cfg.ReportCacheTTL)
			healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
				return database.PingRedis(ctx, client)
			})
			logger.Info("report cache enabled", slog.Duration("ttl", cfg.ReportCacheTTL))
		}
	}

	// Kafka producer behind the circuit breaker. A nil publisher disables events.
	var publisher event.Publisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			WriteTimeout: 5 * time.Second,
		}, logger)
		if err := pingKafkaWithRetry(initCtx, a.producer, logger); err != nil {
			logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		}
		publisher = a.producer
		producer := a.producer
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
	}
	eventProducer := event.NewProducer(publisher, event.DefaultBreakerConfig(), logger)

	// Build the dependency graph.
	a.Catalog = service.NewCatalogService(stores.Categories, stores.Products, eventProducer, logger)
	a.Reports = service.NewReportService(stores.Reports, cache, logger)
	a.Orders = service.NewOrderService(stores.Products, stores.Orders, stores.Tx, a.Reports, eventProducer, logger)

	// order.confirmed also drops cached reports, covering a failed direct
	// invalidation. Redeliveries are filtered by event ID.
	if cfg.KafkaEnabled {
		var idempotency pkgkafka.IdempotencyStore
		if a.redis != nil {
			idempotency = pkgkafka.NewRedisIdempotencyStore(a.redis, "techstore:events:seen:", idempotencyTTL)
		} else {
			idempotency = pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
		}
		consumer := event.NewConsumer(a.Reports, logger)
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		a.orderConfirmed = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:    cfg.KafkaBrokers,
			GroupID:    event.ConsumerGroupReports,
			Topic:      event.TopicOrderConfirmed,
			MaxRetries: 3,
			RetryWait:  time.Second,
		}, pkgkafka.IdempotentHandler(idempotency, consumer.HandleOrderConfirmed, logger), a.dlq, logger)
	}

	// HTTP router.
	router := handler.NewRouter(handler.Services{
		Catalog: a.Catalog,
		Orders:  a.Orders,
		Reports: a.Reports,
	}, healthHandler, handler.RouterConfig{
		Registerer:      prometheus.DefaultRegisterer,
		Gatherer:        prometheus.DefaultGatherer,
		PprofAllowedIPs: cfg.PprofAllowedIPs,
		ReportMaxAge:    cfg.ReportCacheTTL,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// openStores connects the configured storage backend.
func (a *App) openStores(ctx context.Context, healthHandler *health.Handler) (*Stores, error) {
	if a.cfg.StorageDriver == config.StorageMemory {
		a.logger.Warn("using in-memory storage, data is lost on restart")
		s := memory.New()
		return &Stores{
			Categories: s.Categories(),
			Products:   s.Products(),
			Orders:     s.Orders(),
			Reports:    s.Reports(),
			Tx:         s,
		}, nil
	}

	pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
		URL:             a.cfg.DatabaseURL,
		MaxConns:        a.cfg.DBMaxConns,
		MinConns:        a.cfg.DBMinConns,
		MaxConnLifetime: time.Duration(a.cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(a.cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL")

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	// Configure slow query logging.
	if a.cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(a.cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}

	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	return &Stores{
		Categories: postgres.NewCategoryRepository(pool),
		Products:   postgres.NewProductRepository(pool),
		Orders:     postgres.NewOrderRepository(pool),
		Reports:    postgres.NewReportRepository(pool),
		Tx:         postgres.NewTransactor(pool, a.cfg.DBLockTimeout),
	}, nil
}

// Run starts the HTTP server and the Kafka consumer, then blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("storage", a.cfg.StorageDriver),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Start Kafka consumer.
	if a.orderConfirmed != nil {
		go func() {
			if err := a.orderConfirmed.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("order confirmed consumer: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumer, DLQ and producer
// 4. Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	if a.httpServer != nil {
		httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer httpCancel()
		if err := a.httpServer.Shutdown(httpCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.closeResources()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() []error {
	var errs []error
	if a.orderConfirmed != nil {
		if err := a.orderConfirmed.Close(); err != nil {
			a.logger.Error("order confirmed consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errs
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s with ±25% jitter between them).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	const attempts = 3
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if lastErr = producer.Ping(ctx); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		base := time.Duration(1<<uint(attempt)) * time.Second
		jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
		wait := base + jitter
		logger.Warn("kafka producer ping failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", wait),
			slog.String("error", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("kafka producer ping failed after %d attempts: %w", attempts, lastErr)
}
