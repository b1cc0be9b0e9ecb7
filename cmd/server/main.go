package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/gledger/internal/adapter/http"
	"github.com/iho/gledger/internal/adapter/http/handler"
	"github.com/iho/gledger/internal/adapter/http/middleware"
	"github.com/iho/gledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/gledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/gledger/internal/adapter/repository/redis"
	"github.com/iho/gledger/internal/infrastructure/auth"
	"github.com/iho/gledger/internal/infrastructure/config"
	"github.com/iho/gledger/internal/infrastructure/eventpublisher"
	"github.com/iho/gledger/internal/infrastructure/idgen"
	"github.com/iho/gledger/internal/infrastructure/logger"
	"github.com/iho/gledger/internal/infrastructure/metrics"
	"github.com/iho/gledger/internal/infrastructure/postgres"
	"github.com/iho/gledger/internal/infrastructure/redis"
	"github.com/iho/gledger/internal/usecase"
)

const limiterCleanupInterval = 10 * time.Minute

func main() {
	cfg, err := config.LoadWithDotEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logg := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = logg

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
	logg.Info().Msg("server stopped")
}

// storage bundles the repositories of one storage driver.
type storage struct {
	txManager usecase.TransactionManager
	accounts  usecase.AccountRepository
	journals  usecase.JournalRepository
	ledger    usecase.LedgerRepository
	outbox    usecase.OutboxRepository
	audit     usecase.AuditRepository
	retrier   usecase.Retrier
	checks    []handler.Check
	close     func()

	// namespace scopes shared cache and idempotency keys to storage whose ledger
	// versions are not durable.
	namespace string
}

func openStorage(ctx context.Context, cfg *config.Config, logg zerolog.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		store := memory.NewStore()
		logg.Warn().Msg("using in-memory storage; data is lost on restart")
		return &storage{
			txManager: memory.NewTxManager(store),
			accounts:  memory.NewAccountRepository(store),
			journals:  memory.NewJournalRepository(store),
			ledger:    memory.NewLedgerRepository(store),
			outbox:    memory.NewOutboxRepository(store),
			audit:     memory.NewAuditRepository(store),
			close:     func() {},
			namespace: store.Epoch(),
		}, nil

	case config.StoragePostgres:
		if cfg.AutoMigrate {
			if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
				return nil, err
			}
		}

		pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL:    cfg.DatabaseURL,
			MaxConns:       cfg.DatabaseMaxConns,
			MinConns:       cfg.DatabaseMinConns,
			ConnectTimeout: cfg.DatabaseTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		logg.Info().Msg("connected to postgres")

		return &storage{
			txManager: postgresRepo.NewTxManager(pool),
			accounts:  postgresRepo.NewAccountRepository(pool),
			journals:  postgresRepo.NewJournalRepository(pool),
			ledger:    postgresRepo.NewLedgerRepository(pool),
			outbox:    postgresRepo.NewOutboxRepository(pool),
			audit:     postgresRepo.NewAuditRepository(pool),
			retrier:   postgresRepo.NewRetrier().WithLogger(logg),
			checks:    []handler.Check{{Name: "postgres", Ping: pool.Ping}},
			close:     pool.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

// sidecar holds the projection cache, idempotency store and event sink.
type sidecar struct {
	cache       usecase.Cache
	idempotency usecase.IdempotencyStore
	publisher   eventpublisher.Publisher
	checks      []handler.Check
	close       func()
}

func openSidecar(ctx context.Context, cfg *config.Config, namespace string, logg zerolog.Logger) (*sidecar, error) {
	if cfg.RedisURL == "" {
		cache, err := memory.NewCache(cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		return &sidecar{
			cache:       cache,
			idempotency: memory.NewIdempotencyStore(cache),
			publisher:   eventpublisher.NewLogPublisher(logg),
			close:       func() {},
		}, nil
	}

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logg.Info().Msg("connected to redis")
	if namespace != "" {
		logg.Warn().Str("namespace", namespace).Msg("redis keys are scoped to this process; cached projections are not shared")
	}

	return &sidecar{
		cache:       redisRepo.NewCache(client).WithNamespace(namespace),
		idempotency: redisRepo.NewIdempotencyStore(client).WithNamespace(namespace),
		publisher:   eventpublisher.NewRedisPublisher(client, eventpublisher.DefaultChannel),
		checks: []handler.Check{{Name: "redis", Ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}}},
		close: func() { _ = client.Close() },
	}, nil
}

// app is the fully wired service.
type app struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
	publisher   *eventpublisher.EventPublisher
}

func newApp(cfg *config.Config, logg zerolog.Logger, st *storage, sc *sidecar, registry *prometheus.Registry) *app {
	m := metrics.New(registry)
	locks := usecase.NewLedgerLocks()
	ids := idgen.NewULIDGenerator()

	accountUC := usecase.NewAccountUseCase(st.txManager, st.accounts, st.journals, st.ledger, st.outbox, st.audit, ids, locks, m)
	journalUC := usecase.NewJournalUseCase(st.txManager, st.accounts, st.journals, st.ledger, st.outbox, st.audit, ids, locks, m)
	if st.retrier != nil {
		journalUC = journalUC.WithRetrier(st.retrier)
	}
	ledgerUC := usecase.NewLedgerUseCase(st.accounts, st.ledger, sc.cache, cfg.CacheTTL, locks, m)
	reportUC := usecase.NewReportUseCase(ledgerUC, locks, m, cfg.TrialBalanceIncludeInactive)
	auditUC := usecase.NewAuditUseCase(st.audit, st.accounts, st.journals)

	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
	}

	checks := append(append([]handler.Check{}, st.checks...), sc.checks...)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:     handler.NewAccountHandler(accountUC, ledgerUC),
		JournalHandler:     handler.NewJournalHandler(journalUC),
		LedgerHandler:      handler.NewLedgerHandler(ledgerUC),
		ReportHandler:      handler.NewReportHandler(reportUC),
		HealthHandler:      handler.NewHealthHandler(checks...),
		AuditHandler:       handler.NewAuditHandler(auditUC),
		Logger:             &logg,
		Metrics:            m,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		JWTManager:         jwtManager,
		TenantHeader:       cfg.TenantHeader,
		RateLimiter:        rateLimiter,
		IdempotencyStore:   sc.idempotency,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: st.outbox,
		Publisher:  sc.publisher,
		Logger:     logg,
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
	})

	return &app{handler: router, rateLimiter: rateLimiter, publisher: publisher}
}

func newServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      h,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
}

func run(ctx context.Context, cfg *config.Config, logg zerolog.Logger) error {
	st, err := openStorage(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer st.close()

	sc, err := openSidecar(ctx, cfg, st.namespace, logg)
	if err != nil {
		return err
	}
	defer sc.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := newApp(cfg, logg, st, sc, registry)
	server := newServer(cfg, a.handler)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logg.Info().Str("port", cfg.HTTPPort).Str("storage", cfg.StorageDriver).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.publisher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("event publisher: %w", err)
		}
		return nil
	})

	if a.rateLimiter != nil {
		g.Go(func() error {
			a.rateLimiter.Run(ctx, limiterCleanupInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logg.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
