// Package main is the entry point for the tripflow API server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pitabwire/tripflow/internal/config"
	"github.com/pitabwire/tripflow/internal/linkhealth"
	"github.com/pitabwire/tripflow/internal/observability"
	"github.com/pitabwire/tripflow/internal/openapi"
	"github.com/pitabwire/tripflow/internal/store"
	"github.com/pitabwire/tripflow/internal/transport"
	"github.com/pitabwire/tripflow/internal/trip"
	"github.com/pitabwire/tripflow/internal/workflow"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "", "path to configuration file (defaults plus environment when empty)")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "tripflow", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Step 4: Load the embedded API document.
	api, err := openapi.Load()
	if err != nil {
		logger.Error("API document load failed", zap.Error(err))
		return 1
	}

	// Step 5: Open the trip store.
	tripStore, storeCloser, err := buildTripStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("trip store initialization failed", zap.Error(err))
		return 1
	}
	instrumented := store.Instrument(tripStore, cfg.Store.Driver, metrics)

	// Step 6: Open the idempotency store (optional).
	idemStore, idemCloser := buildIdempotencyStore(cfg.Idempotency, logger)

	// Step 7: Build the link prober and workflow engine.
	prober := linkhealth.NewProber(linkhealth.Config{
		Timeout:          cfg.LinkHealth.Timeout,
		MaxConcurrency:   cfg.LinkHealth.MaxConcurrency,
		MaxTargets:       cfg.LinkHealth.MaxTargets,
		UserAgent:        cfg.LinkHealth.UserAgent,
		BreakerThreshold: cfg.LinkHealth.BreakerThreshold,
		BreakerCooldown:  cfg.LinkHealth.BreakerCooldown,
	}, linkhealth.WithRecorder(metrics), linkhealth.WithLogger(logger.Named("linkhealth")))

	engine := workflow.NewEngine(
		workflow.WithProber(prober),
		workflow.WithMarkers(workflow.Markers{
			Model:          cfg.Engine.Model,
			Profile:        cfg.Engine.Profile,
			PromptVersions: cfg.Engine.PromptVersions,
		}),
		workflow.WithLogger(logger.Named("workflow")),
	)

	// Step 8: Build the trip service.
	svcOpts := []trip.Option{
		trip.WithRecorder(metrics),
		trip.WithLogger(logger.Named("trip")),
	}
	if idemStore != nil {
		svcOpts = append(svcOpts, trip.WithIdempotency(idemStore, cfg.Idempotency.Store.DefaultTTL))
	}
	service := trip.NewService(instrumented, engine, svcOpts...)

	// Step 9: Build HTTP router.
	readiness := observability.ReadinessChecks{
		TripStore: instrumented,
		APILoaded: func() bool { return api.Len() > 0 },
	}
	if hc, ok := idemStore.(observability.HealthChecker); ok {
		readiness.IdempotencyStore = hc
	}

	deps := transport.Dependencies{
		Config:    cfg,
		Logger:    logger,
		Service:   service,
		API:       api,
		Metrics:   metrics,
		Readiness: readiness,
	}
	if cfg.Identity.Enabled() {
		jwks := transport.NewJWKSClient(cfg.Identity.JWKSURL, cfg.Identity.JWKSCacheTTL, logger.Named("jwks"))
		deps.Authenticate = transport.JWTAuthenticator(cfg.Identity, jwks)
	} else {
		logger.Warn("identity issuer not configured, API is unauthenticated")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      transport.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 10: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("store", cfg.Store.Driver),
		zap.Int("operations", api.Len()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Close stores.
	if storeCloser != nil {
		storeCloser()
	}
	if idemCloser != nil {
		idemCloser()
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildTripStore creates the trip store based on config.
func buildTripStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (store.TripStore, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		logger.Info("using in-memory trip store")
		return store.NewMemoryTripStore(), nil, nil
	case config.DriverPostgres:
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("trip store: %s environment variable not set", cfg.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("trip store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("trip store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("trip store: ping: %w", err)
		}

		pg := store.NewPgTripStore(pool)
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("trip store: migrate: %w", err)
			}
		}
		return pg, pool.Close, nil
	case config.DriverRedis:
		client, err := newRedisClient(ctx, cfg.AddrEnv, cfg.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("trip store: %w", err)
		}
		closer := func() { _ = client.Close() }
		return store.NewRedisTripStore(client, cfg.KeyPrefix), closer, nil
	default:
		return nil, nil, fmt.Errorf("unsupported trip store driver: %q", cfg.Driver)
	}
}

// buildIdempotencyStore creates the idempotency store based on config. A
// Redis store that cannot be reached falls back to memory.
func buildIdempotencyStore(cfg config.IdempotencyConfig, logger *zap.Logger) (trip.IdempotencyStore, func()) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Store.Driver {
	case config.DriverRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := newRedisClient(ctx, cfg.Store.AddrEnv, cfg.Store.DB)
		if err != nil {
			logger.Warn("redis idempotency store unavailable, using in-memory store", zap.Error(err))
			return trip.NewMemoryIdempotencyStore(), nil
		}
		logger.Info("using redis idempotency store")
		return trip.NewRedisIdempotencyStore(client), func() { _ = client.Close() }
	default:
		logger.Info("using in-memory idempotency store")
		return trip.NewMemoryIdempotencyStore(), nil
	}
}

func newRedisClient(ctx context.Context, addrEnv string, db int) (*redis.Client, error) {
	addr := os.Getenv(addrEnv)
	if addr == "" {
		return nil, fmt.Errorf("%s environment variable not set", addrEnv)
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
