package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/af-corp/aegis-dispatch/internal/audit"
	"github.com/af-corp/aegis-dispatch/internal/config"
	"github.com/af-corp/aegis-dispatch/internal/dispatch"
	"github.com/af-corp/aegis-dispatch/internal/engine"
	"github.com/af-corp/aegis-dispatch/internal/ratelimit"
	"github.com/af-corp/aegis-dispatch/internal/server"
	"github.com/af-corp/aegis-dispatch/internal/telemetry"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load configuration
	loader := config.NewLoader(*configDir, bootLogger)
	if err := loader.Load(); err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := loader.Config()

	logger := telemetry.NewLogger(cfg.Telemetry, os.Stdout)
	slog.SetDefault(logger)

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	// Audit log (optional)
	var recorder audit.Recorder = audit.Nop{}
	if cfg.Database.Enabled {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
		if err != nil {
			logger.Error("invalid database configuration", "error", err)
			os.Exit(1)
		}
		poolCfg.MaxConns = int32(max(cfg.Database.MaxOpenConns, 1))
		poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

		dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(context.Background()); err != nil {
			logger.Warn("database not reachable (audit writes will fail)", "error", err)
		} else {
			logger.Info("database connected")
		}
		async := audit.NewAsync(audit.NewPGStore(dbPool), 1024)
		defer async.Close()
		recorder = async
	}

	// Connect to Redis
	limiter := ratelimit.NewLimiter(nil)
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (rate limiting fails open)", "error", err)
		} else {
			logger.Info("redis connected")
		}
		defer rdb.Close()
		limiter = ratelimit.NewLimiter(rdb)
	}

	// Build the dispatch engine; any configuration inconsistency is fatal here.
	breakers := dispatch.NewBreakers(cfg.Dispatch.CircuitBreaker.FailureThreshold, cfg.Dispatch.CircuitBreaker.RecoveryProbeInterval)
	deps := engine.Deps{
		Breakers: breakers,
		Metrics:  metrics,
		Recorder: recorder,
		Logger:   logger,
	}
	eng, err := engine.Build(context.Background(), loader.Snapshot(), deps)
	if err != nil {
		logger.Error("failed to build dispatch engine", "error", err)
		os.Exit(1)
	}
	holder := engine.NewHolder(eng)
	defer func() { holder.Load().Close() }()

	done := make(chan struct{})
	defer close(done)
	if cfg.Dispatch.WatchConfig {
		reloader := engine.NewReloader(holder, deps, cfg.Server.WriteTimeout)
		loader.OnReload(reloader.Reload)
		if err := loader.Watch(done); err != nil {
			logger.Warn("failed to start config watcher", "error", err)
		}
	}

	handler := server.NewHandler(holder.Load, breakers, cfg.Dispatch.RequestTimeout, version)

	var apiMiddleware []func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled {
		apiMiddleware = append(apiMiddleware,
			ratelimit.Middleware(limiter, cfg.RateLimit.RequestsPerMinute, metrics))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.NewRouter(handler, apiMiddleware...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort),
		Handler: metricsMux,
	}

	// Graceful shutdown
	errCh := make(chan error, 2)
	go func() {
		logger.Info("dispatcher starting", "addr", addr, "version", version, "models", eng.Catalog.Len())
		errCh <- srv.ListenAndServe()
	}()
	go func() {
		logger.Info("metrics server starting", "addr", metricsSrv.Addr)
		errCh <- metricsSrv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	metricsSrv.Shutdown(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("dispatcher stopped")
}
