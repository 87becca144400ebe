package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bmbank/bmbank-api/internal/config"
	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/handler"
	"github.com/bmbank/bmbank-api/internal/infra/cache"
	"github.com/bmbank/bmbank-api/internal/infra/observability"
	"github.com/bmbank/bmbank-api/internal/infra/postgres"
	"github.com/bmbank/bmbank-api/internal/infra/resilience"
	"github.com/bmbank/bmbank-api/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("stats_cache_ttl", cfg.StatsCacheTTL),
		zap.Duration("jwt_ttl", cfg.JWTTTL),
	)

	// --- Tracing ---
	ctx := context.Background()
	shutdownTracer, err := observability.InitTracer(ctx, "bmbank-api", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("postgres")

	// --- Storage ---
	connectCtx, cancelConnect := context.WithTimeout(ctx, 10*time.Second)
	defer cancelConnect()

	store, err := postgres.Connect(connectCtx, cfg.DatabaseURL, postgres.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, cb, resilienceCfg, metrics, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer store.Close()

	if err := store.Migrate(connectCtx); err != nil {
		logger.Fatal("failed to apply schema", zap.Error(err))
	}

	// --- Cache ---
	statsCache := cache.New[*domain.Stats](cfg.StatsCacheTTL)

	// --- Services ---
	authSvc := service.NewAuthService(store, cfg.JWTSecret, cfg.JWTTTL, metrics, logger)
	ledgerSvc := service.NewLedgerService(store, logger)
	txSvc := service.NewTransactionService(store, metrics, logger)
	dirSvc := service.NewDirectoryService(store, logger)
	reportSvc := service.NewReportingService(store, statsCache, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Auth:         authSvc,
		Ledger:       ledgerSvc,
		Transactions: txSvc,
		Directory:    dirSvc,
		Reporting:    reportSvc,
		Store:        store,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
