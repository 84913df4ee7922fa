package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"notary/internal/config"
	"notary/internal/dialect"
	"notary/internal/metrics"
	"notary/internal/repository/postgres"
	"notary/internal/txn"
)

// txprobe runs a battery of live transaction probes against the configured
// database and exposes the transaction metrics it generated. Exit status is
// non-zero when any probe fails, so it doubles as a deployment smoke check.
func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	logFile, err := config.SetupLogFile(cfg.LogDir, config.MaxLogFiles)
	if err != nil {
		log.Fatalf("Failed to set up log file: %v", err)
	}
	defer logFile.Close()

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stdout, logFile), &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger) // Set as default logger

	logger.Info("probe starting",
		"environment", cfg.Environment,
		"dialect", cfg.Dialect,
	)

	// Resolve the statement dialect
	dialects, err := dialect.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load dialect registry: %v", err)
	}
	stmts, err := dialects.Dialect(cfg.Dialect)
	if err != nil {
		log.Fatalf("Unknown dialect %q, have %v", cfg.Dialect, dialects.Names())
	}

	defaultIsolation := txn.DefaultIsolationLevel
	if cfg.DefaultIsolation != "" {
		defaultIsolation, err = txn.ParseIsolationLevel(cfg.DefaultIsolation)
		if err != nil {
			log.Fatalf("Invalid NOTARY_DEFAULT_ISOLATION: %v", err)
		}
	}

	// Metrics endpoint
	metricsRegistry := metrics.NewRegistry()
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsRegistry.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	// Create pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", config.PoolMaxConns,
		"min_conns", config.PoolMinConns,
	)

	manager, err := txn.NewManager(txn.ManagerConfig{
		Binder:           postgres.NewPoolBinder(pool, logger),
		Statements:       stmts,
		DefaultIsolation: defaultIsolation,
		Logger:           logger,
		Metrics:          metricsRegistry,
	})
	if err != nil {
		log.Fatalf("Failed to create transaction manager: %v", err)
	}

	probes := []struct {
		name string
		run  probeFn
	}{
		{"isolation levels", probeIsolationLevels},
		{"commit with hooks", probeCommitHooks},
		{"explicit rollback", probeRollback},
		{"nested savepoints", probeNested},
		{"invalid configuration", probeInvalidConfig},
		{"terminal state misuse", probeTerminalMisuse},
		{"lock clauses", probeLockClauses},
		{"serialization retry", probeSerializationRetry},
	}

	failed := 0
	for _, p := range probes {
		opCtx, cancel := context.WithTimeout(ctx, config.DefaultOperationTimeout)
		err := p.run(opCtx, manager, logger)
		cancel()
		if err != nil {
			failed++
			logger.Error("probe failed", "probe", p.name, "error", err)
			continue
		}
		logger.Info("probe passed", "probe", p.name)
	}

	if n := manager.ActiveCount(); n != 0 {
		failed++
		logger.Error("transactions leaked", "active", n, "ids", manager.ActiveIDs())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	if failed > 0 {
		log.Fatalf("%d probe(s) failed", failed)
	}
	logger.Info("all probes passed")
}
