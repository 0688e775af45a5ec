/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the stokvel finance engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize logger, tracer and metrics
  3. Initialize SQLite store
  4. Wire services, API handler and router
  5. Start the reconciliation scheduler (if RECONCILE_INTERVAL > 0)
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite database path (default: stokvel.db)
              Use ":memory:" for in-memory database
  -log-level  debug | info | warn | error

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (an in-flight pass finishes)
  2. Stop accepting new connections
  3. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  4. Flush traces, close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/stokvel.db"

  # Run with in-memory database and nightly reconciliation
  RECONCILE_INTERVAL=24h ./server -db=":memory:"

SEE ALSO:
  - config/config.go: All settings and their environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
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

	"go.uber.org/zap"

	"github.com/stokvela/finance-engine/api"
	"github.com/stokvela/finance-engine/config"
	"github.com/stokvela/finance-engine/observability"
	"github.com/stokvela/finance-engine/stokvel"
	"github.com/stokvela/finance-engine/store/sqlite"
)

const serviceName = "stokvel-finance-engine"

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger := observability.NewLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, serviceName)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	metrics := observability.NewMetrics()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer store.Close()

	svc := stokvel.New(store, stokvel.Options{
		Logger:      logger,
		Metrics:     metrics,
		BatchSize:   cfg.GenerationBatchSize,
		Concurrency: cfg.ReconcileConcurrency,
	})

	handler := api.NewHandler(svc, logger, cfg.DefaultDueDay)
	handler.Health = store.Ping
	router := api.NewRouter(handler, metrics, cfg.AllowedOrigins)

	scheduler := api.NewReconciliationScheduler(svc, cfg.ReconcileInterval, cfg.ReconcileLookbackMonths, logger)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("db", cfg.DBPath),
			zap.Duration("reconcile_interval", cfg.ReconcileInterval),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-serveErr:
		if ok {
			return err
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
