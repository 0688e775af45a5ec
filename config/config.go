/*
config.go - Server configuration

PURPOSE:
  Collects every runtime setting in one struct. Values come from, in
  increasing precedence:
  1. Defaults below
  2. A .env file in the working directory (never overrides real env)
  3. Environment variables
  4. Command-line flags (-port, -db, -log-level)

ENVIRONMENT:
  PORT                         HTTP port (8080)
  DB_PATH                      SQLite path, ":memory:" allowed (stokvel.db)
  LOG_LEVEL                    debug | info | warn | error (info)
  ALLOWED_ORIGINS              comma-separated CORS origins
  DEFAULT_DUE_DAY              due day for new stokvels, 1..31 (31)
  GENERATION_BATCH_SIZE        periods written per transaction (24)
  RECONCILE_CONCURRENCY        stokvels reconciled in parallel (4)
  SHUTDOWN_TIMEOUT             graceful shutdown budget (30s)
  RECONCILE_INTERVAL           scheduled reconciliation interval; 0 disables (0)
  RECONCILE_LOOKBACK_MONTHS    months of due dates each scheduled run covers (3)
  OTEL_EXPORTER_OTLP_ENDPOINT  OTLP/gRPC collector; empty disables export
*/
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/stokvela/finance-engine/finance"
)

type Config struct {
	// Server
	Port            int
	DBPath          string
	LogLevel        string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration

	// Engine
	DefaultDueDay        int
	GenerationBatchSize  int
	ReconcileConcurrency int

	// Scheduler
	ReconcileInterval       time.Duration
	ReconcileLookbackMonths int

	// Observability
	OTLPEndpoint string
}

// Load reads .env, the environment and then args (usually os.Args[1:]).
// A missing .env file is not an error.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnvInt("PORT", 8080),
		DBPath:               getEnv("DB_PATH", "stokvel.db"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:       splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		ShutdownTimeout:      getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		DefaultDueDay:        getEnvInt("DEFAULT_DUE_DAY", finance.LastDayOfMonth),
		GenerationBatchSize:  getEnvInt("GENERATION_BATCH_SIZE", 24),
		ReconcileConcurrency: getEnvInt("RECONCILE_CONCURRENCY", 4),
		OTLPEndpoint:         getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		ReconcileInterval:       getEnvDuration("RECONCILE_INTERVAL", 0),
		ReconcileLookbackMonths: getEnvInt("RECONCILE_LOOKBACK_MONTHS", 3),
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("config: DB_PATH is required")
	}
	if err := finance.ValidateDueDay(c.DefaultDueDay); err != nil {
		return fmt.Errorf("config: DEFAULT_DUE_DAY: %w", err)
	}
	if c.GenerationBatchSize <= 0 {
		return fmt.Errorf("config: GENERATION_BATCH_SIZE must be positive")
	}
	if c.ReconcileConcurrency <= 0 {
		return fmt.Errorf("config: RECONCILE_CONCURRENCY must be positive")
	}
	if c.ReconcileInterval < 0 {
		return fmt.Errorf("config: RECONCILE_INTERVAL must not be negative")
	}
	if c.ReconcileLookbackMonths <= 0 {
		return fmt.Errorf("config: RECONCILE_LOOKBACK_MONTHS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
