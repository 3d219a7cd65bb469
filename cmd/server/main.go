/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the cooperative ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load config (YAML, .env, environment)
  2. Build the zap logger
  3. Initialize SQLite store with configured settings defaults
  4. Connect the per-share cache (Redis when enabled, in-process otherwise)
  5. Create dividend service, API handler and cycle scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (optional)
  -env     .env file (default: .env, ignored when missing)
  -port    HTTP server port, overrides config
  -db      SQLite database path, overrides config
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the cycle scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close Redis and database connections

EXAMPLES:
  ./server -config=./config.yaml
  ./server -db=":memory:" -port=3000

SEE ALSO:
  - config/config.go: Configuration layers and environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
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

	"go.uber.org/zap"

	"github.com/warp/coop-ledger/api"
	"github.com/warp/coop-ledger/config"
	"github.com/warp/coop-ledger/dividend"
	"github.com/warp/coop-ledger/generic"
	"github.com/warp/coop-ledger/logger"
	"github.com/warp/coop-ledger/store/redis"
	"github.com/warp/coop-ledger/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	envPath := flag.String("env", ".env", "dotenv file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, log *zap.Logger) error {
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	if policy.RulesDiverge() {
		log.Warn("schedule and cycle due-day rules differ; the second-half due day may not match between dues views and dividend cycles",
			zap.String("schedule_due_rule", string(policy.ScheduleRule)),
			zap.String("cycle_due_rule", string(policy.CycleRule)))
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	store.WithDefaults(sqlite.Settings{
		ShareUnitValue: config.Decimal(cfg.Ledger.DefaultShareUnitValue),
		MinLoanAmount:  config.Decimal(cfg.Ledger.MinLoanAmount),
		MaxLoanAmount:  config.Decimal(cfg.Ledger.MaxLoanAmount),
	})

	var cache dividend.PerShareCache = dividend.NewMemoryCache()
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := redis.Connect(ctx, cfg.Redis, log)
		cancel()
		if err != nil {
			log.Warn("redis unavailable, using in-process per-share cache", zap.Error(err))
		} else {
			defer client.Close()
			cache = redis.NewPerShareCache(client, cfg.Redis.TTL)
		}
	}

	clock := generic.SystemClock{}
	dividends := dividend.NewService(store, cache, policy, clock, log.Named("dividend"))
	handler := api.NewHandler(store, dividends, policy, clock, log.Named("api"))

	scheduler := api.NewCycleScheduler(handler)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = cfg.Scheduler.CheckInterval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("database", cfg.Database.Path),
			zap.String("timezone", policy.Location.String()),
			zap.String("currency", string(policy.Currency)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
