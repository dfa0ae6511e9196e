package main

import (
	"context"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"futuresHook/config"
	"futuresHook/internal/adapters/binanceclient"
	"futuresHook/internal/adapters/lock"
	"futuresHook/internal/adapters/logger"
	"futuresHook/internal/adapters/metrics"
	"futuresHook/internal/adapters/notifier"
	"futuresHook/internal/adapters/sqlite"
	"futuresHook/internal/api"
	"futuresHook/internal/app"
	"futuresHook/internal/ports"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, FilePath: cfg.LogFile})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Application exited with error")
		_ = appLogger.Sync()
		os.Exit(1)
	}
	appLogger.Info(context.Background(), "Application finished gracefully.")
}

func run(cfg *config.Config, appLogger *logger.ZapLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Journal (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.JournalDBPath,
		Logger: appLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize run journal: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing run journal")
		}
	}()

	// 4. Initialize Exchange Gateway Factory (Binance Adapter)
	gateways, err := binanceclient.NewFactory(binanceclient.Config{
		Logger:         appLogger,
		BaseURL:        cfg.BinanceBaseURL,
		TestnetBaseURL: cfg.BinanceTestnetBaseURL,
		RatePerSecond:  cfg.RateLimitPerSecond,
		RateBurst:      cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Binance gateway factory: %w", err)
	}

	// 5. Initialize Notification Sink
	sink, err := notifier.New(notifier.Config{URL: cfg.NotifyURL, Timeout: cfg.NotifyTimeout, Logger: appLogger})
	if err != nil {
		return fmt.Errorf("failed to initialize notification sink: %w", err)
	}
	if cfg.NotifyURL == "" {
		appLogger.Warn(ctx, "NOTIFY_URL not set, lifecycle notifications disabled")
	}

	// 6. Initialize Per-Symbol Locker
	locker, closeLocker, err := newLocker(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize %s locker: %w", cfg.LockBackend, err)
	}
	defer closeLocker()

	// 7. Initialize Metrics
	var (
		workflowMetrics ports.Metrics = ports.NopMetrics{}
		metricsHandler  http.Handler
	)
	if cfg.MetricsEnabled {
		prom := metrics.NewPrometheus()
		workflowMetrics = prom
		metricsHandler = prom.Handler()
	}

	// 8. Initialize Trade Executor
	executor, err := app.NewTradeExecutor(cfg, appLogger, gateways, sink, repo, locker, workflowMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize trade executor: %w", err)
	}

	// 9. Start the Webhook Server
	server, err := api.NewServer(api.Config{
		Addr:                  cfg.HTTPAddr,
		AllowedOrigins:        cfg.CORSAllowedOrigins,
		DefaultEquityFraction: cfg.DefaultEquityFraction,
		Executor:              executor,
		Logger:                appLogger,
		MetricsHandler:        metricsHandler,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize API server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		appLogger.Info(context.Background(), "Shutdown signal received, draining in-flight runs", map[string]interface{}{"timeout": cfg.ShutdownTimeout.String()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLocker(ctx context.Context, cfg *config.Config, appLogger ports.Logger) (ports.SymbolLocker, func(), error) {
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		rl, err := lock.NewRedisLocker(ctx, lock.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.LockTTL,
		}, appLogger)
		if err != nil {
			return nil, nil, err
		}
		appLogger.Info(ctx, "Redis symbol locker connected", map[string]interface{}{"addr": cfg.RedisAddr})
		return rl, func() { _ = rl.Close() }, nil
	case config.LockBackendNone:
		appLogger.Warn(ctx, "Symbol locking disabled, concurrent runs on one symbol may race")
		return ports.NopLocker{}, func() {}, nil
	default:
		return lock.NewMemoryLocker(), func() {}, nil
	}
}
