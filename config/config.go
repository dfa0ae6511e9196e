package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"futuresHook/internal/adapters/logger" // Import the logger package for LogLevel
)

// Lock backends accepted by LOCK_BACKEND.
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
	LockBackendNone   = "none"
)

// Config holds all application configuration.
type Config struct {
	// HTTP server
	HTTPAddr           string
	CORSAllowedOrigins []string
	MetricsEnabled     bool
	ShutdownTimeout    time.Duration

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
	LogFile  string

	// Sizing
	QuoteAsset            string
	DefaultEquityFraction decimal.Decimal // used when the webhook omits equityFraction
	FallbackNotional      decimal.Decimal // notional used when the balance query fails
	QuantityPrecision     int32

	// Clock skew applied to server time before signed order requests
	EntryTimeSkew     time.Duration
	CloseTimeSkew     time.Duration
	RequireServerTime bool // abort the entry when server time is unavailable

	// Protective order retry
	ProtectiveMaxAttempts int // 0 = bounded only by the retry window and workflow deadline
	ProtectiveBackoffMin  time.Duration
	ProtectiveBackoffMax  time.Duration
	ProtectiveRetryWindow time.Duration

	// Workflow
	WorkflowTimeout time.Duration

	// Notifications
	NotifyURL                string
	NotifyTimeout            time.Duration
	NotifyExitOnCloseFailure bool

	// Per-symbol locking
	LockBackend   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	// Database
	JournalDBPath string

	// Exchange connection
	RateLimitPerSecond    float64
	RateBurst             int
	BinanceBaseURL        string // overrides the production futures endpoint when set
	BinanceTestnetBaseURL string // overrides the testnet futures endpoint when set
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// HTTP server
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":7980")
	cfg.CORSAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "*"))
	cfg.MetricsEnabled = getEnvAsBool("METRICS_ENABLED", true)
	shutdownSeconds := getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 10)
	if shutdownSeconds <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT_SECONDS must be positive")
	}
	cfg.ShutdownTimeout = time.Duration(shutdownSeconds) * time.Second

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package
	cfg.LogFile = getEnv("LOG_FILE", "")

	// Sizing
	cfg.QuoteAsset = strings.ToUpper(getEnv("QUOTE_ASSET", "USDT"))

	cfg.DefaultEquityFraction, err = getEnvAsDecimalRequired("DEFAULT_EQUITY_FRACTION", "0.20")
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_EQUITY_FRACTION: %v", err))
	} else if !cfg.DefaultEquityFraction.IsPositive() || cfg.DefaultEquityFraction.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, "DEFAULT_EQUITY_FRACTION must be in (0, 1]")
	}

	cfg.FallbackNotional, err = getEnvAsDecimalRequired("FALLBACK_NOTIONAL", "10.00")
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FALLBACK_NOTIONAL: %v", err))
	} else if cfg.FallbackNotional.IsNegative() {
		errs = append(errs, "FALLBACK_NOTIONAL cannot be negative")
	}

	precision, err := getEnvAsIntRequired("QUANTITY_PRECISION", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid QUANTITY_PRECISION: %v", err))
	} else if precision < 0 || precision > 8 {
		errs = append(errs, "QUANTITY_PRECISION must be between 0 and 8")
	}
	cfg.QuantityPrecision = int32(precision)

	// Clock
	entrySkewMs, err := getEnvAsIntRequired("ENTRY_TIME_SKEW_MS", 2000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ENTRY_TIME_SKEW_MS: %v", err))
	} else if entrySkewMs < 0 {
		errs = append(errs, "ENTRY_TIME_SKEW_MS cannot be negative")
	}
	cfg.EntryTimeSkew = time.Duration(entrySkewMs) * time.Millisecond

	closeSkewMs, err := getEnvAsIntRequired("CLOSE_TIME_SKEW_MS", 1000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CLOSE_TIME_SKEW_MS: %v", err))
	} else if closeSkewMs < 0 {
		errs = append(errs, "CLOSE_TIME_SKEW_MS cannot be negative")
	}
	cfg.CloseTimeSkew = time.Duration(closeSkewMs) * time.Millisecond

	cfg.RequireServerTime = getEnvAsBool("REQUIRE_SERVER_TIME", true)

	// Protective order retry
	cfg.ProtectiveMaxAttempts, err = getEnvAsIntRequired("PROTECTIVE_MAX_ATTEMPTS", 20)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PROTECTIVE_MAX_ATTEMPTS: %v", err))
	} else if cfg.ProtectiveMaxAttempts < 0 {
		errs = append(errs, "PROTECTIVE_MAX_ATTEMPTS cannot be negative")
	}

	backoffMinMs := getEnvAsInt("PROTECTIVE_BACKOFF_MIN_MS", 200)
	backoffMaxMs := getEnvAsInt("PROTECTIVE_BACKOFF_MAX_MS", 5000)
	if backoffMinMs <= 0 || backoffMaxMs <= 0 {
		errs = append(errs, "PROTECTIVE_BACKOFF_MIN_MS and PROTECTIVE_BACKOFF_MAX_MS must be positive")
	} else if backoffMinMs > backoffMaxMs {
		errs = append(errs, "PROTECTIVE_BACKOFF_MIN_MS must not exceed PROTECTIVE_BACKOFF_MAX_MS")
	}
	cfg.ProtectiveBackoffMin = time.Duration(backoffMinMs) * time.Millisecond
	cfg.ProtectiveBackoffMax = time.Duration(backoffMaxMs) * time.Millisecond

	retryWindowSeconds := getEnvAsInt("PROTECTIVE_RETRY_WINDOW_SECONDS", 60)
	if retryWindowSeconds <= 0 {
		errs = append(errs, "PROTECTIVE_RETRY_WINDOW_SECONDS must be positive")
	}
	cfg.ProtectiveRetryWindow = time.Duration(retryWindowSeconds) * time.Second

	// Workflow
	workflowSeconds := getEnvAsInt("WORKFLOW_TIMEOUT_SECONDS", 120)
	if workflowSeconds <= 0 {
		errs = append(errs, "WORKFLOW_TIMEOUT_SECONDS must be positive")
	}
	cfg.WorkflowTimeout = time.Duration(workflowSeconds) * time.Second

	// Notifications
	cfg.NotifyURL = getEnv("NOTIFY_URL", "")
	notifySeconds := getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 5)
	if notifySeconds <= 0 {
		errs = append(errs, "NOTIFY_TIMEOUT_SECONDS must be positive")
	}
	cfg.NotifyTimeout = time.Duration(notifySeconds) * time.Second
	cfg.NotifyExitOnCloseFailure = getEnvAsBool("NOTIFY_EXIT_ON_CLOSE_FAILURE", true)

	// Locking
	cfg.LockBackend = strings.ToLower(getEnv("LOCK_BACKEND", LockBackendMemory))
	switch cfg.LockBackend {
	case LockBackendMemory, LockBackendNone:
	case LockBackendRedis:
		cfg.RedisAddr = getEnv("REDIS_ADDR", "")
		if cfg.RedisAddr == "" {
			errs = append(errs, "REDIS_ADDR must be set when LOCK_BACKEND=redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown LOCK_BACKEND %q (want memory, redis or none)", cfg.LockBackend))
	}
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvAsInt("REDIS_DB", 0)
	lockTTLSeconds := getEnvAsInt("LOCK_TTL_SECONDS", 180)
	if lockTTLSeconds <= 0 {
		errs = append(errs, "LOCK_TTL_SECONDS must be positive")
	}
	cfg.LockTTL = time.Duration(lockTTLSeconds) * time.Second
	// Redis keys are never renewed, so the TTL has to outlive the longest possible run.
	if cfg.LockBackend == LockBackendRedis && lockTTLSeconds > 0 && cfg.WorkflowTimeout > 0 && cfg.LockTTL <= cfg.WorkflowTimeout {
		errs = append(errs, fmt.Sprintf("LOCK_TTL_SECONDS (%s) must exceed WORKFLOW_TIMEOUT_SECONDS (%s) when LOCK_BACKEND=redis", cfg.LockTTL, cfg.WorkflowTimeout))
	}

	// Database
	cfg.JournalDBPath = getEnv("JOURNAL_DB_PATH", "./data/executions.db")
	if cfg.JournalDBPath == "" {
		errs = append(errs, "JOURNAL_DB_PATH must be set")
	}

	// Exchange connection
	cfg.RateLimitPerSecond = getEnvAsFloat("BINANCE_RATE_LIMIT_PER_SECOND", 10)
	if cfg.RateLimitPerSecond <= 0 {
		errs = append(errs, "BINANCE_RATE_LIMIT_PER_SECOND must be positive")
	}
	cfg.RateBurst = getEnvAsInt("BINANCE_RATE_BURST", 5)
	if cfg.RateBurst <= 0 {
		errs = append(errs, "BINANCE_RATE_BURST must be positive")
	}
	cfg.BinanceBaseURL = getEnv("BINANCE_BASE_URL", "")
	cfg.BinanceTestnetBaseURL = getEnv("BINANCE_TESTNET_BASE_URL", "")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDecimalRequired(key string, defaultValue string) (decimal.Decimal, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
