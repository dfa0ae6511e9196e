package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/redis/go-redis/v9"

	"futuresHook/internal/ports"
)

// Compile-time check that RedisLocker implements ports.SymbolLocker
var _ ports.SymbolLocker = (*RedisLocker)(nil)

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig holds Redis lock configuration.
type RedisConfig struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr     string
	Password string
	DB       int
	// TTL bounds how long a crashed holder can block a symbol.
	TTL time.Duration
	// KeyPrefix is prepended to all lock keys
	KeyPrefix string
}

// RedisLocker is a SET NX PX lock shared by every replica pointing at the same Redis.
type RedisLocker struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
	logger    ports.Logger
}

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(ctx context.Context, cfg RedisConfig, logger ports.Logger) (*RedisLocker, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for redis locker")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 3 * time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "futureshook:lock"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	return &RedisLocker{client: client, ttl: cfg.TTL, keyPrefix: cfg.KeyPrefix, logger: logger}, nil
}

// Close closes the Redis connection.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

func (l *RedisLocker) key(symbol string) string {
	return l.keyPrefix + ":" + symbol
}

// Lock polls SET NX until it wins the key or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, symbol string) (func(), error) {
	key := l.key(symbol)
	token := uuid.NewString()
	b := &backoff.Backoff{Min: 25 * time.Millisecond, Max: 500 * time.Millisecond, Factor: 2, Jitter: true}

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}

		wait := b.Duration()
		l.logger.Debug(ctx, "Symbol locked by another run, waiting", map[string]interface{}{"symbol": symbol, "wait": wait.String()})
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn(rctx, "Failed to release symbol lock", map[string]interface{}{"symbol": symbol, "error": err.Error()})
		}
	}, nil
}
