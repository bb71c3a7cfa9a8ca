// Package feedcache caches upstream feed responses in Redis. A Cache that
// cannot reach Redis disables itself and callers fall through to the
// upstream fetch.
package feedcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Blood-Moon-Interactive/StarWX/internal/metrics"
)

const (
	DefaultTTL = 10 * time.Minute
	keyPrefix  = "starwx:feed:"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration

	// DisableOnError turns the cache off after the first Redis failure.
	DisableOnError bool
}

// Cache is a Redis-backed JSON cache. A nil *Cache is valid and caches
// nothing.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New connects to Redis. An unreachable server yields a disabled Cache, not
// an error.
func New(ctx context.Context, cfg Config, logger *slog.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	logger = logger.With("component", "feedcache")

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, feed caching disabled", "addr", cfg.Addr, "error", err)
		client.Close()
		return &Cache{logger: logger, config: cfg, disabled: true}
	}

	logger.Info("feed cache ready", "addr", cfg.Addr, "ttl", cfg.TTL)
	return &Cache{client: client, logger: logger, config: cfg}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Available reports whether the cache is serving.
func (c *Cache) Available() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, op string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	c.logger.Debug("cache operation failed", "op", op, "error", err)
	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn("disabling feed cache after redis error", "op", op)
	}
}

func (c *Cache) get(ctx context.Context, key string, dest any) bool {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		c.handleError(err, "get")
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug("discarding undecodable cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Debug("cannot encode cache entry", "key", key, "error", err)
		return
	}
	c.handleError(c.client.Set(ctx, keyPrefix+key, data, c.config.TTL).Err(), "set")
}

// Fetch returns the cached value for key, or calls fetch and caches its
// result. Fetch errors are never cached.
func Fetch[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error)) (T, error) {
	if !c.Available() {
		metrics.IncFeedCache("bypass")
		return fetch(ctx)
	}

	var cached T
	if c.get(ctx, key, &cached) {
		metrics.IncFeedCache("hit")
		return cached, nil
	}
	metrics.IncFeedCache("miss")

	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("fetching %s: %w", key, err)
	}
	if c.Available() {
		c.set(ctx, key, v)
	}
	return v, nil
}
