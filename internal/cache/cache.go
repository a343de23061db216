// Package cache stores rendered article listings in Redis. Every key embeds a
// generation counter, so a single INCR invalidates all cached listings after
// a pipeline run.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Saul-Punybz/unbiased/internal/config"
)

const (
	keyPrefix     = "unbiased:"
	generationKey = keyPrefix + "generation"
)

// Cache is a Redis-backed listing cache. A Cache built without an address is
// disabled: Get always misses and Set and Invalidate do nothing.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies connectivity with a ping.
func New(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	if cfg.Addr == "" {
		slog.Warn("redis address not configured, response cache disabled")
		return &Cache{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: connect to redis at %s: %w", cfg.Addr, err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	slog.Info("redis connected", "addr", cfg.Addr, "ttl", ttl)
	return &Cache{client: client, ttl: ttl}, nil
}

// Enabled reports whether the cache talks to Redis.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Close closes the underlying Redis client.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// Get loads the cached value for (name, params) into dst and reports a hit.
// Redis errors count as misses.
func (c *Cache) Get(ctx context.Context, name string, params url.Values, dst any) bool {
	if !c.Enabled() {
		return false
	}
	gen, err := c.generation(ctx)
	if err != nil {
		slog.Warn("cache: read generation", "err", err)
		return false
	}

	data, err := c.client.Get(ctx, buildKey(gen, name, params)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		slog.Warn("cache: get", "name", name, "err", err)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		slog.Warn("cache: decode", "name", name, "err", err)
		return false
	}
	return true
}

// Set stores v for (name, params) under the current generation.
func (c *Cache) Set(ctx context.Context, name string, params url.Values, v any) {
	if !c.Enabled() {
		return
	}
	gen, err := c.generation(ctx)
	if err != nil {
		slog.Warn("cache: read generation", "err", err)
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("cache: encode", "name", name, "err", err)
		return
	}
	if err := c.client.Set(ctx, buildKey(gen, name, params), data, c.ttl).Err(); err != nil {
		slog.Warn("cache: set", "name", name, "err", err)
	}
}

// Invalidate bumps the generation so every existing entry is bypassed and
// left to expire.
func (c *Cache) Invalidate(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("cache: invalidate: %w", err)
	}
	return nil
}

func (c *Cache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// buildKey derives a stable key; url.Values.Encode sorts by parameter name.
func buildKey(gen int64, name string, params url.Values) string {
	sum := sha256.Sum256([]byte(params.Encode()))
	return keyPrefix + "v" + strconv.FormatInt(gen, 10) + ":" + name + ":" + hex.EncodeToString(sum[:8])
}
