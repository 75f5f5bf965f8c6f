// internal/cache/cache.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"unigame/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ===============================
// CACHE INTERFACE
// ===============================

// Cache defines the caching interface. Values are opaque strings; callers
// own their encoding.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	Health(ctx context.Context) error
	Close() error
}

// CacheStats represents cache statistics
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Evicted int64 `json:"evicted"`
	Keys    int   `json:"keys"`
}

const (
	defaultMaxKeys         = 10000
	defaultCleanupInterval = 5 * time.Minute
)

// NewCache creates a cache based on the configured provider
func NewCache(cfg *config.CacheConfig, logger *zap.Logger) (Cache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cache config cannot be nil")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(cfg.Provider) {
	case "redis":
		return NewRedisCache(cfg, logger)
	case "memory", "":
		logger.Info("Using in-memory cache", zap.Int("max_keys", cfg.MaxKeys))
		return NewMemoryCache(cfg.MaxKeys, defaultCleanupInterval, logger), nil
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// ===============================
// MEMORY CACHE IMPLEMENTATION
// ===============================

type memoryCache struct {
	mu      sync.Mutex
	items   map[string]*cacheItem
	maxKeys int
	logger  *zap.Logger
	stats   CacheStats
	stopCh  chan struct{}
	once    sync.Once
}

type cacheItem struct {
	value      string
	expiresAt  time.Time
	accessedAt time.Time
}

// NewMemoryCache creates a new in-memory cache with LRU eviction
func NewMemoryCache(maxKeys int, cleanupInterval time.Duration, logger *zap.Logger) *memoryCache {
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &memoryCache{
		items:   make(map[string]*cacheItem),
		maxKeys: maxKeys,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.cleanup(cleanupInterval)
	}

	return c
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		c.stats.Misses++
		return "", false
	}

	now := time.Now()
	if now.After(item.expiresAt) {
		delete(c.items, key)
		c.stats.Misses++
		return "", false
	}

	item.accessedAt = now
	c.stats.Hits++
	return item.value, true
}

func (c *memoryCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxKeys {
		c.evictLRU()
	}

	now := time.Now()
	c.items[key] = &cacheItem{
		value:      value,
		expiresAt:  now.Add(ttl),
		accessedAt: now,
	}
	c.stats.Sets++

	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// Stats returns a copy of the hit/miss counters
func (c *memoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Keys = len(c.items)
	return stats
}

func (c *memoryCache) Health(ctx context.Context) error {
	return ctx.Err()
}

func (c *memoryCache) Close() error {
	c.once.Do(func() { close(c.stopCh) })
	return nil
}

func (c *memoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stopCh:
			return
		}
	}
}

func (c *memoryCache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}

	if removed > 0 {
		c.logger.Debug("Cleaned up expired cache items", zap.Int("count", removed))
	}
}

// evictLRU removes the least recently used item. Caller holds mu.
func (c *memoryCache) evictLRU() {
	var oldestKey string
	var oldest time.Time

	for key, item := range c.items {
		if oldestKey == "" || item.accessedAt.Before(oldest) {
			oldestKey = key
			oldest = item.accessedAt
		}
	}

	if oldestKey != "" {
		delete(c.items, oldestKey)
		c.stats.Evicted++
	}
}

// ===============================
// REDIS CACHE IMPLEMENTATION
// ===============================

type redisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache creates a new Redis-based cache
func NewRedisCache(cfg *config.CacheConfig, logger *zap.Logger) (Cache, error) {
	var options *redis.Options
	if cfg.RedisURL != "" {
		var err error
		options, err = redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
	} else {
		options = &redis.Options{
			Addr:     "localhost:6379",
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}

	if cfg.PoolSize > 0 {
		options.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis cache initialized",
		zap.String("addr", options.Addr),
		zap.Int("db", options.DB),
	)

	return &redisCache{client: client, logger: logger}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) (string, bool) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("Redis get failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return value, true
}

func (r *redisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *redisCache) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCache) Close() error {
	return r.client.Close()
}
