package adventure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend-nearvibe/internal/filter"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const generationKey = "adventures:gen"

// Cache stores discovery pages in Redis. Pages are keyed by the current
// generation, so bumping it drops every cached page at once.
// A nil *Cache is a valid, disabled cache.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

// NewCache returns nil when rdb is nil or ttl is not positive.
func NewCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Cache {
	if rdb == nil || ttl <= 0 {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{rdb: rdb, ttl: ttl, log: log}
}

func (c *Cache) generation(ctx context.Context) (string, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

func (c *Cache) pageKey(ctx context.Context, q filter.Query, page, size int) (string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("adventures:page:%s:%s:%d:%d", gen, q.Key(), page, size), nil
}

// Key resolves the page key under the current generation. Callers resolve it
// before reading the database and pass the same key to Set, so a page read
// before an Invalidate is never stored under the newer generation.
// ok is false when the cache is disabled or unreachable.
func (c *Cache) Key(ctx context.Context, q filter.Query, page, size int) (string, bool) {
	if c == nil {
		return "", false
	}
	key, err := c.pageKey(ctx, q, page, size)
	if err != nil {
		c.log.Warn("discovery cache unavailable", zap.Error(err))
		return "", false
	}
	return key, true
}

func (c *Cache) Get(ctx context.Context, key string) (Page, bool) {
	if c == nil || key == "" {
		return Page{}, false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("discovery cache read failed", zap.Error(err))
		}
		return Page{}, false
	}
	var p Page
	if err := json.Unmarshal(raw, &p); err != nil {
		c.log.Warn("discovery cache entry corrupt", zap.String("key", key), zap.Error(err))
		return Page{}, false
	}
	return p, true
}

func (c *Cache) Set(ctx context.Context, key string, p Page) {
	if c == nil || key == "" {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("discovery cache write failed", zap.Error(err))
	}
}

// Invalidate bumps the generation.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		c.log.Warn("discovery cache invalidate failed", zap.Error(err))
	}
}
