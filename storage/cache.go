package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"prism-task-editor/domain"
)

// TagSource is implemented by every tag catalog backend.
type TagSource interface {
	FetchTags(ctx context.Context) ([]domain.Tag, error)
}

const tagsCacheKey = "editor:tags"

// Cache wraps a tag source with Redis-backed read-through caching.
type Cache struct {
	base  TagSource
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base TagSource, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base source is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) FetchTags(ctx context.Context) ([]domain.Tag, error) {
	if tags, ok := c.load(ctx); ok {
		return tags, nil
	}
	tags, err := c.base.FetchTags(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, tags)
	return tags, nil
}

// Invalidate drops the cached catalog.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, tagsCacheKey).Err()
}

func (c *Cache) load(ctx context.Context) ([]domain.Tag, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tagsCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing source without failing.
			_ = c.redis.Del(ctx, tagsCacheKey).Err()
		}
		return nil, false
	}
	var tags []domain.Tag
	if err := sonic.Unmarshal(data, &tags); err != nil {
		_ = c.redis.Del(ctx, tagsCacheKey).Err()
		return nil, false
	}
	return tags, true
}

func (c *Cache) store(ctx context.Context, tags []domain.Tag) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(tags)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tagsCacheKey, data, c.ttl).Err()
}
