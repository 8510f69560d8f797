package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"scrapechat/internal/redis"
)

// Cache stores scraped pages keyed by format and URL.
type Cache interface {
	Get(ctx context.Context, key string) (*Page, bool)
	Set(ctx context.Context, key string, page *Page)
}

type memoryEntry struct {
	page      Page
	fetchedAt time.Time
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) > c.ttl {
		if ok {
			delete(c.entries, key)
		}
		return nil, false
	}
	page := e.page
	return &page, true
}

func (c *MemoryCache) Set(_ context.Context, key string, page *Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Evict expired entries when cache grows large.
	if len(c.entries) > 100 {
		now := c.now()
		for k, e := range c.entries {
			if now.Sub(e.fetchedAt) > c.ttl {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = memoryEntry{page: *page, fetchedAt: c.now()}
}

const scrapeKeyPrefix = "scrape:"

// RedisCache shares scraped pages across backend instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Page, bool) {
	raw, err := c.client.Get(ctx, scrapeKeyPrefix+key)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			log.Printf("scrape cache get failed: %v", err)
		}
		return nil, false
	}
	var page Page
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		log.Printf("scrape cache decode failed: %v", err)
		return nil, false
	}
	return &page, true
}

func (c *RedisCache) Set(ctx context.Context, key string, page *Page) {
	data, err := json.Marshal(page)
	if err != nil {
		log.Printf("scrape cache marshal failed: %v", err)
		return
	}
	if err := c.client.Set(ctx, scrapeKeyPrefix+key, data, c.ttl); err != nil {
		log.Printf("scrape cache set failed: %v", err)
	}
}
