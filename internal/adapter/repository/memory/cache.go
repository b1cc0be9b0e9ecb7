package memory

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheItem struct {
	data      []byte
	expiresAt time.Time
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// Cache is a bounded in-process cache used when Redis is not configured.
type Cache struct {
	lru *lru.Cache[string, cacheItem]
	now func() time.Time
}

// NewCache creates a cache holding at most size entries.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = 1024
	}
	l, err := lru.New[string, cacheItem](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, now: time.Now}, nil
}

// Get returns nil, nil on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	item, ok := c.lru.Get(key)
	if !ok {
		return nil, nil
	}
	if item.expired(c.now()) {
		c.lru.Remove(key)
		return nil, nil
	}
	return item.data, nil
}

// Set stores a value with TTL. A zero TTL never expires.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	item := cacheItem{data: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(key, item)
	return nil
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

var processingMarker = []byte("processing")

// IdempotencyStore implements usecase.IdempotencyStore on top of Cache.
type IdempotencyStore struct {
	mu    sync.Mutex
	cache *Cache
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(cache *Cache) *IdempotencyStore {
	return &IdempotencyStore{cache: cache}
}

// CheckAndSet atomically checks if key exists, sets if not. A nil response claims the
// key with a processing marker.
func (s *IdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, _ := s.cache.Get(ctx, key)
	if existing != nil {
		return true, existing, nil
	}
	if response == nil {
		response = processingMarker
	}
	return false, nil, s.cache.Set(ctx, key, response, ttl)
}

// Update updates an existing key with the final response.
func (s *IdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Set(ctx, key, response, ttl)
}
