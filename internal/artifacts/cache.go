package artifacts

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes artifacts for the process lifetime. Concurrent misses on
// the same key share a single load; failed loads are not cached.
type Cache[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	group singleflight.Group
}

// NewCache returns an empty cache.
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{items: make(map[string]T)}
}

// Get returns the cached value for key, calling load at most once across
// concurrent callers when it is absent.
func (c *Cache[T]) Get(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	c.mu.RLock()
	v, ok := c.items[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		cached, ok := c.items[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.items[key] = loaded
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Len returns the number of cached entries.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
