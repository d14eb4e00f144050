package terminal

import (
	"context"
	"sync"

	"github.com/cutroom/floor-service/internal/models"
)

// LookupCache is a keyed cache filled on demand by a loader.
// A failed load leaves the cache empty so the next EnsureLoaded retries.
type LookupCache[K comparable, V any] struct {
	mu     sync.RWMutex
	items  map[K]V
	loaded bool
	load   func(ctx context.Context) (map[K]V, error)
}

// NewLookupCache creates a cache backed by load
func NewLookupCache[K comparable, V any](load func(ctx context.Context) (map[K]V, error)) *LookupCache[K, V] {
	return &LookupCache[K, V]{
		items: make(map[K]V),
		load:  load,
	}
}

// Get returns the cached value for key
func (c *LookupCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

// Values returns a copy of the cached entries
func (c *LookupCache[K, V]) Values() map[K]V {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[K]V, len(c.items))
	for k, v := range c.items {
		out[k] = v
	}
	return out
}

// EnsureLoaded runs the loader once; later calls are no-ops until Invalidate
func (c *LookupCache[K, V]) EnsureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.Reload(ctx)
}

// Reload replaces the cached entries with a fresh load
func (c *LookupCache[K, V]) Reload(ctx context.Context) error {
	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	if items == nil {
		items = make(map[K]V)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	c.loaded = true
	return nil
}

// Invalidate forgets the cached entries
func (c *LookupCache[K, V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]V)
	c.loaded = false
}

// OperatorCache maps operator ids to active operators
type OperatorCache = LookupCache[int64, models.Operator]

// OperatorSource lists active operators of a type
type OperatorSource interface {
	ActiveOperators(ctx context.Context, opType models.OperatorType) ([]models.Operator, error)
}

// NewOperatorCache creates a cache of the active operators of opType
func NewOperatorCache(src OperatorSource, opType models.OperatorType) *OperatorCache {
	return NewLookupCache(func(ctx context.Context) (map[int64]models.Operator, error) {
		ops, err := src.ActiveOperators(ctx, opType)
		if err != nil {
			return nil, err
		}
		byID := make(map[int64]models.Operator, len(ops))
		for _, op := range ops {
			byID[op.ID] = op
		}
		return byID, nil
	})
}
