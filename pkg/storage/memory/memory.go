// Package memory provides an in-process embedding cache.
package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/memvault/memvault/pkg/storage"
)

// unboundedEntries caps a cache configured without a size.
const unboundedEntries = 1 << 20

// Cache implements storage.EmbeddingCache on ristretto. Each vector costs
// one unit, so the bound is an entry count.
type Cache struct {
	store *ristretto.Cache[string, []float32]
	ttl   time.Duration
}

var _ storage.EmbeddingCache = (*Cache)(nil)

// NewCache creates a cache holding at most maxEntries vectors. A
// non-positive maxEntries means effectively unbounded; zero ttl never
// expires.
func NewCache(maxEntries int, ttl time.Duration) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = unboundedEntries
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, []float32]{
		NumCounters:        int64(maxEntries) * 10,
		MaxCost:            int64(maxEntries),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cache{store: store, ttl: ttl}, nil
}

// Get returns a copy of the cached vector.
func (c *Cache) Get(_ context.Context, key string) ([]float32, bool, error) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

// Set stores a copy of vector. The write is visible to Get on return;
// ristretto may still decline to admit it under contention.
func (c *Cache) Set(_ context.Context, key string, vector []float32) error {
	c.store.SetWithTTL(key, slices.Clone(vector), 1, c.ttl)
	c.store.Wait()
	return nil
}

// Close drops every entry and stops the cache's goroutines.
func (c *Cache) Close() error {
	c.store.Close()
	return nil
}
