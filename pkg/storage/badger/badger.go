// Package badger provides a persistent embedding cache on Badger.
package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/storage"
)

// Config holds configuration for Cache.
type Config struct {
	Path              string
	SyncWrites        bool
	ValueLogFileSize  int64
	NumVersionsToKeep int
	// TTL expires entries; zero keeps them until evicted by Close-time GC.
	TTL time.Duration
}

// Cache implements storage.EmbeddingCache using Badger.
type Cache struct {
	db     *badger.DB
	config *Config
}

var _ storage.EmbeddingCache = (*Cache)(nil)

// NewCache opens (or creates) the cache directory.
func NewCache(config *Config) (*Cache, error) {
	opts := badger.DefaultOptions(config.Path)
	opts.SyncWrites = config.SyncWrites
	if config.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = config.ValueLogFileSize
	}
	if config.NumVersionsToKeep > 0 {
		opts.NumVersionsToKeep = config.NumVersionsToKeep
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	return &Cache{
		db:     db,
		config: config,
	}, nil
}

func embeddingKey(key string) []byte {
	return []byte("embedding:" + key)
}

// Get returns the cached vector for key.
func (c *Cache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	var vec []float32

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(embeddingKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v, err := memory.DecodeVector(val)
			if err != nil {
				return &storage.SerializationError{Operation: "decode vector", Cause: err}
			}
			vec = v
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Set stores vector under key.
func (c *Cache) Set(ctx context.Context, key string, vector []float32) error {
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(embeddingKey(key), memory.EncodeVector(vector))
		if c.config.TTL > 0 {
			entry = entry.WithTTL(c.config.TTL)
		}
		return txn.SetEntry(entry)
	})
}

// Close closes the Badger database.
func (c *Cache) Close() error {
	// ErrNoRewrite only means there was nothing to reclaim.
	_ = c.db.RunValueLogGC(0.5)
	return c.db.Close()
}
