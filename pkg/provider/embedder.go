package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/metrics"
	"github.com/memvault/memvault/pkg/storage"
)

// modelEmbedder embeds through a langchaingo client, with an optional cache
// keyed by SHA-256 of model and text.
type modelEmbedder struct {
	embedder  embeddings.Embedder
	call      caller
	dimension int
	cache     storage.EmbeddingCache
	metrics   *metrics.Manager
	logger    logger.Logger
}

func newModelEmbedder(client embeddings.EmbedderClient, call caller, dimension int, cache storage.EmbeddingCache, m *metrics.Manager, log logger.Logger) (*modelEmbedder, error) {
	e, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &modelEmbedder{
		embedder:  e,
		call:      call,
		dimension: dimension,
		cache:     cache,
		metrics:   m,
		logger:    log,
	}, nil
}

func (e *modelEmbedder) Mode() string { return e.call.mode }

// CacheKey is the embedding cache key for text under model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (e *modelEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(e.call.model, text)
	if e.cache != nil {
		vec, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.WarnContext(ctx, "embedding cache read failed", "error", err)
		}
		e.metrics.RecordEmbeddingCache(ok)
		if ok && len(vec) == e.dimension {
			return vec, nil
		}
	}

	var vec []float32
	err := e.call.do(ctx, func(ctx context.Context) error {
		v, err := e.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return memory.CheckDimension(vec, e.dimension)
	})
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, vec); err != nil {
			e.logger.WarnContext(ctx, "embedding cache write failed", "error", err)
		}
	}
	return vec, nil
}
