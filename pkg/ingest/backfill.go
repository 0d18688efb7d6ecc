package ingest

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/metrics"
	"github.com/memvault/memvault/pkg/provider"
	"github.com/memvault/memvault/pkg/storage"
	"github.com/memvault/memvault/pkg/telemetry/tracing"
)

// Backfill bounds.
const (
	DefaultBackfillLimit = 500
	MaxBackfillLimit     = 50000
	DefaultBatchSize     = 50
	MaxBatchSize         = 500
)

// BackfillStore is what the backfiller reads and writes.
type BackfillStore interface {
	storage.EmbeddingStore
	NamespaceExists(ctx context.Context, name string) (bool, error)
}

// BackfillRequest selects rows to embed.
type BackfillRequest struct {
	Namespace string       `json:"namespace"`
	Scope     memory.Scope `json:"scope"`
	Limit     int          `json:"limit,omitempty"`
	BatchSize int          `json:"batch_size,omitempty"`
	DryRun    bool         `json:"dry_run"`
}

// BackfillResult reports what was (or would be) embedded.
type BackfillResult struct {
	Namespace string       `json:"namespace"`
	Scope     memory.Scope `json:"scope"`
	Updated   int          `json:"updated"`
	Skipped   int          `json:"skipped"`
	DryRun    bool         `json:"dry_run"`
}

// Backfiller embeds rows that lack a vector.
type Backfiller struct {
	store     BackfillStore
	embedder  provider.Embedder
	dimension int
	metrics   *metrics.Manager
	logger    logger.Logger
}

// NewBackfiller creates a backfiller.
func NewBackfiller(store BackfillStore, embedder provider.Embedder, dimension int, m *metrics.Manager, log logger.Logger) *Backfiller {
	if embedder == nil {
		embedder = provider.NoneEmbedder()
	}
	if log == nil {
		log = logger.Global()
	}
	return &Backfiller{
		store:     store,
		embedder:  embedder,
		dimension: dimension,
		metrics:   m,
		logger:    log.With("component", "backfill"),
	}
}

func clamp(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Backfill embeds up to Limit rows in batches of BatchSize, newest first.
// Each batch commits in its own transaction, so an interrupted run keeps the
// batches already written and a re-run picks up the rest. Rows with blank
// text are skipped. A dry run counts rows without calling the provider.
func (b *Backfiller) Backfill(ctx context.Context, req BackfillRequest) (res *BackfillResult, err error) {
	scope, err := memory.ParseScope(string(req.Scope))
	if err != nil {
		return nil, err
	}
	limit := clamp(req.Limit, DefaultBackfillLimit, 1, MaxBackfillLimit)
	batchSize := clamp(req.BatchSize, DefaultBatchSize, 1, MaxBatchSize)

	ctx, span := tracing.Start(ctx, "ingest.Backfill",
		tracing.Namespace(req.Namespace),
		tracing.Scope(string(scope)),
		attribute.Bool("memvault.dry_run", req.DryRun),
	)
	defer func() { tracing.End(span, err) }()

	if !provider.Available(b.embedder) {
		return nil, fmt.Errorf("%w: embedding provider is not configured; cannot backfill server-side", memory.ErrProviderUnavailable)
	}
	ok, err := b.store.NamespaceExists(ctx, req.Namespace)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &storage.NotFoundError{EntityType: "namespace", ID: req.Namespace}
	}

	res = &BackfillResult{Namespace: req.Namespace, Scope: scope, DryRun: req.DryRun}

	// Rows left without a vector stay in the missing set; offset skips them.
	offset := 0
	for remaining := limit; remaining > 0; {
		take := min(batchSize, remaining)
		targets, err := b.store.MissingEmbeddings(ctx, req.Namespace, scope, take, offset)
		if err != nil {
			return nil, err
		}
		if len(targets) == 0 {
			break
		}

		vectors := make(map[string][]float32, len(targets))
		for _, t := range targets {
			if strings.TrimSpace(t.Text) == "" {
				res.Skipped++
				offset++
				continue
			}
			if req.DryRun {
				res.Updated++
				offset++
				continue
			}
			vec, err := b.embedder.Embed(ctx, t.Text)
			if err != nil {
				return nil, err
			}
			if err := memory.CheckDimension(vec, b.dimension); err != nil {
				return nil, fmt.Errorf("%w: %w", memory.ErrProviderError, err)
			}
			vectors[t.ID] = vec
		}

		if len(vectors) > 0 {
			if err := b.store.SetEmbeddings(ctx, scope, vectors); err != nil {
				return nil, err
			}
			res.Updated += len(vectors)
		}

		remaining -= take
		if len(targets) < take {
			break
		}
	}

	b.metrics.RecordBackfill(string(scope), res.Updated)
	b.logger.InfoContext(ctx, "backfill finished",
		"namespace", res.Namespace,
		"scope", string(res.Scope),
		"updated", res.Updated,
		"skipped", res.Skipped,
		"dry_run", res.DryRun,
	)
	return res, nil
}
