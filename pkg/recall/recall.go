// Package recall implements two-stage semantic retrieval. Stage one is a
// nearest-neighbour scan in the store. Stage two optionally reorders the
// candidates with a reranker and falls back to stage one order on failure.
package recall

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/metrics"
	"github.com/memvault/memvault/pkg/provider"
	"github.com/memvault/memvault/pkg/storage"
	"github.com/memvault/memvault/pkg/telemetry/tracing"
)

// Limits on top_k.
const (
	MinTopK = 1
	MaxTopK = 50
)

// Config tunes the engine.
type Config struct {
	DefaultTopK      int
	RerankMultiplier int
	MaxSnippetChars  int
	Dimension        int
}

// DefaultConfig returns the standard recall settings.
func DefaultConfig() Config {
	return Config{
		DefaultTopK:      5,
		RerankMultiplier: 4,
		MaxSnippetChars:  900,
		Dimension:        1536,
	}
}

// Request is one recall call.
type Request struct {
	Namespace       string       `json:"namespace"`
	Scope           memory.Scope `json:"scope"`
	QueryText       string       `json:"query_text,omitempty"`
	QueryEmbedding  []float32    `json:"query_embedding,omitempty"`
	TopK            int          `json:"top_k,omitempty"`
	ProjectSlug     string       `json:"project_slug,omitempty"`
	EntitySlug      string       `json:"entity_slug,omitempty"`
	IncludeArchived bool         `json:"include_archived,omitempty"`
}

// Item is one recalled record. Score is the cosine distance (lower is
// closer); RerankerScore is set only when stage two ran.
type Item struct {
	ID            string       `json:"id"`
	Scope         memory.Scope `json:"scope"`
	Score         float64      `json:"score"`
	RerankerScore *float64     `json:"reranker_score"`
	Snippet       string       `json:"snippet"`
	Tags          []string     `json:"tags"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Result is the recall response body.
type Result struct {
	Namespace string       `json:"namespace"`
	Scope     memory.Scope `json:"scope"`
	TopK      int          `json:"top_k"`
	Reranked  bool         `json:"reranked"`
	Items     []Item       `json:"items"`
}

// Engine serves recall requests.
type Engine struct {
	store    storage.SearchStore
	embedder provider.Embedder
	reranker provider.Reranker
	cfg      Config
	metrics  *metrics.Manager
	logger   logger.Logger
}

// NewEngine creates an engine. A nil embedder or reranker means mode none.
func NewEngine(store storage.SearchStore, embedder provider.Embedder, reranker provider.Reranker, cfg Config, m *metrics.Manager, log logger.Logger) *Engine {
	def := DefaultConfig()
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = def.DefaultTopK
	}
	if cfg.RerankMultiplier <= 0 {
		cfg.RerankMultiplier = def.RerankMultiplier
	}
	if cfg.MaxSnippetChars <= 0 {
		cfg.MaxSnippetChars = def.MaxSnippetChars
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = def.Dimension
	}
	if embedder == nil {
		embedder = provider.NoneEmbedder()
	}
	if reranker == nil {
		reranker = provider.NoneReranker()
	}
	if log == nil {
		log = logger.Global()
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		reranker: reranker,
		cfg:      cfg,
		metrics:  m,
		logger:   log.With("component", "recall"),
	}
}

// ClampTopK applies the default and the 1..50 bounds.
func ClampTopK(topK, def int) int {
	if topK == 0 {
		topK = def
	}
	if topK < MinTopK {
		return MinTopK
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}

// Recall runs both stages.
func (e *Engine) Recall(ctx context.Context, req Request) (res *Result, err error) {
	scope, err := memory.ParseScope(string(req.Scope))
	if err != nil {
		return nil, err
	}
	topK := ClampTopK(req.TopK, e.cfg.DefaultTopK)

	ctx, span := tracing.Start(ctx, "recall.Recall",
		tracing.Namespace(req.Namespace),
		tracing.Scope(string(scope)),
		attribute.Int("memvault.top_k", topK),
	)
	start := time.Now()
	defer func() {
		if res != nil {
			e.metrics.RecordRecall(ctx, string(scope), res.Reranked, len(res.Items), time.Since(start))
		}
		tracing.End(span, err)
	}()

	ok, err := e.store.NamespaceExists(ctx, req.Namespace)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &storage.NotFoundError{EntityType: "namespace", ID: req.Namespace}
	}

	vector, err := e.queryVector(ctx, req)
	if err != nil {
		return nil, err
	}

	q := storage.NeighborQuery{
		Namespace:       req.Namespace,
		Scope:           scope,
		Vector:          vector,
		IncludeArchived: req.IncludeArchived,
		Limit:           topK,
	}
	if req.ProjectSlug != "" {
		if q.ProjectID, err = e.resolve(ctx, req.Namespace, req.ProjectSlug, "project_slug"); err != nil {
			return nil, err
		}
	}
	if req.EntitySlug != "" {
		if q.EntityID, err = e.resolve(ctx, req.Namespace, req.EntitySlug, "entity_slug"); err != nil {
			return nil, err
		}
	}

	rerank := provider.Available(e.reranker)
	if rerank {
		q.Limit = topK * e.cfg.RerankMultiplier
	}

	candidates, err := e.store.NearestNeighbors(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("nearest neighbours: %w", err)
	}

	var scores []float64
	if rerank && len(candidates) > topK {
		scores = e.rerank(ctx, req.QueryText, candidates)
		if scores != nil {
			candidates, scores = reorder(candidates, scores)
		}
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	res = &Result{
		Namespace: req.Namespace,
		Scope:     scope,
		TopK:      topK,
		Reranked:  scores != nil,
		Items:     make([]Item, 0, len(candidates)),
	}
	for i, c := range candidates {
		item := Item{
			ID:        c.ID,
			Scope:     c.Scope,
			Score:     c.Distance,
			Snippet:   memory.Clip(c.Snippet, e.cfg.MaxSnippetChars),
			Tags:      c.Tags,
			CreatedAt: c.CreatedAt,
		}
		if item.Tags == nil {
			item.Tags = []string{}
		}
		if scores != nil {
			s := scores[i]
			item.RerankerScore = &s
		}
		res.Items = append(res.Items, item)
	}
	return res, nil
}

func (e *Engine) queryVector(ctx context.Context, req Request) ([]float32, error) {
	vector := req.QueryEmbedding
	if vector == nil {
		if req.QueryText == "" {
			return nil, fmt.Errorf("%w: either query_embedding or query_text is required", memory.ErrValidation)
		}
		v, err := e.embedder.Embed(ctx, req.QueryText)
		if err != nil {
			return nil, err
		}
		vector = v
	}
	if err := memory.CheckDimension(vector, e.cfg.Dimension); err != nil {
		return nil, fmt.Errorf("%w: query_embedding: %w", memory.ErrValidation, err)
	}
	return vector, nil
}

func (e *Engine) resolve(ctx context.Context, namespace, slug, field string) (string, error) {
	id, err := e.store.EntityIDBySlug(ctx, namespace, slug)
	if err != nil {
		return "", fmt.Errorf("%s %q: %w", field, slug, err)
	}
	return id, nil
}

// rerank scores every candidate, returning nil on failure.
func (e *Engine) rerank(ctx context.Context, query string, candidates []storage.Candidate) []float64 {
	if query == "" {
		return nil
	}
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Text
	}
	scores, err := e.reranker.Rerank(ctx, query, docs)
	if err == nil && len(scores) != len(docs) {
		err = fmt.Errorf("reranker returned %d scores for %d documents", len(scores), len(docs))
	}
	if err != nil {
		e.metrics.RecordRerankFallback()
		e.logger.WarnContext(ctx, "reranking failed, keeping vector order", "error", err, "candidates", len(docs))
		return nil
	}
	return scores
}

// reorder sorts candidates by score descending, newest first on ties.
func reorder(candidates []storage.Candidate, scores []float64) ([]storage.Candidate, []float64) {
	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		sa, sb := scores[idx[a]], scores[idx[b]]
		if sa != sb {
			return sa > sb
		}
		return candidates[idx[a]].CreatedAt.After(candidates[idx[b]].CreatedAt)
	})
	outC := make([]storage.Candidate, len(idx))
	outS := make([]float64, len(idx))
	for i, j := range idx {
		outC[i] = candidates[j]
		outS[i] = scores[j]
	}
	return outC, outS
}
