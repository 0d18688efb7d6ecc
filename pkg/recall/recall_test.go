package recall

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/metrics"
	"github.com/memvault/memvault/pkg/provider"
	"github.com/memvault/memvault/pkg/storage"
)

const dim = 3

type fakeStore struct {
	candidates []storage.Candidate
	slugs      map[string]string
	lastQuery  storage.NeighborQuery
}

func (f *fakeStore) EntityIDBySlug(_ context.Context, _, slug string) (string, error) {
	if id, ok := f.slugs[slug]; ok {
		return id, nil
	}
	return "", &storage.NotFoundError{EntityType: "entity", ID: slug}
}

func (f *fakeStore) NamespaceExists(_ context.Context, name string) (bool, error) {
	return name == "default", nil
}

func (f *fakeStore) Query(context.Context, storage.QueryFilter) ([]storage.QueryRecord, error) {
	return nil, nil
}

func (f *fakeStore) NearestNeighbors(_ context.Context, q storage.NeighborQuery) ([]storage.Candidate, error) {
	f.lastQuery = q
	out := f.candidates
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) Mode() string { return provider.ModeOpenAI }

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

type fakeReranker struct {
	scores func(docs []string) []float64
	err    error
	calls  int
}

func (f *fakeReranker) Mode() string { return provider.ModeOllama }

func (f *fakeReranker) Rerank(_ context.Context, _ string, docs []string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scores(docs), nil
}

// candidates returns n hits in ascending distance; doc i is "doc-i".
func candidates(n int) []storage.Candidate {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]storage.Candidate, n)
	for i := range out {
		out[i] = storage.Candidate{
			ID:        "id-" + string(rune('a'+i)),
			Scope:     memory.ScopeKnowledge,
			Distance:  float64(i) * 0.1,
			Text:      "doc-" + string(rune('a'+i)),
			Snippet:   "doc-" + string(rune('a'+i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func newEngine(store storage.SearchStore, e provider.Embedder, r provider.Reranker) *Engine {
	cfg := DefaultConfig()
	cfg.Dimension = dim
	return NewEngine(store, e, r, cfg, metrics.NewManager(metrics.DefaultConfig()), logger.Nop())
}

func TestClampTopK(t *testing.T) {
	assert.Equal(t, 5, ClampTopK(0, 5))
	assert.Equal(t, 1, ClampTopK(-3, 5))
	assert.Equal(t, 50, ClampTopK(500, 5))
	assert.Equal(t, 7, ClampTopK(7, 5))
}

func TestRecall_VectorOnly(t *testing.T) {
	store := &fakeStore{candidates: candidates(10)}
	eng := newEngine(store, nil, nil)

	res, err := eng.Recall(context.Background(), Request{
		Namespace:      "default",
		QueryEmbedding: []float32{1, 0, 0},
		TopK:           3,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, store.lastQuery.Limit, "no reranker means no oversampling")
	assert.False(t, res.Reranked)
	require.Len(t, res.Items, 3)
	assert.Equal(t, "id-a", res.Items[0].ID)
	assert.Nil(t, res.Items[0].RerankerScore)
	assert.Equal(t, memory.ScopeKnowledge, res.Scope)
}

func TestRecall_Reranked(t *testing.T) {
	store := &fakeStore{candidates: candidates(8)}
	rr := &fakeReranker{scores: func(docs []string) []float64 {
		out := make([]float64, len(docs))
		for i := range docs {
			out[i] = float64(i) / 10 // reverse of distance order
		}
		return out
	}}
	eng := newEngine(store, fakeEmbedder{}, rr)

	res, err := eng.Recall(context.Background(), Request{Namespace: "default", QueryText: "q", TopK: 2})
	require.NoError(t, err)

	assert.Equal(t, 8, store.lastQuery.Limit, "topK times multiplier")
	assert.True(t, res.Reranked)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "id-h", res.Items[0].ID)
	assert.Equal(t, "id-g", res.Items[1].ID)
	require.NotNil(t, res.Items[0].RerankerScore)
	assert.InDelta(t, 0.7, *res.Items[0].RerankerScore, 1e-9)
}

func TestRecall_RerankTiesNewestFirst(t *testing.T) {
	store := &fakeStore{candidates: candidates(4)}
	rr := &fakeReranker{scores: func(docs []string) []float64 { return make([]float64, len(docs)) }}
	eng := newEngine(store, fakeEmbedder{}, rr)

	res, err := eng.Recall(context.Background(), Request{Namespace: "default", QueryText: "q", TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, "id-d", res.Items[0].ID)
	assert.Equal(t, "id-c", res.Items[1].ID)
}

func TestRecall_RerankFallback(t *testing.T) {
	store := &fakeStore{candidates: candidates(8)}
	rr := &fakeReranker{err: errors.New("model offline")}
	eng := newEngine(store, fakeEmbedder{}, rr)

	res, err := eng.Recall(context.Background(), Request{Namespace: "default", QueryText: "q", TopK: 3})
	require.NoError(t, err, "rerank failure must degrade, not fail")

	assert.Equal(t, 1, rr.calls)
	assert.False(t, res.Reranked)
	require.Len(t, res.Items, 3)
	for i, id := range []string{"id-a", "id-b", "id-c"} {
		assert.Equal(t, id, res.Items[i].ID)
		assert.Nil(t, res.Items[i].RerankerScore)
	}
}

func TestRecall_RerankWrongLength(t *testing.T) {
	store := &fakeStore{candidates: candidates(8)}
	rr := &fakeReranker{scores: func([]string) []float64 { return []float64{1} }}
	eng := newEngine(store, fakeEmbedder{}, rr)

	res, err := eng.Recall(context.Background(), Request{Namespace: "default", QueryText: "q", TopK: 2})
	require.NoError(t, err)
	assert.False(t, res.Reranked)
	assert.Equal(t, "id-a", res.Items[0].ID)
}

func TestRecall_SkipsRerankWhenFewCandidates(t *testing.T) {
	store := &fakeStore{candidates: candidates(2)}
	rr := &fakeReranker{scores: func(docs []string) []float64 { return make([]float64, len(docs)) }}
	eng := newEngine(store, fakeEmbedder{}, rr)

	res, err := eng.Recall(context.Background(), Request{Namespace: "default", QueryText: "q", TopK: 5})
	require.NoError(t, err)
	assert.Zero(t, rr.calls)
	assert.Len(t, res.Items, 2)
}

func TestRecall_Errors(t *testing.T) {
	store := &fakeStore{candidates: candidates(3), slugs: map[string]string{"proj": "p1"}}

	tests := []struct {
		name     string
		embedder provider.Embedder
		req      Request
		want     error
	}{
		{"no query", nil, Request{Namespace: "default"}, memory.ErrValidation},
		{"embedder none", nil, Request{Namespace: "default", QueryText: "q"}, memory.ErrProviderUnavailable},
		{"embedder fails", fakeEmbedder{err: memory.ErrProviderError}, Request{Namespace: "default", QueryText: "q"}, memory.ErrProviderError},
		{"wrong dimension", nil, Request{Namespace: "default", QueryEmbedding: []float32{1, 2}}, memory.ErrValidation},
		{"unknown namespace", nil, Request{Namespace: "other", QueryEmbedding: []float32{1, 0, 0}}, memory.ErrNotFound},
		{"unknown scope", nil, Request{Namespace: "default", Scope: "notes", QueryEmbedding: []float32{1, 0, 0}}, memory.ErrValidation},
		{"unknown project", nil, Request{Namespace: "default", QueryEmbedding: []float32{1, 0, 0}, ProjectSlug: "nope"}, memory.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newEngine(store, tt.embedder, nil)
			_, err := eng.Recall(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRecall_Filters(t *testing.T) {
	store := &fakeStore{candidates: candidates(1), slugs: map[string]string{"proj": "p1", "bot": "a1"}}
	eng := newEngine(store, nil, nil)

	_, err := eng.Recall(context.Background(), Request{
		Namespace:       "default",
		Scope:           memory.ScopeEvents,
		QueryEmbedding:  []float32{0, 1, 0},
		ProjectSlug:     "proj",
		EntitySlug:      "bot",
		IncludeArchived: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", store.lastQuery.ProjectID)
	assert.Equal(t, "a1", store.lastQuery.EntityID)
	assert.Equal(t, memory.ScopeEvents, store.lastQuery.Scope)
	assert.True(t, store.lastQuery.IncludeArchived)
}

func TestRecall_ClipsSnippets(t *testing.T) {
	c := candidates(1)
	c[0].Snippet = strings.Repeat("x", 2000)
	eng := newEngine(&fakeStore{candidates: c}, nil, nil)

	res, err := eng.Recall(context.Background(), Request{Namespace: "default", QueryEmbedding: []float32{1, 0, 0}})
	require.NoError(t, err)
	snippet := res.Items[0].Snippet
	assert.Len(t, []rune(snippet), 900)
	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.NotNil(t, res.Items[0].Tags)
}
