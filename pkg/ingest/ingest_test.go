package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/pkg/chunker"
	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/provider"
	"github.com/memvault/memvault/pkg/recall"
	"github.com/memvault/memvault/pkg/storage"
	"github.com/memvault/memvault/pkg/storage/sqlite"
)

const dim = 26

// letterEmbedder maps text to its letter histogram.
type letterEmbedder struct {
	calls int
	err   error
}

func (e *letterEmbedder) Mode() string { return provider.ModeOllama }

func (e *letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return histogram(text), nil
}

func histogram(text string) []float32 {
	v := make([]float32, dim)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	v[0] += 0.01
	return v
}

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(sqlite.Config{Path: t.TempDir() + "/memvault.db"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.CreateNamespace(context.Background(), "default")
	require.NoError(t, err)
	return store
}

func newService(store storage.IngestStore, e provider.Embedder, opts ...Option) *Service {
	return NewService(store, e, chunker.New(800, 0), dim, nil, logger.Nop(), opts...)
}

func longText() string {
	return strings.Join([]string{
		strings.TrimSpace(strings.Repeat("alpha beta gamma. ", 40)),
		strings.TrimSpace(strings.Repeat("xray yankee zulu. ", 40)),
		strings.TrimSpace(strings.Repeat("kilo lima mike. ", 10)),
	}, "\n\n")
}

func TestIngest_ChunksThenRecalls(t *testing.T) {
	store := newStore(t)
	emb := &letterEmbedder{}
	text := longText()
	require.GreaterOrEqual(t, len([]rune(text)), 1600)

	res, err := newService(store, emb).Ingest(context.Background(), &Request{
		Namespace:      "default",
		KnowledgeItems: []KnowledgeInput{{Content: text, Source: "doc", Tags: []string{"spec"}}},
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Counts.KnowledgeItems, 2)
	assert.Equal(t, res.Counts.KnowledgeItems, emb.calls, "one embedding per chunk")

	items, err := store.KnowledgeItems(context.Background(), "default", 10)
	require.NoError(t, err)
	var joined []string
	for _, it := range items {
		assert.LessOrEqual(t, len([]rune(it.Content)), 800)
		assert.Len(t, it.Embedding, dim)
		joined = append(joined, it.Content)
	}
	strip := func(s string) string {
		return strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, s)
	}
	assert.Equal(t, strip(text), strip(strings.Join(joined, "")), "chunks reproduce the input")

	eng := recall.NewEngine(store, emb, nil, recall.Config{Dimension: dim}, nil, logger.Nop())
	got, err := eng.Recall(context.Background(), recall.Request{
		Namespace: "default",
		QueryText: strings.Repeat("xray yankee zulu. ", 3),
		TopK:      1,
	})
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, strings.HasPrefix(got.Items[0].Snippet, "xray yankee zulu."))
	assert.Equal(t, []string{"spec"}, got.Items[0].Tags)
}

func TestIngest_SplitsAtCeiling(t *testing.T) {
	store := newStore(t)
	text := strings.Repeat("a", 799) + " " + strings.Repeat("b", 800)

	res, err := newService(store, nil).Ingest(context.Background(), &Request{
		Namespace:      "default",
		KnowledgeItems: []KnowledgeInput{{Content: text, Source: "doc", Tags: []string{"spec", "v2"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Counts.KnowledgeItems)

	items, err := store.KnowledgeItems(context.Background(), "default", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	var contents []string
	for _, it := range items {
		assert.Equal(t, []string{"spec", "v2"}, it.Tags)
		assert.Equal(t, "doc", it.Source)
		contents = append(contents, it.Content)
	}
	assert.ElementsMatch(t, []string{strings.Repeat("a", 799), strings.Repeat("b", 800)}, contents)
}

func TestIngest_ExplicitEmbeddingReusedPerChunk(t *testing.T) {
	store := newStore(t)
	emb := &letterEmbedder{}
	vec := histogram("explicit")

	res, err := newService(store, emb).Ingest(context.Background(), &Request{
		Namespace:      "default",
		KnowledgeItems: []KnowledgeInput{{Content: longText(), Embedding: vec}},
	})
	require.NoError(t, err)
	assert.Zero(t, emb.calls)

	items, err := store.KnowledgeItems(context.Background(), "default", 10)
	require.NoError(t, err)
	require.Len(t, items, res.Counts.KnowledgeItems)
	for _, it := range items {
		assert.Equal(t, vec, it.Embedding)
	}
}

func TestIngest_NoneModeStoresNoVectors(t *testing.T) {
	store := newStore(t)
	res, err := newService(store, nil).Ingest(context.Background(), &Request{
		Namespace:    "default",
		Entities:     []EntityInput{{Slug: "memvault", Type: "project", Name: "memvault"}},
		Requirements: []RequirementInput{{ProjectSlug: "memvault", Title: "ship recall"}},
		Events:       []EventInput{{ProjectSlug: "memvault", Title: "started", SessionID: "s1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, storage.IngestCounts{Entities: 1, Requirements: 1, Events: 1}, res.Counts)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.MissingVectors)

	events, err := store.SessionEvents(context.Background(), storage.SessionFilter{Namespace: "default", SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "note", events[0].Type)
	assert.NotEmpty(t, events[0].ProjectID)
}

func TestIngest_Validation(t *testing.T) {
	store := newStore(t)
	short := []float32{1, 2}

	tests := []struct {
		name string
		req  Request
		want error
		msg  string
	}{
		{"bad entity type", Request{Namespace: "default", Entities: []EntityInput{{Slug: "x", Type: "robot", Name: "x"}}}, memory.ErrValidation, "Entities[0].Type"},
		{"missing title", Request{Namespace: "default", Events: []EventInput{{Body: "b"}}}, memory.ErrValidation, "Events[0].Title is required"},
		{"bad priority", Request{Namespace: "default", Requirements: []RequirementInput{{Title: "t", Priority: "urgent"}}}, memory.ErrValidation, "Priority"},
		{"wrong dimension", Request{Namespace: "default", KnowledgeItems: []KnowledgeInput{{Content: "c", Embedding: short}}}, memory.ErrValidation, "knowledge_items[0]"},
		{"unknown slug", Request{Namespace: "default", Events: []EventInput{{Title: "t", AgentSlug: "ghost"}}}, memory.ErrNotFound, ""},
		{"unknown namespace", Request{Namespace: "nope", Events: []EventInput{{Title: "t"}}}, memory.ErrNotFound, ""},
		{"too many records", Request{Namespace: "default", Events: make([]EventInput, MaxRecords+1)}, memory.ErrValidation, "at most 1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newService(store, nil).Ingest(context.Background(), &tt.req)
			require.ErrorIs(t, err, tt.want)
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Events+stats.Requirements+stats.KnowledgeItems+stats.Entities, "failed batches write nothing")
}

func TestIngest_EmbedFailureAbortsBatch(t *testing.T) {
	store := newStore(t)
	emb := &letterEmbedder{err: errors.Join(memory.ErrProviderError, errors.New("rate limited"))}

	_, err := newService(store, emb).Ingest(context.Background(), &Request{
		Namespace: "default",
		Entities:  []EntityInput{{Slug: "a", Type: "agent", Name: "a"}},
		Events:    []EventInput{{Title: "t"}},
	})
	require.ErrorIs(t, err, memory.ErrProviderError)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Entities)
}

func TestIngest_Callback(t *testing.T) {
	store := newStore(t)
	var got *Result
	svc := newService(store, nil, OnIngested(func(_ context.Context, r *Result) { got = r }))

	_, err := svc.Ingest(context.Background(), &Request{Namespace: "default", Events: []EventInput{{Title: "t"}}})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Counts.Events)
}

func seedUnembedded(t *testing.T, store *sqlite.Store, n int) {
	t.Helper()
	req := &Request{Namespace: "default"}
	for i := 0; i < n; i++ {
		req.Requirements = append(req.Requirements, RequirementInput{Title: strings.Repeat("r", i+1)})
	}
	req.Requirements = append(req.Requirements, RequirementInput{Title: "   "})
	_, err := newService(store, nil).Ingest(context.Background(), req)
	require.NoError(t, err)
}

func TestBackfill(t *testing.T) {
	store := newStore(t)
	seedUnembedded(t, store, 5)
	emb := &letterEmbedder{}
	b := NewBackfiller(store, emb, dim, nil, logger.Nop())
	ctx := context.Background()

	dry, err := b.Backfill(ctx, BackfillRequest{Namespace: "default", Scope: memory.ScopeRequirements, BatchSize: 2, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 5, dry.Updated)
	assert.Equal(t, 1, dry.Skipped)
	assert.True(t, dry.DryRun)
	assert.Zero(t, emb.calls)

	first, err := b.Backfill(ctx, BackfillRequest{Namespace: "default", Scope: memory.ScopeRequirements, Limit: 3, BatchSize: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, first.Updated, 3)

	rest, err := b.Backfill(ctx, BackfillRequest{Namespace: "default", Scope: memory.ScopeRequirements, BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, first.Updated+rest.Updated)

	again, err := b.Backfill(ctx, BackfillRequest{Namespace: "default", Scope: memory.ScopeRequirements})
	require.NoError(t, err)
	assert.Zero(t, again.Updated, "idempotent once everything is embedded")
	assert.Equal(t, 1, again.Skipped)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MissingVectors)
}

func TestBackfill_Errors(t *testing.T) {
	store := newStore(t)
	seedUnembedded(t, store, 1)

	_, err := NewBackfiller(store, nil, dim, nil, logger.Nop()).Backfill(context.Background(), BackfillRequest{Namespace: "default"})
	assert.ErrorIs(t, err, memory.ErrProviderUnavailable)

	b := NewBackfiller(store, &letterEmbedder{}, dim, nil, logger.Nop())
	_, err = b.Backfill(context.Background(), BackfillRequest{Namespace: "default", Scope: "notes"})
	assert.ErrorIs(t, err, memory.ErrValidation)

	_, err = b.Backfill(context.Background(), BackfillRequest{Namespace: "nope"})
	assert.ErrorIs(t, err, memory.ErrNotFound)

	b = NewBackfiller(store, &letterEmbedder{}, 3, nil, logger.Nop())
	_, err = b.Backfill(context.Background(), BackfillRequest{Namespace: "default", Scope: memory.ScopeRequirements})
	assert.ErrorIs(t, err, memory.ErrProviderError)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, DefaultBackfillLimit, clamp(0, DefaultBackfillLimit, 1, MaxBackfillLimit))
	assert.Equal(t, 1, clamp(-5, DefaultBackfillLimit, 1, MaxBackfillLimit))
	assert.Equal(t, MaxBatchSize, clamp(10000, DefaultBatchSize, 1, MaxBatchSize))
}
