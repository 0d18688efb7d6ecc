package compaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/pkg/chunker"
	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/provider"
	"github.com/memvault/memvault/pkg/storage"
	"github.com/memvault/memvault/pkg/storage/sqlite"
)

type fakeSummarizer struct {
	calls       atomic.Int32
	err         error
	reply       string
	transcripts []string
	mu          sync.Mutex
}

func (f *fakeSummarizer) Mode() string { return provider.ModeOpenAI }

func (f *fakeSummarizer) Summarize(_ context.Context, transcript string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.transcripts = append(f.transcripts, transcript)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.reply != "" {
		return f.reply, nil
	}
	return "Decisions: ship it. Next: monitor.", nil
}

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) Mode() string { return provider.ModeOpenAI }

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, f.err
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

// seedSession writes n events of one session, one minute apart.
func seedSession(t *testing.T, store *sqlite.Store, session string, n int) {
	t.Helper()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	batch := &storage.IngestBatch{Namespace: "default"}
	for i := 0; i < n; i++ {
		batch.Events = append(batch.Events, storage.EventRecord{Event: &memory.Event{
			Type:      "note",
			Title:     fmt.Sprintf("step %d", i),
			Body:      "worked on the parser",
			SessionID: session,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}})
	}
	_, err := store.IngestBatch(context.Background(), batch)
	require.NoError(t, err)
}

func newCompactor(store storage.CompactionStore, s provider.Summarizer, e provider.Embedder, opts ...Option) *Compactor {
	return NewCompactor(store, s, e, Config{MaxTranscriptChars: 20000, Chunker: chunker.New(800, 0), Dimension: 3}, nil, logger.Nop(), opts...)
}

func TestScheduler_NinetyEvents(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "s1", 90)
	seedSession(t, store, "s2", 10)

	sum := &fakeSummarizer{}
	var done []*Result
	c := newCompactor(store, sum, fakeEmbedder{}, OnCompacted(func(_ context.Context, r *Result) {
		done = append(done, r)
	}))
	s := NewScheduler(store, c, nil, SchedulerConfig{EventThreshold: 80, CharThreshold: 1 << 30}, logger.Nop())

	report := s.RunOnce(context.Background())
	assert.Equal(t, TickReport{Candidates: 1, Compacted: 1}, report)
	require.Len(t, done, 1)
	assert.Equal(t, 90, done[0].ArchivedEvents)
	assert.Equal(t, "s1", done[0].SessionID)

	remaining, err := store.SessionEvents(context.Background(), storage.SessionFilter{Namespace: "default", SessionID: "s1"})
	require.NoError(t, err)
	assert.Empty(t, remaining)

	untouched, err := store.SessionEvents(context.Background(), storage.SessionFilter{Namespace: "default", SessionID: "s2"})
	require.NoError(t, err)
	assert.Len(t, untouched, 10)

	items, err := store.KnowledgeItems(context.Background(), "default", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, done[0].SummaryID, items[0].ID)
	assert.Equal(t, []string{items[0].ID}, done[0].SummaryIDs)
	assert.ElementsMatch(t, []string{memory.TagSummary, memory.TagCompaction}, items[0].Tags)
	assert.Equal(t, memory.SourceSessionCompaction, items[0].Source)
	assert.Equal(t, "s1", items[0].SourceRef)
	assert.Len(t, items[0].Embedding, 3)

	// Idempotent: nothing left to do.
	again := s.RunOnce(context.Background())
	assert.Zero(t, again.Candidates)
	assert.EqualValues(t, 1, sum.calls.Load())
}

func TestScheduler_FailureLeavesSession(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "s1", 5)

	sum := &fakeSummarizer{err: fmt.Errorf("%w: boom", memory.ErrProviderError)}
	s := NewScheduler(store, newCompactor(store, sum, nil), nil, SchedulerConfig{EventThreshold: 3}, logger.Nop())

	report := s.RunOnce(context.Background())
	assert.Equal(t, 1, report.Failed)

	events, err := store.SessionEvents(context.Background(), storage.SessionFilter{Namespace: "default", SessionID: "s1"})
	require.NoError(t, err)
	assert.Len(t, events, 5, "failed compaction must not archive")

	sum.err = nil
	report = s.RunOnce(context.Background())
	assert.Equal(t, 1, report.Compacted, "retried on the next tick")
}

func TestSummarizeSession(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "s1", 4)
	c := newCompactor(store, &fakeSummarizer{}, fakeEmbedder{err: errors.New("down")})

	res, err := c.SummarizeSession(context.Background(), SessionRequest{Namespace: "default", SessionID: "s1", MaxEvents: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ArchivedEvents, "max_events bounds the batch")
	assert.NotEmpty(t, res.SummaryID)

	items, err := store.KnowledgeItems(context.Background(), "default", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].Embedding, "embedding failure is best effort")
}

func TestSummarizeSession_Errors(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "s1", 2)

	tests := []struct {
		name string
		sum  provider.Summarizer
		req  SessionRequest
		want error
	}{
		{"no session id", &fakeSummarizer{}, SessionRequest{Namespace: "default"}, memory.ErrValidation},
		{"summarizer none", provider.NoneSummarizer(), SessionRequest{Namespace: "default", SessionID: "s1"}, memory.ErrProviderUnavailable},
		{"unknown session", &fakeSummarizer{}, SessionRequest{Namespace: "default", SessionID: "nope"}, memory.ErrNotFound},
		{"unknown namespace", &fakeSummarizer{}, SessionRequest{Namespace: "other", SessionID: "s1"}, memory.ErrNotFound},
		{"unknown project", &fakeSummarizer{}, SessionRequest{Namespace: "default", SessionID: "s1", ProjectSlug: "ghost"}, memory.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newCompactor(store, tt.sum, nil).SummarizeSession(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	events, err := store.SessionEvents(context.Background(), storage.SessionFilter{Namespace: "default", SessionID: "s1"})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestSummarizeSession_ChunksLongSummary(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "s1", 1)
	words := strings.Repeat("decided to keep the parser ", 110)
	c := newCompactor(store, &fakeSummarizer{reply: words}, fakeEmbedder{})

	res, err := c.SummarizeSession(context.Background(), SessionRequest{Namespace: "default", SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, res.SummaryIDs, 4)
	assert.Equal(t, res.SummaryIDs[0], res.SummaryID)

	items, err := store.KnowledgeItems(context.Background(), "default", 10)
	require.NoError(t, err)
	require.Len(t, items, 4)

	ids := make([]string, 0, len(items))
	total := 0
	for _, it := range items {
		ids = append(ids, it.ID)
		total += len([]rune(it.Content))
		assert.LessOrEqual(t, len([]rune(it.Content)), 800)
		assert.Equal(t, "s1", it.SourceRef)
		assert.Equal(t, memory.SourceSessionCompaction, it.Source)
		assert.ElementsMatch(t, []string{memory.TagSummary, memory.TagCompaction}, it.Tags)
		assert.Len(t, it.Embedding, 3)
	}
	assert.ElementsMatch(t, res.SummaryIDs, ids)
	assert.Greater(t, total, 2900, "nothing is truncated")
}

func TestSummarizeSession_EmptySummary(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "s1", 2)
	c := newCompactor(store, &fakeSummarizer{reply: "   "}, nil)

	_, err := c.SummarizeSession(context.Background(), SessionRequest{Namespace: "default", SessionID: "s1"})
	assert.ErrorIs(t, err, memory.ErrProviderError)

	events, err := store.SessionEvents(context.Background(), storage.SessionFilter{Namespace: "default", SessionID: "s1"})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestTranscript(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	events := []*memory.Event{
		{Type: "decision", Title: "use sqlite", Body: "simpler ops", ContextSnippet: "infra", CreatedAt: at},
		{Type: "action", Title: "wrote schema", CreatedAt: at.Add(time.Minute)},
	}

	got := Transcript(events, 0)
	want := "[2026-03-01T09:00:00Z] (decision) use sqlite\nsimpler ops\nContext: infra\n\n[2026-03-01T09:01:00Z] (action) wrote schema"
	assert.Equal(t, want, got)

	short := Transcript(events, 45)
	assert.Equal(t, "[2026-03-01T09:01:00Z] (action) wrote schema", short, "oldest lines dropped first")

	tail := Transcript(events[1:], 12)
	assert.Equal(t, "wrote schema", tail)

	assert.Empty(t, Transcript(nil, 100))
}

func TestScheduler_StartStop(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "s1", 3)
	sum := &fakeSummarizer{}
	s := NewScheduler(store, newCompactor(store, sum, nil), nil, SchedulerConfig{Interval: time.Millisecond, EventThreshold: 2}, logger.Nop())
	assert.Equal(t, MinInterval, s.cfg.Interval)

	s.Start(context.Background())
	s.Start(context.Background())
	require.Eventually(t, func() bool { return sum.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	s.Stop()
	s.Stop()
}

type mockRedis struct {
	redis.Cmdable

	mu   sync.Mutex
	kv   map[string]string
	down bool
}

func newMockRedis() *mockRedis { return &mockRedis{kv: map[string]string{}} }

func (m *mockRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return redis.NewBoolResult(false, errors.New("connection refused"))
	}
	if _, ok := m.kv[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.kv[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kv[keys[0]] == fmt.Sprint(args[0]) {
		delete(m.kv, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestLease(t *testing.T) {
	client := newMockRedis()
	a := NewLease(client, "test:", time.Minute)
	b := NewLease(client, "test:", time.Minute)
	ctx := context.Background()

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Release(ctx))
	assert.Contains(t, client.kv, "test:compaction:lease", "only the holder may release")

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScheduler_LeaseHeldElsewhere(t *testing.T) {
	store := newStore(t)
	seedSession(t, store, "s1", 3)
	client := newMockRedis()

	other := NewLease(client, "", time.Minute)
	ok, err := other.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	sum := &fakeSummarizer{}
	s := NewScheduler(store, newCompactor(store, sum, nil), NewLease(client, "", time.Minute), SchedulerConfig{EventThreshold: 2}, logger.Nop())
	assert.True(t, s.RunOnce(context.Background()).Skipped)
	assert.Zero(t, sum.calls.Load())

	require.NoError(t, other.Release(context.Background()))
	assert.Equal(t, 1, s.RunOnce(context.Background()).Compacted)

	client.down = true
	assert.True(t, s.RunOnce(context.Background()).Skipped)
}
