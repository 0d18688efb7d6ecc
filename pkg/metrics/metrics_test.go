package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewManager(t *testing.T) {
	m := NewManager(DefaultConfig())
	if !m.Enabled() {
		t.Error("expected metrics to be enabled")
	}
	if m.Registry() == nil {
		t.Error("expected a registry")
	}
}

func TestNewManager_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	m := NewManager(cfg)
	if m.Enabled() {
		t.Error("expected metrics to be disabled")
	}
	if m.Registry() != nil {
		t.Error("disabled manager must not expose a registry")
	}
}

func TestNewManager_EmptyBucketsUseDefaults(t *testing.T) {
	m := NewManager(Config{Enabled: true, Port: 1, Path: "/m"})
	m.RecordRecall(context.Background(), "knowledge", false, 1, time.Millisecond)
	if got := testutil.CollectAndCount(m.recallDuration); got != 1 {
		t.Errorf("expected one recall duration series, got %d", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.RecordRecall(context.Background(), "events", true, 3, 40*time.Millisecond)
	m.RecordRerankFallback()
	m.RecordIngest("knowledge_items", 4)
	m.RecordProviderCall("embed", "openai", nil, 100*time.Millisecond)
	m.RecordCompaction(nil, 80)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, metric := range []string{
		"memvault_recall_requests_total",
		"memvault_recall_duration_seconds",
		"memvault_rerank_fallbacks_total",
		"memvault_ingested_records_total",
		"memvault_provider_calls_total",
		"memvault_compaction_archived_events_total",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("expected metric %s in output", metric)
		}
	}
}

func TestMetricsHandler_Disabled(t *testing.T) {
	m := NoOpManager()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 when disabled, got %d", w.Code)
	}
}

func TestRecordValues(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.RecordRecall(context.Background(), "knowledge", true, 2, time.Millisecond)
	m.RecordRecall(context.Background(), "knowledge", true, 2, time.Millisecond)
	if got := testutil.ToFloat64(m.recallRequests.WithLabelValues("knowledge", "true")); got != 2 {
		t.Errorf("expected 2 reranked knowledge recalls, got %v", got)
	}

	m.RecordIngest("events", 3)
	m.RecordIngest("events", 0)
	if got := testutil.ToFloat64(m.ingestedRecords.WithLabelValues("events")); got != 3 {
		t.Errorf("expected 3 ingested events, got %v", got)
	}

	m.RecordProviderCall("rerank", "ollama", errors.New("boom"), time.Second)
	if got := testutil.ToFloat64(m.providerCalls.WithLabelValues("rerank", "ollama", "error")); got != 1 {
		t.Errorf("expected 1 failed rerank call, got %v", got)
	}

	m.RecordEmbeddingCache(true)
	m.RecordEmbeddingCache(false)
	m.RecordEmbeddingCache(true)
	if got := testutil.ToFloat64(m.embeddingCache.WithLabelValues("hit")); got != 2 {
		t.Errorf("expected 2 cache hits, got %v", got)
	}

	m.RecordCompaction(errors.New("llm down"), 0)
	if got := testutil.ToFloat64(m.compactionRuns.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed compaction, got %v", got)
	}

	m.RecordDedup(2, 5)
	if got := testutil.ToFloat64(m.dedupDeleted); got != 5 {
		t.Errorf("expected 5 dedup deletions, got %v", got)
	}

	m.RecordAuth("forbidden")
	if got := testutil.ToFloat64(m.authDecisions.WithLabelValues("forbidden")); got != 1 {
		t.Errorf("expected 1 forbidden decision, got %v", got)
	}

	m.SetFeedClients(3)
	if got := testutil.ToFloat64(m.feedClients); got != 3 {
		t.Errorf("expected 3 feed clients, got %v", got)
	}
}

func TestStartServer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 19191

	m := NewManager(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		if err := m.StartServer(ctx, cfg.Port, cfg.Path); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get("http://localhost:19191/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		t.Errorf("server error: %v", err)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestNoOpManager(t *testing.T) {
	m := NoOpManager()
	if m.Enabled() {
		t.Error("NoOpManager should not be enabled")
	}

	// None of these may panic.
	m.RecordHTTPRequest(context.Background(), "GET", "/health", "200", time.Millisecond)
	m.IncActiveConnections()
	m.DecActiveConnections()
	m.RecordRecall(context.Background(), "knowledge", false, 0, time.Millisecond)
	m.RecordRerankFallback()
	m.RecordIngest("events", 1)
	m.RecordChunks(2)
	m.RecordProviderCall("embed", "none", nil, 0)
	m.RecordEmbeddingCache(true)
	m.RecordCompaction(nil, 1)
	m.RecordDedup(1, 1)
	m.RecordBackfill("knowledge", 1)
	m.RecordAuth("allowed")
	m.SetFeedClients(1)

	var nilManager *Manager
	nilManager.RecordRerankFallback()
	if nilManager.Enabled() {
		t.Error("nil manager must report disabled")
	}
}

func BenchmarkRecordHTTPRequest(b *testing.B) {
	m := NewManager(DefaultConfig())
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordHTTPRequest(ctx, "POST", "/recall", "200", 10*time.Millisecond)
	}
}

func BenchmarkNoOpRecording(b *testing.B) {
	m := NoOpManager()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordRecall(ctx, "knowledge", true, 5, time.Millisecond)
	}
}
