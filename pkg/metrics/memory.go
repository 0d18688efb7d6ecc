package metrics

import (
	"context"
	"strconv"
	"time"
)

func (m *Manager) initMemoryMetrics(f factory, cfg Config) {
	m.recallRequests = f.counterVec("recall_requests_total",
		"Recall requests by scope and whether reranking ran", "scope", "reranked")
	m.recallDuration = f.histogramVec("recall_duration_seconds",
		"End-to-end recall latency in seconds", cfg.RecallDurationBuckets, "scope")
	m.recallResults = f.histogram("recall_results",
		"Number of items returned per recall", []float64{0, 1, 2, 5, 10, 20, 50})
	m.rerankFallbacks = f.counter("rerank_fallbacks_total",
		"Recalls that fell back to similarity order after a reranker failure")
	m.ingestedRecords = f.counterVec("ingested_records_total",
		"Records written by ingest, by kind", "kind")
	m.chunksProduced = f.counter("knowledge_chunks_total",
		"Knowledge chunks produced by the chunker")
}

// RecordRecall records one completed recall.
func (m *Manager) RecordRecall(ctx context.Context, scope string, reranked bool, results int, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.recallRequests.WithLabelValues(scope, strconv.FormatBool(reranked)).Inc()
	observeWithExemplar(ctx, m.recallDuration.WithLabelValues(scope), duration.Seconds())
	m.recallResults.Observe(float64(results))
}

// RecordRerankFallback counts a reranker failure that was absorbed.
func (m *Manager) RecordRerankFallback() {
	if !m.Enabled() {
		return
	}
	m.rerankFallbacks.Inc()
}

// RecordIngest adds written record counts by kind (entities, requirements,
// knowledge_items, events).
func (m *Manager) RecordIngest(kind string, n int) {
	if !m.Enabled() || n <= 0 {
		return
	}
	m.ingestedRecords.WithLabelValues(kind).Add(float64(n))
}

// RecordChunks adds to the produced chunk count.
func (m *Manager) RecordChunks(n int) {
	if !m.Enabled() || n <= 0 {
		return
	}
	m.chunksProduced.Add(float64(n))
}
