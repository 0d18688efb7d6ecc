package metrics

import "time"

func (m *Manager) initProviderMetrics(f factory, cfg Config) {
	m.providerCalls = f.counterVec("provider_calls_total",
		"Outbound model provider calls", "kind", "provider", "status")
	m.providerDuration = f.histogramVec("provider_call_duration_seconds",
		"Outbound model provider latency in seconds", cfg.ProviderDurationBuckets, "kind", "provider")
	m.embeddingCache = f.counterVec("embedding_cache_lookups_total",
		"Embedding cache lookups by result", "result")
}

// RecordProviderCall records one call to an embedder, summarizer or reranker.
func (m *Manager) RecordProviderCall(kind, provider string, err error, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.providerCalls.WithLabelValues(kind, provider, status).Inc()
	m.providerDuration.WithLabelValues(kind, provider).Observe(duration.Seconds())
}

// RecordEmbeddingCache records a cache hit or miss.
func (m *Manager) RecordEmbeddingCache(hit bool) {
	if !m.Enabled() {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.embeddingCache.WithLabelValues(result).Inc()
}
