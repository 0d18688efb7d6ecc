package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

func (m *Manager) initHTTPMetrics(f factory, cfg Config) {
	m.httpRequests = f.counterVec("http_requests_total",
		"Total number of HTTP requests", "method", "path", "status")
	m.httpDuration = f.histogramVec("http_request_duration_seconds",
		"HTTP request duration in seconds", cfg.HTTPDurationBuckets, "method", "path")
	m.httpConnections = f.gauge("http_active_connections",
		"Current number of in-flight HTTP requests")
}

// RecordHTTPRequest records an HTTP request. When ctx carries a sampled
// span the latency observation is attached as an exemplar.
func (m *Manager) RecordHTTPRequest(ctx context.Context, method, path, status string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	observeWithExemplar(ctx, m.httpDuration.WithLabelValues(method, path), duration.Seconds())
}

// IncActiveConnections increments the in-flight request gauge.
func (m *Manager) IncActiveConnections() {
	if !m.Enabled() {
		return
	}
	m.httpConnections.Inc()
}

// DecActiveConnections decrements the in-flight request gauge.
func (m *Manager) DecActiveConnections() {
	if !m.Enabled() {
		return
	}
	m.httpConnections.Dec()
}

func observeWithExemplar(ctx context.Context, obs prometheus.Observer, value float64) {
	if labels, ok := traceExemplarLabels(ctx); ok {
		if eo, ok := obs.(prometheus.ExemplarObserver); ok {
			eo.ObserveWithExemplar(value, labels)
			return
		}
	}
	obs.Observe(value)
}

func traceExemplarLabels(ctx context.Context) (prometheus.Labels, bool) {
	if ctx == nil {
		return nil, false
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil, false
	}
	return prometheus.Labels{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	}, true
}
