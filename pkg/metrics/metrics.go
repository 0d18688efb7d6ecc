// Package metrics exposes memvault's Prometheus collectors. A nil or
// disabled Manager accepts every Record call and does nothing.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "memvault"

// Manager owns a private registry and every collector memvault exposes.
type Manager struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpConnections prometheus.Gauge

	recallRequests  *prometheus.CounterVec
	recallDuration  *prometheus.HistogramVec
	recallResults   prometheus.Histogram
	rerankFallbacks prometheus.Counter
	ingestedRecords *prometheus.CounterVec
	chunksProduced  prometheus.Counter

	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	embeddingCache   *prometheus.CounterVec

	compactionRuns     *prometheus.CounterVec
	compactionArchived prometheus.Counter
	dedupGroups        prometheus.Counter
	dedupDeleted       prometheus.Counter
	backfillUpdated    *prometheus.CounterVec

	authDecisions *prometheus.CounterVec
	feedClients   prometheus.Gauge
}

// Config holds metrics configuration. Empty bucket lists use the defaults.
type Config struct {
	Enabled bool
	Port    int
	Path    string

	HTTPDurationBuckets     []float64
	RecallDurationBuckets   []float64
	ProviderDurationBuckets []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:                 true,
		Port:                    9091,
		Path:                    "/metrics",
		HTTPDurationBuckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		RecallDurationBuckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ProviderDurationBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}
}

func orDefault(buckets, def []float64) []float64 {
	if len(buckets) == 0 {
		return def
	}
	return buckets
}

// NewManager registers every collector on a fresh registry. A disabled
// config yields the same Manager as NoOpManager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return NoOpManager()
	}
	def := DefaultConfig()
	cfg.HTTPDurationBuckets = orDefault(cfg.HTTPDurationBuckets, def.HTTPDurationBuckets)
	cfg.RecallDurationBuckets = orDefault(cfg.RecallDurationBuckets, def.RecallDurationBuckets)
	cfg.ProviderDurationBuckets = orDefault(cfg.ProviderDurationBuckets, def.ProviderDurationBuckets)

	m := &Manager{registry: prometheus.NewRegistry()}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := factory{promauto.With(m.registry)}
	m.initHTTPMetrics(f, cfg)
	m.initMemoryMetrics(f, cfg)
	m.initProviderMetrics(f, cfg)
	m.initMaintenanceMetrics(f)
	m.initAuthMetrics(f)
	return m
}

// NoOpManager returns a Manager that records nothing.
func NoOpManager() *Manager {
	return &Manager{}
}

// Enabled reports whether m records anything.
func (m *Manager) Enabled() bool {
	return m != nil && m.registry != nil
}

// Registry exposes the underlying registry, nil when disabled.
func (m *Manager) Registry() *prometheus.Registry {
	if !m.Enabled() {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text or OpenMetrics format.
// Disabled managers answer 404.
func (m *Manager) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StartServer serves Handler at path on its own port until ctx is done.
func (m *Manager) StartServer(ctx context.Context, port int, path string) error {
	if !m.Enabled() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// factory builds memvault-namespaced collectors registered on one registry.
type factory struct {
	auto promauto.Factory
}

func (f factory) counter(name, help string) prometheus.Counter {
	return f.auto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
}

func (f factory) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return f.auto.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func (f factory) gauge(name, help string) prometheus.Gauge {
	return f.auto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

func (f factory) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return f.auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: name, Help: help, Buckets: buckets,
	})
}

func (f factory) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return f.auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: name, Help: help, Buckets: buckets,
	}, labels)
}
