package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/memvault/memvault/config"
	"github.com/memvault/memvault/pkg/api"
	"github.com/memvault/memvault/pkg/api/events"
	"github.com/memvault/memvault/pkg/api/handlers"
	"github.com/memvault/memvault/pkg/auth"
	"github.com/memvault/memvault/pkg/chunker"
	"github.com/memvault/memvault/pkg/compaction"
	"github.com/memvault/memvault/pkg/dedup"
	grpcserver "github.com/memvault/memvault/pkg/grpc"
	"github.com/memvault/memvault/pkg/ingest"
	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/metrics"
	"github.com/memvault/memvault/pkg/provider"
	"github.com/memvault/memvault/pkg/recall"
	"github.com/memvault/memvault/pkg/storage"
	"github.com/memvault/memvault/pkg/storage/badger"
	"github.com/memvault/memvault/pkg/storage/memory"
	"github.com/memvault/memvault/pkg/storage/sqlite"
	"github.com/memvault/memvault/pkg/telemetry/tracing"
	"github.com/memvault/memvault/pkg/version"
)

const defaultShutdownTimeout = 30 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background compaction scheduler",
		Long: `Run the memvault HTTP API.

Examples:
  memvault serve                                # Run with default config
  memvault serve --config memvault.yaml         # Use specific config file
  memvault serve --port 9000 --log-level debug  # Override specific options`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *options) error {
	cfg, err := config.Load(opts.configPath, buildOverrides(opts))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := newLogger(cfg)
	logger.SetGlobal(log)
	defer log.Close()

	log.Info("Starting memvault",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.configPath != "" {
		watchConfig(ctx, opts.configPath, cfg, log)
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	serverErr := a.start(ctx)

	log.Info("memvault is running",
		"http_port", cfg.Server.Port,
		"grpc_enabled", cfg.Server.GRPC.Enabled,
		"metrics_port", cfg.Metrics.Port,
		"compaction", cfg.CompactionActive(),
	)

	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case err := <-serverErr:
		log.Error("HTTP server error", "error", err)
	}

	timeout := cfg.Server.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("memvault stopped gracefully")
	return nil
}

func newLogger(cfg *config.Config) logger.Logger {
	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug {
		logCfg.Level = logger.DebugLevel
	}
	return logger.New(logCfg)
}

// watchConfig applies log level changes from the config file until ctx is
// done. Everything else needs a restart.
func watchConfig(ctx context.Context, path string, cfg *config.Config, log logger.Logger) {
	watcher, err := config.NewWatcher(path, config.NewLoader(),
		config.WithErrorHandler(func(err error) {
			log.Warn("Config reload failed", "error", err)
		}),
	)
	if err != nil {
		log.Warn("Config watcher disabled", "path", path, "error", err)
		return
	}

	current := config.ExtractHotReloadable(cfg)
	watcher.OnChange(func(next *config.Config) {
		hot := config.ExtractHotReloadable(next)
		if !current.Changed(hot) {
			return
		}
		if !cfg.App.Debug {
			log.SetLevel(logger.ParseLevel(hot.LogLevel))
		}
		log.Info("Config reloaded", "log_level", hot.LogLevel)
		current = hot
	})

	go func() {
		defer watcher.Stop()
		if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("Config watcher stopped", "error", err)
		}
	}()
}

// app is the assembled service graph.
type app struct {
	cfg *config.Config
	log logger.Logger

	metrics       *metrics.Manager
	traceShutdown tracing.ShutdownFunc
	store         *sqlite.Store
	cache         storage.EmbeddingCache
	keys          *auth.CredentialStore
	feed          *events.Broadcaster
	feedHandler   *handlers.FeedHandler
	redis         *redis.Client
	scheduler     *compaction.Scheduler
	http          *api.HTTPServer
	grpc          *grpcserver.Server

	// bootstrapKey is the admin secret minted on first start, if any.
	bootstrapKey string
}

// newApp builds every component from cfg. On error everything opened so far
// is closed.
func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.traceShutdown, err = tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	a.metrics = metrics.NoOpManager()
	if cfg.Metrics.Enabled {
		mcfg := metrics.DefaultConfig()
		mcfg.Port = cfg.Metrics.Port
		mcfg.Path = cfg.Metrics.Path
		a.metrics = metrics.NewManager(mcfg)
	}

	a.store, err = sqlite.Open(sqlite.Config{
		Path:        cfg.Storage.SQLite.Path,
		BusyTimeout: cfg.Storage.SQLite.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	log.Info("Initialized SQLite store", "path", cfg.Storage.SQLite.Path)

	a.cache, err = newEmbeddingCache(cfg.Storage.EmbeddingCache)
	if err != nil {
		return nil, err
	}

	pcfg := providerConfig(cfg)
	gw, err := provider.NewGateway(pcfg, a.cache, a.metrics, log)
	if err != nil {
		return nil, fmt.Errorf("failed to configure providers: %w", err)
	}

	a.keys, err = auth.NewCredentialStore(a.store, auth.Config{
		CacheSize: cfg.Auth.CacheSize,
		CacheTTL:  cfg.Auth.CacheTTL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}
	a.bootstrapKey, err = a.keys.Bootstrap(ctx, cfg.Auth.BootstrapNamespaces)
	if err != nil {
		return nil, err
	}

	// Caller-supplied vectors are stored even without an embedder, so the
	// dimension is reconciled on every start.
	dim := cfg.Embedding.Dimension
	reset, err := a.store.ResetMismatchedEmbeddings(ctx, dim)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile embedding dimension: %w", err)
	}
	for scope, n := range reset {
		if n > 0 {
			log.Warn("Cleared embeddings with a stale dimension; run a backfill",
				"scope", string(scope), "rows", n, "dimension", dim)
		}
	}

	a.feed = events.NewBroadcaster()
	gate := auth.NewGate(a.keys, a.metrics)

	ing := ingest.NewService(a.store, gw.Embedder,
		chunker.New(cfg.Chunking.MaxChars, cfg.Chunking.Lookback),
		dim, a.metrics, log, ingest.OnIngested(a.feed.Ingested))
	rec := recall.NewEngine(a.store, gw.Embedder, gw.Reranker, recall.Config{
		DefaultTopK:      cfg.Recall.DefaultTopK,
		RerankMultiplier: cfg.Recall.RerankMultiplier,
		MaxSnippetChars:  cfg.Recall.MaxSnippetChars,
		Dimension:        dim,
	}, a.metrics, log)
	comp := compaction.NewCompactor(a.store, gw.Summarizer, gw.Embedder, compactionConfig(cfg),
		a.metrics, log, compaction.OnCompacted(a.feed.Compacted))
	det := dedup.NewDetector(a.store, dedup.Config{
		DistanceThreshold: cfg.Dedup.DistanceThreshold,
		MaxItems:          cfg.Dedup.MaxItems,
	}, a.metrics, log)
	back := ingest.NewBackfiller(a.store, gw.Embedder, dim, a.metrics, log)

	if cfg.CompactionActive() {
		var lease *compaction.Lease
		if cfg.Compaction.Lease {
			a.redis = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Address,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err := a.redis.Ping(ctx).Err(); err != nil {
				return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Address, err)
			}
			lease = compaction.NewLease(a.redis, cfg.Redis.KeyPrefix, cfg.Compaction.Interval)
		}
		a.scheduler = compaction.NewScheduler(a.store, comp, lease, compaction.SchedulerConfig{
			Interval:       cfg.Compaction.Interval,
			EventThreshold: cfg.Compaction.EventThreshold,
			CharThreshold:  cfg.Compaction.CharThreshold,
		}, log)
	} else if cfg.Compaction.Enabled {
		log.Warn("Compaction scheduler disabled: no summarization provider configured")
	}

	a.feedHandler = handlers.NewFeedHandler(a.feed, handlers.FeedConfig{
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
		MaxConnections: cfg.Server.WebSocket.MaxConnections,
		PingInterval:   cfg.Server.WebSocket.PingInterval,
		PongTimeout:    cfg.Server.WebSocket.PongTimeout,
	}, a.metrics, log)

	h := &api.Handlers{
		Health: handlers.NewHealthHandler(a.store, func() map[string]provider.SlotStatus {
			return gw.Status(pcfg)
		}, cfg.CompactionActive(), log),
		Memory: handlers.NewMemoryHandler(gate, a.store, rec, ing, comp, handlers.MemoryConfig{
			MaxSnippetChars:   cfg.Recall.MaxSnippetChars,
			DefaultTopK:       cfg.Recall.DefaultTopK,
			EmbeddingProvider: gw.Embedder.Mode(),
			ChunkMaxChars:     cfg.Chunking.MaxChars,
			APIKeyHeader:      cfg.Auth.Header,
			BaseURL:           cfg.Server.PublicURL,
		}, log),
		Admin: handlers.NewAdminHandler(gate, a.store, a.keys, back, det, a.feed, log),
		Feed:  a.feedHandler,
		Gate:  gate,
	}
	if a.metrics.Enabled() {
		h.Metrics = a.metrics
	}
	a.http = api.NewHTTPServer(cfg, log, h)
	a.http.OnShutdown(a.feedHandler.Close)

	if cfg.Server.GRPC.Enabled {
		a.grpc, err = grpcserver.New(grpcserver.ConfigFrom(cfg), a.store, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC server: %w", err)
		}
	}

	return a, nil
}

func providerConfig(cfg *config.Config) provider.Config {
	return provider.Config{
		Embedding: provider.Slot{
			Mode:      cfg.Embedding.Provider,
			Model:     cfg.Embedding.Model,
			RateLimit: cfg.Embedding.RateLimit,
			Timeout:   cfg.Embedding.Timeout,
		},
		LLM: provider.Slot{
			Mode:      cfg.LLM.Provider,
			Model:     cfg.LLM.Model,
			RateLimit: cfg.LLM.RateLimit,
			Timeout:   cfg.LLM.Timeout,
		},
		Reranker: provider.Slot{
			Mode:      cfg.Reranker.Provider,
			Model:     cfg.Reranker.Model,
			RateLimit: cfg.Reranker.RateLimit,
			Timeout:   cfg.Reranker.Timeout,
		},
		Dimension:     cfg.Embedding.Dimension,
		OpenAIAPIKey:  cfg.Providers.OpenAIAPIKey,
		OpenAIBaseURL: cfg.Providers.OpenAIBaseURL,
		OllamaBaseURL: cfg.Providers.OllamaBaseURL,
	}
}

// compactionConfig chunks summaries with the same ceiling ingest uses for
// knowledge content.
func compactionConfig(cfg *config.Config) compaction.Config {
	return compaction.Config{
		MaxEvents:          cfg.Compaction.MaxEvents,
		MaxTranscriptChars: cfg.Compaction.MaxTranscriptChars,
		Chunker:            chunker.New(cfg.Chunking.MaxChars, cfg.Chunking.Lookback),
		Dimension:          cfg.Embedding.Dimension,
	}
}

// newEmbeddingCache returns nil for type none.
func newEmbeddingCache(cfg config.EmbeddingCacheConfig) (storage.EmbeddingCache, error) {
	switch cfg.Type {
	case "badger":
		c, err := badger.NewCache(&badger.Config{Path: cfg.Path, TTL: cfg.TTL})
		if err != nil {
			return nil, fmt.Errorf("failed to open embedding cache: %w", err)
		}
		return c, nil
	case "memory":
		c, err := memory.NewCache(cfg.MaxEntries, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, nil
	}
}

// start launches the servers and the scheduler. HTTP serve failures are
// delivered on the returned channel.
func (a *app) start(ctx context.Context) <-chan error {
	if a.metrics.Enabled() {
		go func() {
			a.log.Info("Starting metrics server", "port", a.cfg.Metrics.Port, "path", a.cfg.Metrics.Path)
			if err := a.metrics.StartServer(ctx, a.cfg.Metrics.Port, a.cfg.Metrics.Path); err != nil {
				a.log.Error("Metrics server error", "error", err)
			}
		}()
	}

	if a.grpc != nil {
		if err := a.grpc.Start(); err != nil {
			a.log.Error("gRPC server failed to start", "error", err)
		}
	}

	if a.scheduler != nil {
		a.scheduler.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.http.Start(); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// shutdown stops intake first, then background work, then closes storage.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error

	if a.http != nil {
		if err := a.http.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.grpc != nil {
		if err := a.grpc.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.scheduler != nil {
		a.log.Info("Stopping compaction scheduler")
		a.scheduler.Stop()
	}
	if a.traceShutdown != nil {
		if err := a.traceShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
		a.traceShutdown = nil
	}

	if err := a.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// close releases resources in reverse construction order.
func (a *app) close() error {
	var errs []error

	if a.feedHandler != nil {
		a.feedHandler.Close()
	}
	if a.feed != nil {
		a.feed.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if a.keys != nil {
		a.keys.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("embedding cache close: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	if a.traceShutdown != nil {
		_ = a.traceShutdown(context.Background())
	}
	return errors.Join(errs...)
}
