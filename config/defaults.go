package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "memvault",
			Version:     "dev",
			Environment: "development",
		},
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8088,
			PublicURL: "http://localhost:8088",
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    60 * time.Second,
				IdleTimeout:     120 * time.Second,
				RequestTimeout:  55 * time.Second,
				ShutdownTimeout: 30 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1MB
				MaxBodyBytes:    8 << 20, // 8MB
			},
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-API-Key", "X-Request-ID"},
				MaxAge:         300,
			},
			GRPC: GRPCConfig{
				Enabled:          false,
				Port:             9090,
				KeepaliveTime:    60 * time.Second,
				KeepaliveTimeout: 20 * time.Second,
			},
			WebSocket: WebSocketConfig{
				MaxConnections: 32,
				PingInterval:   30 * time.Second,
				PongTimeout:    10 * time.Second,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Path:        "./data/memvault.db",
				BusyTimeout: 5 * time.Second,
			},
			EmbeddingCache: EmbeddingCacheConfig{
				Type:       "memory",
				Path:       "./data/embedding-cache",
				TTL:        7 * 24 * time.Hour,
				MaxEntries: 10000,
			},
		},
		Auth: AuthConfig{
			Header:              "X-API-Key",
			BootstrapNamespaces: []string{"default"},
			CacheSize:           1024,
			CacheTTL:            5 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			Provider:  "none",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			RateLimit: 20,
			Timeout:   30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:  "none",
			Model:     "gpt-4o-mini",
			RateLimit: 2,
			Timeout:   45 * time.Second,
		},
		Reranker: RerankerConfig{
			Provider:  "none",
			Model:     "llama3.1",
			RateLimit: 20,
			Timeout:   30 * time.Second,
		},
		Providers: ProvidersConfig{
			OllamaBaseURL: "http://localhost:11434",
		},
		Recall: RecallConfig{
			DefaultTopK:      5,
			RerankMultiplier: 4,
			MaxSnippetChars:  900,
		},
		Chunking: ChunkingConfig{
			MaxChars: 800,
		},
		Dedup: DedupConfig{
			DistanceThreshold: 0.03,
			MaxItems:          5000,
		},
		Compaction: CompactionConfig{
			Enabled:            true,
			Interval:           60 * time.Second,
			EventThreshold:     80,
			CharThreshold:      24000,
			MaxEvents:          500,
			MaxTranscriptChars: 48000,
		},
		Redis: RedisConfig{
			Address:   "localhost:6379",
			KeyPrefix: "memvault:",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			Insecure:   true,
			Sampler:    "ratio",
			SampleRate: 0.1,
			Timeout:    10 * time.Second,
		},
	}
}
