// Package config loads, validates and watches memvault configuration.
package config

import (
	"fmt"
	"time"
)

// Config is the complete memvault configuration. Keys mirror the
// mapstructure tags, so "server.http.request_timeout" in YAML is
// MEMVAULT_SERVER__HTTP__REQUEST_TIMEOUT in the environment.
type Config struct {
	App     AppConfig     `mapstructure:"app" validate:"required"`
	Server  ServerConfig  `mapstructure:"server" validate:"required"`
	Log     LogConfig     `mapstructure:"log" validate:"required"`
	Storage StorageConfig `mapstructure:"storage"`
	Auth    AuthConfig    `mapstructure:"auth"`

	// Capability slots. Each runs in mode none, openai or ollama.
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Reranker  RerankerConfig  `mapstructure:"reranker"`
	Providers ProvidersConfig `mapstructure:"providers"`

	Recall     RecallConfig     `mapstructure:"recall"`
	Chunking   ChunkingConfig   `mapstructure:"chunking"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	Compaction CompactionConfig `mapstructure:"compaction"`

	// Redis backs the compaction lease only.
	Redis RedisConfig `mapstructure:"redis"`

	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig identifies the deployment.
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`

	// Debug forces debug logging and pins it against hot reloads.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig covers every listener memvault opens besides metrics.
type ServerConfig struct {
	Host string `mapstructure:"host" validate:"host"`
	Port int    `mapstructure:"port" validate:"required,min=1,max=65535"`

	// PublicURL is the base URL printed in the onboarding guide. Empty
	// prints a placeholder.
	PublicURL string `mapstructure:"public_url"`

	HTTP      HTTPConfig      `mapstructure:"http"`
	CORS      CORSConfig      `mapstructure:"cors"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// HTTPConfig tunes the API listener. RequestTimeout applies to every route
// except the admin event feed.
type HTTPConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`

	// MaxBodyBytes caps request bodies; zero disables the cap.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" validate:"min=0"`
}

// CORSConfig controls browser access to the API. Origins may be exact,
// "*" or a single-label wildcard like "https://*.example.com".
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int `mapstructure:"max_age"`
}

// GRPCConfig holds gRPC health server settings.
type GRPCConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Port             int           `mapstructure:"port" validate:"min=1,max=65535"`
	EnableReflection bool          `mapstructure:"enable_reflection"`
	KeepaliveTime    time.Duration `mapstructure:"keepalive_time"`
	KeepaliveTimeout time.Duration `mapstructure:"keepalive_timeout"`
}

// WebSocketConfig holds admin event feed settings.
type WebSocketConfig struct {
	// MaxConnections caps concurrent feed subscribers.
	MaxConnections int           `mapstructure:"max_connections" validate:"min=1"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongTimeout    time.Duration `mapstructure:"pong_timeout"`
}

// LogConfig selects level, encoding and destination. Output is stdout,
// stderr or a file path opened for append.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
	Output string `mapstructure:"output"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	SQLite         SQLiteConfig         `mapstructure:"sqlite"`
	EmbeddingCache EmbeddingCacheConfig `mapstructure:"embedding_cache"`
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	// Path is the database file; ":memory:" keeps everything in process.
	Path string `mapstructure:"path" validate:"required"`

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// EmbeddingCacheConfig holds embedding cache settings.
type EmbeddingCacheConfig struct {
	// Type is the cache backend (none, memory, badger).
	Type string `mapstructure:"type" validate:"oneof=none memory badger"`

	// Path is the badger directory.
	Path string `mapstructure:"path"`

	// TTL expires cached vectors; zero keeps them forever.
	TTL time.Duration `mapstructure:"ttl"`

	// MaxEntries bounds the in-memory cache.
	MaxEntries int `mapstructure:"max_entries" validate:"min=0"`
}

// AuthConfig holds credential settings.
type AuthConfig struct {
	// Header is the request header carrying the API key.
	Header string `mapstructure:"header" validate:"required"`

	// BootstrapNamespaces are created at startup and granted to the bootstrap key.
	BootstrapNamespaces []string `mapstructure:"bootstrap_namespaces"`

	// CacheSize is the maximum number of resolved credentials kept in memory.
	CacheSize int64 `mapstructure:"cache_size" validate:"min=1"`

	// CacheTTL expires resolved credentials.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// EmbeddingConfig holds the embedding slot settings.
type EmbeddingConfig struct {
	// Provider is the mode (none, openai, ollama).
	Provider string `mapstructure:"provider" validate:"oneof=none openai ollama"`

	// Model is the embedding model name.
	Model string `mapstructure:"model"`

	// Dimension is the process-wide vector dimension.
	Dimension int `mapstructure:"dimension" validate:"min=1"`

	// RateLimit is the maximum calls per second; zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" validate:"min=0"`

	// Timeout bounds a single call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// LLMConfig holds the summarization slot settings.
type LLMConfig struct {
	// Provider is the mode (none, openai, ollama).
	Provider string `mapstructure:"provider" validate:"oneof=none openai ollama"`

	// Model is the chat model name.
	Model string `mapstructure:"model"`

	// RateLimit is the maximum calls per second; zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" validate:"min=0"`

	// Timeout bounds a single call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// RerankerConfig holds the reranking slot settings.
type RerankerConfig struct {
	// Provider is the mode (none, openai, ollama).
	Provider string `mapstructure:"provider" validate:"oneof=none openai ollama"`

	// Model is the scoring model name.
	Model string `mapstructure:"model"`

	// RateLimit is the maximum calls per second; zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" validate:"min=0"`

	// Timeout bounds a single call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProvidersConfig holds endpoints and secrets for external providers.
type ProvidersConfig struct {
	// OpenAIAPIKey authenticates OpenAI calls.
	OpenAIAPIKey string `mapstructure:"openai_api_key"`

	// OpenAIBaseURL overrides the OpenAI endpoint (OpenAI-compatible servers).
	OpenAIBaseURL string `mapstructure:"openai_base_url"`

	// OllamaBaseURL is the Ollama server URL.
	OllamaBaseURL string `mapstructure:"ollama_base_url"`
}

// RecallConfig holds retrieval settings.
type RecallConfig struct {
	// DefaultTopK applies when a request omits top_k.
	DefaultTopK int `mapstructure:"default_top_k" validate:"min=1,max=50"`

	// RerankMultiplier scales stage one candidates when a reranker is configured.
	RerankMultiplier int `mapstructure:"rerank_multiplier" validate:"min=1,max=20"`

	// MaxSnippetChars clips displayed snippets.
	MaxSnippetChars int `mapstructure:"max_snippet_chars" validate:"min=16"`
}

// ChunkingConfig holds chunker settings.
type ChunkingConfig struct {
	// MaxChars is the knowledge item content ceiling.
	MaxChars int `mapstructure:"max_chars" validate:"min=32"`

	// Lookback is how far back to search for a boundary; zero means MaxChars/2.
	Lookback int `mapstructure:"lookback" validate:"min=0"`
}

// DedupConfig holds duplicate detector settings.
type DedupConfig struct {
	// DistanceThreshold groups items whose cosine distance is at most this value.
	DistanceThreshold float64 `mapstructure:"distance_threshold" validate:"min=0,max=2"`

	// MaxItems bounds the items scanned per invocation.
	MaxItems int `mapstructure:"max_items" validate:"min=1"`
}

// CompactionConfig holds compaction settings.
type CompactionConfig struct {
	// Enabled turns the scheduler on when a summarizer is configured.
	Enabled bool `mapstructure:"enabled"`

	// Interval is the tick period.
	Interval time.Duration `mapstructure:"interval"`

	// EventThreshold triggers compaction at this many unarchived events.
	EventThreshold int `mapstructure:"event_threshold" validate:"min=1"`

	// CharThreshold triggers compaction at this many characters.
	CharThreshold int `mapstructure:"char_threshold" validate:"min=1"`

	// MaxEvents bounds events summarized per session per run.
	MaxEvents int `mapstructure:"max_events" validate:"min=1,max=2000"`

	// MaxTranscriptChars bounds the summarizer input.
	MaxTranscriptChars int `mapstructure:"max_transcript_chars" validate:"min=256"`

	// Lease enables the Redis single-writer lease.
	Lease bool `mapstructure:"lease"`
}

// RedisConfig locates the Redis instance holding the compaction lease.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`

	// KeyPrefix namespaces memvault keys.
	KeyPrefix string `mapstructure:"key_prefix"`
}

// MetricsConfig serves Prometheus metrics on a separate port.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig exports spans to an OTLP gRPC collector.
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`

	// Sampler is always, never or ratio; ratio samples SampleRate of root
	// spans and follows the parent otherwise.
	Sampler    string  `mapstructure:"sampler" validate:"oneof=always never ratio"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`

	// Timeout bounds exporter calls.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Validate checks struct tags and provider wiring. Load already runs
// ValidateWithDetails; this is for configs built in code.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// CompactionActive reports whether the scheduler should run at all.
func (c *Config) CompactionActive() bool {
	return c.Compaction.Enabled && c.LLM.Provider != "none"
}

// String summarizes the config for startup logs. Secrets are never included.
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s, Embedding: %s, LLM: %s, Reranker: %s}",
		c.App.Name, c.Server.Port, c.App.Environment,
		c.Embedding.Provider, c.LLM.Provider, c.Reranker.Provider)
}
