package provider

import (
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/metrics"
	"github.com/memvault/memvault/pkg/storage"
)

// Slot configures one capability.
type Slot struct {
	Mode      string
	Model     string
	RateLimit float64
	Timeout   time.Duration
}

// Config selects the mode of every slot.
type Config struct {
	Embedding Slot
	LLM       Slot
	Reranker  Slot

	// Dimension is the expected embedding length.
	Dimension int

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaBaseURL string
}

// Gateway holds the three capability slots, chosen once at startup.
type Gateway struct {
	Embedder   Embedder
	Summarizer Summarizer
	Reranker   Reranker
}

// SlotStatus describes a slot for the health endpoint.
type SlotStatus struct {
	Mode      string `json:"mode"`
	Model     string `json:"model,omitempty"`
	Available bool   `json:"available"`
}

// clientFactory builds langchaingo clients; replaced in tests.
type clientFactory func(cfg Config, slot Slot) (any, error)

// NewGateway builds every slot from cfg. cache and m may be nil.
func NewGateway(cfg Config, cache storage.EmbeddingCache, m *metrics.Manager, log logger.Logger) (*Gateway, error) {
	return newGateway(cfg, cache, m, log, newClient)
}

func newGateway(cfg Config, cache storage.EmbeddingCache, m *metrics.Manager, log logger.Logger, factory clientFactory) (*Gateway, error) {
	if log == nil {
		log = logger.Global()
	}
	log = log.With("component", "provider")

	g := &Gateway{
		Embedder:   NoneEmbedder(),
		Summarizer: NoneSummarizer(),
		Reranker:   NoneReranker(),
	}

	if slot := cfg.Embedding; slot.Mode != ModeNone && slot.Mode != "" {
		client, err := factory(cfg, slot)
		if err != nil {
			return nil, fmt.Errorf("embedding provider: %w", err)
		}
		ec, ok := client.(embeddings.EmbedderClient)
		if !ok {
			return nil, fmt.Errorf("embedding provider %q cannot embed", slot.Mode)
		}
		call := newCaller("embed", slot.Mode, slot.Model, slot.RateLimit, slot.Timeout, m)
		e, err := newModelEmbedder(ec, call, cfg.Dimension, cache, m, log)
		if err != nil {
			return nil, err
		}
		g.Embedder = e
	}

	if slot := cfg.LLM; slot.Mode != ModeNone && slot.Mode != "" {
		client, err := factory(cfg, slot)
		if err != nil {
			return nil, fmt.Errorf("llm provider: %w", err)
		}
		cc, ok := client.(chatClient)
		if !ok {
			return nil, fmt.Errorf("llm provider %q cannot chat", slot.Mode)
		}
		g.Summarizer = &chatSummarizer{
			client: cc,
			call:   newCaller("summarize", slot.Mode, slot.Model, slot.RateLimit, slot.Timeout, m),
		}
	}

	if slot := cfg.Reranker; slot.Mode != ModeNone && slot.Mode != "" {
		client, err := factory(cfg, slot)
		if err != nil {
			return nil, fmt.Errorf("reranker provider: %w", err)
		}
		cc, ok := client.(chatClient)
		if !ok {
			return nil, fmt.Errorf("reranker provider %q cannot chat", slot.Mode)
		}
		g.Reranker = &chatReranker{
			client: cc,
			call:   newCaller("rerank", slot.Mode, slot.Model, slot.RateLimit, slot.Timeout, m),
			logger: log,
		}
	}

	log.Info("providers configured",
		"embedding", g.Embedder.Mode(),
		"llm", g.Summarizer.Mode(),
		"reranker", g.Reranker.Mode(),
	)
	return g, nil
}

// newClient builds a langchaingo model for slot.
func newClient(cfg Config, slot Slot) (any, error) {
	switch slot.Mode {
	case ModeOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai_api_key is not configured")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(slot.Model),
			openai.WithEmbeddingModel(slot.Model),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		return openai.New(opts...)
	case ModeOllama:
		if cfg.OllamaBaseURL == "" || slot.Model == "" {
			return nil, fmt.Errorf("ollama_base_url or model is not configured")
		}
		return ollama.New(ollama.WithServerURL(cfg.OllamaBaseURL), ollama.WithModel(slot.Model))
	default:
		return nil, fmt.Errorf("unknown provider mode %q", slot.Mode)
	}
}

// Status reports every slot for the health endpoint.
func (g *Gateway) Status(cfg Config) map[string]SlotStatus {
	return map[string]SlotStatus{
		"embedding": {Mode: g.Embedder.Mode(), Model: modelFor(g.Embedder, cfg.Embedding), Available: Available(g.Embedder)},
		"llm":       {Mode: g.Summarizer.Mode(), Model: modelFor(g.Summarizer, cfg.LLM), Available: Available(g.Summarizer)},
		"reranker":  {Mode: g.Reranker.Mode(), Model: modelFor(g.Reranker, cfg.Reranker), Available: Available(g.Reranker)},
	}
}

func modelFor(slot interface{ Mode() string }, s Slot) string {
	if !Available(slot) {
		return ""
	}
	return s.Model
}
