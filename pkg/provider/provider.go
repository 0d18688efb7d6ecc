// Package provider wraps the three model capabilities memvault depends on:
// embedding, summarization and reranking. Each slot runs in one of three
// modes. In mode none the slot reports memory.ErrProviderUnavailable; a
// configured slot whose call fails reports memory.ErrProviderError.
package provider

import (
	"context"
	"fmt"

	"github.com/memvault/memvault/pkg/memory"
)

// Modes.
const (
	ModeNone   = "none"
	ModeOpenAI = "openai"
	ModeOllama = "ollama"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Mode() string
}

// Summarizer condenses a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
	Mode() string
}

// Reranker scores documents against a query; higher is more relevant.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]float64, error)
	Mode() string
}

// Available reports whether a slot is configured.
func Available(slot interface{ Mode() string }) bool {
	return slot != nil && slot.Mode() != ModeNone
}

type none struct{ kind string }

func (n none) Mode() string { return ModeNone }

func (n none) unavailable() error {
	return fmt.Errorf("%w: %s provider is not configured", memory.ErrProviderUnavailable, n.kind)
}

func (n none) Embed(context.Context, string) ([]float32, error) { return nil, n.unavailable() }

func (n none) Summarize(context.Context, string) (string, error) { return "", n.unavailable() }

func (n none) Rerank(context.Context, string, []string) ([]float64, error) { return nil, n.unavailable() }

// NoneEmbedder returns the disabled embedding slot.
func NoneEmbedder() Embedder { return none{kind: "embedding"} }

// NoneSummarizer returns the disabled summarization slot.
func NoneSummarizer() Summarizer { return none{kind: "llm"} }

// NoneReranker returns the disabled reranking slot.
func NoneReranker() Reranker { return none{kind: "reranker"} }

// callError wraps a failed external call.
func callError(kind string, err error) error {
	return fmt.Errorf("%w: %s call failed: %w", memory.ErrProviderError, kind, err)
}
