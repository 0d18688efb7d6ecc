package provider

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/tmc/langchaingo/llms"

	"github.com/memvault/memvault/pkg/logger"
)

const rerankPrompt = "Given a query and a document, determine if the document is relevant.\n\n" +
	"Query: %s\n" +
	"Document: %s\n\n" +
	"Relevance score (0-1):"

var scorePattern = regexp.MustCompile(`([01](?:\.\d+)?)`)

// chatReranker scores each document with one prompt.
type chatReranker struct {
	client chatClient
	call   caller
	logger logger.Logger
}

func (r *chatReranker) Mode() string { return r.call.mode }

func (r *chatReranker) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	scores := make([]float64, len(docs))
	for i, doc := range docs {
		err := r.call.do(ctx, func(ctx context.Context) error {
			raw, err := generate(ctx, r.client, []llms.MessageContent{
				llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(rerankPrompt, query, doc)),
			}, llms.WithTemperature(0), llms.WithMaxTokens(5))
			if err != nil {
				return err
			}
			score, ok := ParseScore(raw)
			if !ok {
				r.logger.WarnContext(ctx, "could not parse reranker score", "response", raw)
			}
			scores[i] = score
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return scores, nil
}

// ParseScore extracts the first 0..1 number from a model reply, clamped.
// Unparseable replies score 0.
func ParseScore(raw string) (float64, bool) {
	m := scorePattern.FindString(raw)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	return v, true
}
