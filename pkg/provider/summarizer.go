package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

const summaryPrompt = "You are summarizing an autonomous agent session. " +
	"Produce a concise distillation with key decisions and concrete next steps."

// chatClient is the part of a langchaingo model memvault calls.
type chatClient interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

type chatSummarizer struct {
	client chatClient
	call   caller
}

func (s *chatSummarizer) Mode() string { return s.call.mode }

func (s *chatSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	var summary string
	err := s.call.do(ctx, func(ctx context.Context) error {
		text, err := generate(ctx, s.client, []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, summaryPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, transcript),
		}, llms.WithTemperature(0.2))
		if err != nil {
			return err
		}
		if text == "" {
			return errors.New("empty summary")
		}
		summary = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return summary, nil
}

// generate returns the trimmed first choice.
func generate(ctx context.Context, client chatClient, messages []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	resp, err := client.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
