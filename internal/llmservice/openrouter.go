package llmservice

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"contextiq/internal/config"
)

// OpenRouter talks to any OpenAI-compatible chat completion endpoint,
// OpenRouter by default.
type OpenRouter struct {
	client      *openai.Client
	model       string
	temperature float32
}

func NewOpenRouter(cfg *config.LLMConfig) *OpenRouter {
	clientCfg := openai.DefaultConfig(strings.TrimPrefix(cfg.Key, "Bearer "))
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenRouter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
	}
}

func (g *OpenRouter) Generate(ctx context.Context, prompt string, maxTokens int) (Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Completion{}, fmt.Errorf("%w: create chat completion: %w", ErrGenerationFailed, err)
	}

	texts := make([]string, len(resp.Choices))
	for i, choice := range resp.Choices {
		texts[i] = choice.Message.Content
	}
	return Completion{Texts: texts}, nil
}
