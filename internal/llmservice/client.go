package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"contextiq/internal/config"
)

var ErrGenerationFailed = errors.New("generation failed")

// Completion holds the candidate texts returned for one prompt. Callers use
// the first one.
type Completion struct {
	Texts []string
}

// First returns the first candidate, or false when there is none.
func (c Completion) First() (string, bool) {
	if len(c.Texts) == 0 {
		return "", false
	}
	return c.Texts[0], true
}

// Generator produces text from a single prompt. One call, no retries.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (Completion, error)
}

// NewGenerator builds the generator selected by cfg.Provider.
func NewGenerator(cfg *config.LLMConfig) (Generator, error) {
	log.Debug().Interface("config", map[string]string{
		"provider": cfg.Provider,
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Msg("Creating generator")

	switch cfg.Provider {
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
		}
		return NewLangChain(llm, cfg.Temperature), nil
	case config.ProviderOpenAI:
		llm, err := openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai client: %w", err)
		}
		return NewLangChain(llm, cfg.Temperature), nil
	case config.ProviderOpenRouter:
		return NewOpenRouter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown inference provider: %s", cfg.Provider)
	}
}

// LangChain adapts any langchaingo model to Generator.
type LangChain struct {
	llm         llms.Model
	temperature float64
}

func NewLangChain(llm llms.Model, temperature float64) *LangChain {
	return &LangChain{llm: llm, temperature: temperature}
}

func (g *LangChain) Generate(ctx context.Context, prompt string, maxTokens int) (Completion, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	opts := []llms.CallOption{llms.WithMaxTokens(maxTokens)}
	if g.temperature > 0 {
		opts = append(opts, llms.WithTemperature(g.temperature))
	}

	res, err := g.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return Completion{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	texts := make([]string, 0, len(res.Choices))
	for _, choice := range res.Choices {
		if choice == nil {
			continue
		}
		texts = append(texts, choice.Content)
	}
	log.Debug().Int("candidates", len(texts)).Msg("Generated content")
	return Completion{Texts: texts}, nil
}
