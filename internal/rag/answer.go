package rag

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"contextiq/internal/llmservice"
	"contextiq/internal/models"
)

var thinkRe = regexp.MustCompile(models.ThinkTag)

// Answerer asks the language model to answer strictly from retrieved context.
type Answerer struct {
	generator llmservice.Generator
	maxTokens int
}

func NewAnswerer(generator llmservice.Generator, maxTokens int) *Answerer {
	return &Answerer{generator: generator, maxTokens: maxTokens}
}

// BuildPrompt labels the context items in retrieval order and wraps them in
// the grounding instructions.
func BuildPrompt(question string, contextItems []string) string {
	labelled := make([]string, len(contextItems))
	for i, item := range contextItems {
		labelled[i] = fmt.Sprintf(models.ContextLabelTemplate, i+1, item)
	}
	return fmt.Sprintf(models.AnswerPromptTemplate,
		models.NotFoundAnswer,
		strings.Join(labelled, models.ContextSeparator),
		question,
	)
}

// Answer makes exactly one generation call.
func (a *Answerer) Answer(ctx context.Context, question string, contextItems []string) (string, error) {
	prompt := BuildPrompt(question, contextItems)

	completion, err := a.generator.Generate(ctx, prompt, a.maxTokens)
	if err != nil {
		if !errors.Is(err, llmservice.ErrGenerationFailed) {
			err = fmt.Errorf("%w: %w", llmservice.ErrGenerationFailed, err)
		}
		return "", err
	}

	text, ok := completion.First()
	if !ok {
		return "", fmt.Errorf("%w: no candidates returned", llmservice.ErrGenerationFailed)
	}

	answer := strings.TrimSpace(thinkRe.ReplaceAllString(text, ""))
	log.Debug().Int("context_items", len(contextItems)).Int("answer_len", len(answer)).Msg("Generated answer")
	return answer, nil
}
