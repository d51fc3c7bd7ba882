// Package rag retrieves the chunks closest to a question and asks the
// language model to answer from them.
package rag

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type Response struct {
	Content string
	Sources []Hit
}

// RAG runs retrieval then answering for one question.
type RAG struct {
	retriever *Retriever
	answerer  *Answerer
}

func NewRAG(retriever *Retriever, answerer *Answerer) *RAG {
	return &RAG{retriever: retriever, answerer: answerer}
}

func (r *RAG) Query(ctx context.Context, question string, k int) (*Response, error) {
	start := time.Now()

	hits, err := r.retriever.RetrieveHits(ctx, question, k)
	if err != nil {
		return nil, err
	}

	contextItems := make([]string, len(hits))
	for i, h := range hits {
		contextItems[i] = h.Text
	}

	answer, err := r.answerer.Answer(ctx, question, contextItems)
	if err != nil {
		return nil, err
	}

	log.Info().Int("k", k).Int("sources", len(hits)).Dur("took", time.Since(start)).Msg("Answered question")
	return &Response{Content: answer, Sources: hits}, nil
}
