package rag

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"contextiq/internal/embedding"
	"contextiq/internal/vectorstore"
)

// Hit is one retrieved chunk with its index distance.
type Hit struct {
	Position int
	Distance float32
	Text     string
}

// Retriever finds the chunks of the active document closest to a question.
// chunks[i] is the text stored at index position i.
type Retriever struct {
	embedder embedding.Embedder
	index    vectorstore.Index
	chunks   []string
}

func NewRetriever(embedder embedding.Embedder, index vectorstore.Index, chunks []string) *Retriever {
	return &Retriever{embedder: embedder, index: index, chunks: chunks}
}

// Retrieve returns up to k chunk texts, closest first. With no document
// indexed it returns an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]string, error) {
	hits, err := r.RetrieveHits(ctx, question, k)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return texts, nil
}

func (r *Retriever) RetrieveHits(ctx context.Context, question string, k int) ([]Hit, error) {
	if r == nil || r.index == nil || r.index.Len() == 0 || len(r.chunks) == 0 {
		return []Hit{}, nil
	}

	query, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := r.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, res := range results {
		if res.Position < 0 || res.Position >= len(r.chunks) {
			log.Warn().Int("position", res.Position).Int("chunks", len(r.chunks)).Msg("Index position out of range")
			continue
		}
		hits = append(hits, Hit{Position: res.Position, Distance: res.Distance, Text: r.chunks[res.Position]})
	}
	log.Debug().Int("k", k).Int("hits", len(hits)).Msg("Retrieved context")
	return hits, nil
}
