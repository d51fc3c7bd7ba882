package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contextiq/internal/config"
	"contextiq/internal/models"
)

func TestHashEmbedderNormalized(t *testing.T) {
	e := NewHashEmbedder(64)
	vectors, err := e.EmbedDocuments(context.Background(), []string{"Paris is the capital of France.", "France is in Europe."})
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	for _, v := range vectors {
		require.Len(t, v, 64)
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	}
}

func TestHashEmbedderDeterministicAndCaseInsensitive(t *testing.T) {
	e := NewHashEmbedder(32)
	a, err := e.EmbedQuery(context.Background(), "Capital of FRANCE")
	require.NoError(t, err)
	b, err := e.EmbedQuery(context.Background(), "capital of france")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashEmbedderEmptyText(t *testing.T) {
	v, err := NewHashEmbedder(8).EmbedQuery(context.Background(), "  ...  ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}

func TestHashEmbedderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEmbedder(8).EmbedDocuments(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEmbedderSelectsProvider(t *testing.T) {
	e, err := NewEmbedder(&config.LLMConfig{Provider: config.ProviderHash, Dimension: 16})
	require.NoError(t, err)
	assert.IsType(t, &HashEmbedder{}, e)

	_, err = NewEmbedder(&config.LLMConfig{Provider: "word2vec"})
	assert.Error(t, err)
}

type shortEmbedder struct{ HashEmbedder }

func (shortEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return [][]float32{{1}}, nil
}

type failingEmbedder struct{ HashEmbedder }

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model offline")
}

func TestEmbedChunks(t *testing.T) {
	ctx := context.Background()
	chunks := models.ChunksFromTexts([]string{"one", "two"})

	vectors, err := EmbedChunks(ctx, NewHashEmbedder(8), chunks)
	require.NoError(t, err)
	assert.Len(t, vectors, 2)

	vectors, err = EmbedChunks(ctx, NewHashEmbedder(8), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)

	_, err = EmbedChunks(ctx, &shortEmbedder{}, chunks)
	assert.ErrorContains(t, err, "1 vectors for 2 chunks")

	_, err = EmbedChunks(ctx, &failingEmbedder{}, chunks)
	assert.ErrorContains(t, err, "model offline")
}

func TestBatchOptions(t *testing.T) {
	assert.Nil(t, batchOptions(&config.LLMConfig{}))
	assert.Len(t, batchOptions(&config.LLMConfig{BatchSize: 16}), 1)
}
