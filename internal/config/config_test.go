package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
	assert.Equal(t, 100, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.Equal(t, 10, cfg.RAG.MaxTopK)
	assert.Equal(t, 512, cfg.InferenceLLM.MaxTokens)
	assert.Equal(t, IndexFlat, cfg.Index.Type)
	assert.Equal(t, "./data/faiss_index.bin", cfg.Index.Path)
	assert.Equal(t, ProvenanceNone, cfg.Database.Type)
	assert.Equal(t, "http://localhost:11434", cfg.EmbedLLM.BaseURL)
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("CONTEXTIQ_TEST_KEY", "sk-test")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
chunker:
  chunk_size: 200
  chunk_overlap: 20
inference_llm:
  provider: openrouter
  model: some/model
  key: ${CONTEXTIQ_TEST_KEY}
rag:
  top_k: 5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Chunker.ChunkSize)
	assert.Equal(t, 20, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, "sk-test", cfg.InferenceLLM.Key)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.InferenceLLM.BaseURL)
	assert.Equal(t, 5, cfg.RAG.TopK)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"overlap too large": "chunker:\n  chunk_size: 10\n  chunk_overlap: 10\n",
		"top k too large":   "rag:\n  top_k: 11\n",
		"unknown index":     "index:\n  type: faiss\n",
		"unknown embedder":  "embed_llm:\n  provider: bert\n",
		"postgres no dsn":   "database:\n  type: postgres\n",
		"short key":         "index:\n  encryption_key: abc\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.RAG.TopK = 7
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
