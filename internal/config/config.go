package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama     = "ollama"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderHash       = "hash"

	IndexFlat    = "flat"
	IndexChromem = "chromem"

	ProvenanceNone     = "none"
	ProvenanceMemory   = "memory"
	ProvenancePostgres = "postgres"
	ProvenanceNeo4j    = "neo4j"

	DriverPgdriver = "pgdriver"
	DriverPq       = "pq"
)

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 100
	defaultTopK         = 3
	defaultMaxTopK      = 10
	defaultMaxTokens    = 512
	defaultDimension    = 384
	defaultBatchSize    = 32
	defaultIndexPath    = "./data/faiss_index.bin"
	defaultCollection   = "contextiq"
	defaultSourceWidth  = 500
	defaultOllamaURL    = "http://localhost:11434"
	defaultOpenAIURL    = "https://api.openai.com/v1"
	defaultOpenRouter   = "https://openrouter.ai/api/v1"
)

type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// LLMConfig configures either the embedding model or the inference model.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Key         string  `yaml:"key"`
	Dimension   int     `yaml:"dimension,omitempty"`
	BatchSize   int     `yaml:"batch_size,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

type RAGConfig struct {
	TopK        int `yaml:"top_k"`
	MaxTopK     int `yaml:"max_top_k"`
	SourceWidth int `yaml:"source_width"`
}

type IndexConfig struct {
	Type          string `yaml:"type"`
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

// DatabaseConfig selects where chunk provenance records are written.
type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
	Neo4jURI string `yaml:"neo4j_uri"`
	User     string `yaml:"user"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Chunker      ChunkerConfig  `yaml:"chunker"`
	EmbedLLM     LLMConfig      `yaml:"embed_llm"`
	InferenceLLM LLMConfig      `yaml:"inference_llm"`
	RAG          RAGConfig      `yaml:"rag"`
	Index        IndexConfig    `yaml:"index"`
	Database     DatabaseConfig `yaml:"database"`
	Log          LogConfig      `yaml:"log"`
}

// LoadConfig reads the YAML file at path. ${VAR} references are expanded
// from the environment. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML config data and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func (c *Config) Validate() error {
	if c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("chunker.chunk_size must be positive, got %d", c.Chunker.ChunkSize)
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunker.chunk_overlap must be in [0, %d), got %d", c.Chunker.ChunkSize, c.Chunker.ChunkOverlap)
	}
	if c.RAG.TopK < 1 || c.RAG.TopK > c.RAG.MaxTopK {
		return fmt.Errorf("rag.top_k must be in [1, %d], got %d", c.RAG.MaxTopK, c.RAG.TopK)
	}
	switch c.EmbedLLM.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderHash:
	default:
		return fmt.Errorf("unknown embedding provider: %s", c.EmbedLLM.Provider)
	}
	switch c.InferenceLLM.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderOpenRouter:
	default:
		return fmt.Errorf("unknown inference provider: %s", c.InferenceLLM.Provider)
	}
	switch c.Index.Type {
	case IndexFlat, IndexChromem:
	default:
		return fmt.Errorf("unknown index type: %s", c.Index.Type)
	}
	if c.Index.EncryptionKey != "" && len(c.Index.EncryptionKey) != 32 {
		return fmt.Errorf("index.encryption_key must be 32 bytes, got %d", len(c.Index.EncryptionKey))
	}
	switch c.Database.Type {
	case ProvenanceNone, ProvenanceMemory:
	case ProvenancePostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for postgres provenance")
		}
		if c.Database.Driver != DriverPgdriver && c.Database.Driver != DriverPq {
			return fmt.Errorf("unknown database driver: %s", c.Database.Driver)
		}
	case ProvenanceNeo4j:
		if c.Database.Neo4jURI == "" {
			return errors.New("database.neo4j_uri is required for neo4j provenance")
		}
	default:
		return fmt.Errorf("unknown provenance type: %s", c.Database.Type)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = defaultChunkSize
		if cfg.Chunker.ChunkOverlap == 0 {
			cfg.Chunker.ChunkOverlap = defaultChunkOverlap
		}
	}

	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = ProviderOllama
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = "all-minilm"
	}
	if cfg.EmbedLLM.Dimension == 0 {
		cfg.EmbedLLM.Dimension = defaultDimension
	}
	if cfg.EmbedLLM.BatchSize == 0 {
		cfg.EmbedLLM.BatchSize = defaultBatchSize
	}
	applyBaseURL(&cfg.EmbedLLM)

	if cfg.InferenceLLM.Provider == "" {
		cfg.InferenceLLM.Provider = ProviderOllama
	}
	if cfg.InferenceLLM.Model == "" {
		cfg.InferenceLLM.Model = "phi3"
	}
	if cfg.InferenceLLM.MaxTokens == 0 {
		cfg.InferenceLLM.MaxTokens = defaultMaxTokens
	}
	applyBaseURL(&cfg.InferenceLLM)

	if cfg.RAG.MaxTopK == 0 {
		cfg.RAG.MaxTopK = defaultMaxTopK
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = min(defaultTopK, cfg.RAG.MaxTopK)
	}
	if cfg.RAG.SourceWidth == 0 {
		cfg.RAG.SourceWidth = defaultSourceWidth
	}

	if cfg.Index.Type == "" {
		cfg.Index.Type = IndexFlat
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = defaultIndexPath
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = defaultCollection
	}

	if cfg.Database.Type == "" {
		cfg.Database.Type = ProvenanceNone
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPgdriver
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

func applyBaseURL(llm *LLMConfig) {
	if llm.BaseURL != "" {
		return
	}
	switch llm.Provider {
	case ProviderOllama:
		llm.BaseURL = defaultOllamaURL
	case ProviderOpenAI:
		llm.BaseURL = defaultOpenAIURL
	case ProviderOpenRouter:
		llm.BaseURL = defaultOpenRouter
	}
}
