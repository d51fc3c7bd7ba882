// Package session owns the single active document of one user: its chunks,
// its vector index and the question history asked against it.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"contextiq/internal/chunker"
	"contextiq/internal/config"
	"contextiq/internal/embedding"
	"contextiq/internal/helper"
	"contextiq/internal/llmservice"
	"contextiq/internal/models"
	"contextiq/internal/parser"
	"contextiq/internal/provenance"
	"contextiq/internal/rag"
	"contextiq/internal/vectorstore"
)

var (
	ErrEmptyQuestion = errors.New("please enter a question")
	ErrNoDocument    = errors.New("no document processed")
	ErrChunkMismatch = errors.New("chunk count does not match index size")
	ErrNoChunks      = errors.New("document produced no chunks")
)

type State int

const (
	StateEmpty State = iota
	StateProcessing
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateProcessing:
		return "processing"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Deps are the collaborators a session calls out to. Recorder may be nil.
type Deps struct {
	Embedder  embedding.Embedder
	Generator llmservice.Generator
	NewIndex  func() (vectorstore.Index, error)
	Recorder  provenance.Recorder
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	MaxTopK      int
	MaxTokens    int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ChunkSize:    cfg.Chunker.ChunkSize,
		ChunkOverlap: cfg.Chunker.ChunkOverlap,
		TopK:         cfg.RAG.TopK,
		MaxTopK:      cfg.RAG.MaxTopK,
		MaxTokens:    cfg.InferenceLLM.MaxTokens,
	}
}

func (o Options) withDefaults() Options {
	d := config.Default()
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.Chunker.ChunkSize
		o.ChunkOverlap = d.Chunker.ChunkOverlap
	}
	if o.TopK <= 0 {
		o.TopK = d.RAG.TopK
	}
	if o.MaxTopK <= 0 {
		o.MaxTopK = d.RAG.MaxTopK
	}
	o.TopK = min(o.TopK, o.MaxTopK)
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.InferenceLLM.MaxTokens
	}
	return o
}

// Session is safe for concurrent use; operations are serialised.
type Session struct {
	mu       sync.Mutex
	id       string
	deps     Deps
	opts     Options
	chunker  *chunker.Chunker
	answerer *rag.Answerer

	state       State
	lastErr     error
	document    string
	fingerprint string
	chunks      []models.Chunk
	index       vectorstore.Index
	history     []models.Turn
}

func New(deps Deps, opts Options) (*Session, error) {
	if deps.Embedder == nil || deps.Generator == nil || deps.NewIndex == nil {
		return nil, errors.New("session needs an embedder, a generator and an index factory")
	}
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	return &Session{
		id:       id,
		deps:     deps,
		opts:     opts,
		chunker:  chunker.New(opts.ChunkSize, opts.ChunkOverlap),
		answerer: rag.NewAnswerer(deps.Generator, opts.MaxTokens),
	}, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Options() Options { return s.opts }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError is the failure of the most recent Process call, if any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Document is the name of the active document.
func (s *Session) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

func (s *Session) Chunks() []models.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.chunks)
}

func (s *Session) History() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Process makes doc the active document and returns its chunk count.
// Re-processing the document already active is a no-op. On failure a
// previously active document stays in place.
func (s *Session) Process(ctx context.Context, doc parser.Document) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fingerprint := helper.Fingerprint(doc.Name, doc.Data)
	if s.state == StateReady && fingerprint == s.fingerprint {
		log.Debug().Str("session", s.id).Str("document", doc.Name).Msg("Document unchanged, skipping")
		return len(s.chunks), nil
	}

	start := time.Now()
	s.state = StateProcessing
	logger := log.With().Str("session", s.id).Str("document", doc.Name).Logger()

	chunks, index, err := s.build(ctx, doc)
	if err != nil {
		s.lastErr = err
		if s.index != nil {
			s.state = StateReady
		} else {
			s.state = StateError
		}
		logger.Error().Err(err).Str("state", s.state.String()).Msg("Error processing document")
		return 0, err
	}

	s.chunks = chunks
	s.index = index
	s.document = doc.Name
	s.fingerprint = fingerprint
	s.history = nil
	s.lastErr = nil
	s.state = StateReady
	logger.Info().Int("chunks", len(chunks)).Dur("took", time.Since(start)).Msg("Processed document")

	s.record(ctx, doc.Name, chunks)
	return len(chunks), nil
}

func (s *Session) build(ctx context.Context, doc parser.Document) ([]models.Chunk, vectorstore.Index, error) {
	text, err := parser.Extract(doc)
	if err != nil {
		return nil, nil, err
	}

	chunks := s.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, nil, ErrNoChunks
	}

	vectors, err := embedding.EmbedChunks(ctx, s.deps.Embedder, chunks)
	if err != nil {
		return nil, nil, err
	}

	index, err := s.deps.NewIndex()
	if err != nil {
		return nil, nil, err
	}
	if err := index.Build(ctx, vectors); err != nil {
		return nil, nil, fmt.Errorf("failed to build index: %w", err)
	}
	return chunks, index, nil
}

func (s *Session) record(ctx context.Context, document string, chunks []models.Chunk) {
	if s.deps.Recorder == nil {
		return
	}
	if err := s.deps.Recorder.Record(ctx, provenance.Entries(s.id, document, chunks)); err != nil {
		log.Warn().Err(err).Str("session", s.id).Msg("Error recording provenance")
	}
}

// ClampK maps a requested k onto 1..MaxTopK, zero or less meaning the
// configured default.
func (s *Session) ClampK(k int) int {
	if k <= 0 {
		return s.opts.TopK
	}
	return min(k, s.opts.MaxTopK)
}

func (s *Session) retriever() *rag.Retriever {
	return rag.NewRetriever(s.deps.Embedder, s.index, models.ChunkTexts(s.chunks))
}

// Retrieve returns the closest chunk texts, or none without a document.
func (s *Session) Retrieve(ctx context.Context, question string, k int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return []string{}, nil
	}
	return s.retriever().Retrieve(ctx, question, s.ClampK(k))
}

// Ask answers question from the active document and appends the turn to the
// history. A failed question changes nothing.
func (s *Session) Ask(ctx context.Context, question string, k int) (models.Turn, error) {
	if strings.TrimSpace(question) == "" {
		return models.Turn{}, ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return models.Turn{}, ErrNoDocument
	}

	resp, err := rag.NewRAG(s.retriever(), s.answerer).Query(ctx, question, s.ClampK(k))
	if err != nil {
		log.Error().Err(err).Str("session", s.id).Msg("Error answering question")
		return models.Turn{}, err
	}

	sources := make([]string, len(resp.Sources))
	for i, h := range resp.Sources {
		sources[i] = h.Text
	}
	turn := models.Turn{
		Question:   question,
		Answer:     resp.Content,
		Sources:    sources,
		NumSources: len(sources),
		AskedAt:    time.Now(),
	}
	s.history = append(s.history, turn)
	return turn, nil
}

// Reset drops the document, index and history together.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.index = nil
	s.history = nil
	s.document = ""
	s.fingerprint = ""
	s.lastErr = nil
	s.state = StateEmpty
	log.Info().Str("session", s.id).Msg("Session reset")
}

func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// SaveIndex writes the index to path and the chunk texts next to it.
func (s *Session) SaveIndex(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return ErrNoDocument
	}
	if err := s.index.Save(path); err != nil {
		return err
	}
	return WriteChunks(ChunksPath(path), s.chunks)
}

// LoadIndex restores a saved index without re-embedding. chunks must be the
// texts the index was built from, in order.
func (s *Session) LoadIndex(path string, chunks []string) error {
	index, err := s.deps.NewIndex()
	if err != nil {
		return err
	}
	if err := index.Load(path); err != nil {
		return err
	}
	if index.Len() != len(chunks) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ErrChunkMismatch, len(chunks), index.Len())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = models.ChunksFromTexts(chunks)
	s.index = index
	s.document = filepath.Base(path)
	s.fingerprint = ""
	s.history = nil
	s.lastErr = nil
	s.state = StateReady
	log.Info().Str("session", s.id).Str("path", path).Int("chunks", len(chunks)).Msg("Loaded index")
	return nil
}
