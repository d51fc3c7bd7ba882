// Package provenance keeps an append-only log of which document each chunk
// came from. Retrieval never reads it.
package provenance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"contextiq/internal/config"
	"contextiq/internal/models"
)

// Entry records one chunk of a processed document.
type Entry struct {
	SessionID  string
	Document   string
	ChunkID    string
	Position   int
	Preview    string
	RecordedAt time.Time
}

type Recorder interface {
	Record(ctx context.Context, entries []Entry) error
	Close() error
}

// NewRecorder opens the backend named by cfg.Type.
func NewRecorder(ctx context.Context, cfg *config.DatabaseConfig) (Recorder, error) {
	switch cfg.Type {
	case config.ProvenanceNone, "":
		return Nop{}, nil
	case config.ProvenanceMemory:
		return NewMemory(), nil
	case config.ProvenancePostgres:
		return NewPostgres(ctx, cfg)
	case config.ProvenanceNeo4j:
		return NewNeo4j(ctx, cfg.Neo4jURI, cfg.User, cfg.Password)
	default:
		return nil, fmt.Errorf("unknown provenance backend: %s", cfg.Type)
	}
}

// Entries builds one entry per chunk. The preview is the first
// models.PreviewLength characters with newlines flattened to spaces.
func Entries(sessionID, document string, chunks []models.Chunk) []Entry {
	now := time.Now().UTC()
	entries := make([]Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = Entry{
			SessionID:  sessionID,
			Document:   document,
			ChunkID:    fmt.Sprintf("chunk_%d", c.Position),
			Position:   c.Position,
			Preview:    preview(c.Text),
			RecordedAt: now,
		}
	}
	return entries
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) > models.PreviewLength {
		runes = runes[:models.PreviewLength]
	}
	return strings.ReplaceAll(string(runes), "\n", " ")
}

type Nop struct{}

func (Nop) Record(context.Context, []Entry) error { return nil }
func (Nop) Close() error                          { return nil }

// Memory keeps entries in process, mostly for tests and the TUI.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Record(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *Memory) List() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Memory) Close() error { return nil }
