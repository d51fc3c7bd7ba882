package vectorstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

var _ Index = (*Chromem)(nil)

// Chromem keeps the vectors in an in-memory chromem-go collection and
// persists it with the chromem export format. Document IDs are positions.
type Chromem struct {
	db            *chromem.DB
	collection    *chromem.Collection
	name          string
	compress      bool
	encryptionKey string
	dimension     int
}

func NewChromem(collectionName string, compress bool, encryptionKey string) *Chromem {
	return &Chromem{
		name:          collectionName,
		compress:      compress,
		encryptionKey: encryptionKey,
	}
}

// vectors always arrive pre-computed
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem collection expects caller-supplied embeddings")
}

func (m *Chromem) Len() int {
	if m.collection == nil {
		return 0
	}
	return m.collection.Count()
}

func (m *Chromem) Dimension() int { return m.dimension }

func (m *Chromem) Build(ctx context.Context, vectors [][]float32) error {
	dim, err := checkUniform(vectors)
	if err != nil {
		return err
	}

	db := chromem.NewDB()
	c, err := db.GetOrCreateCollection(m.name, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}

	docs := make([]chromem.Document, len(vectors))
	for i, v := range vectors {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(i),
			Embedding: Normalize(v),
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	m.db = db
	m.collection = c
	m.dimension = dim
	return nil
}

func (m *Chromem) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if m.collection == nil {
		return nil, ErrNotBuilt
	}
	if len(query) != m.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", ErrDimensionMismatch, len(query), m.dimension)
	}
	k = min(k, m.collection.Count())
	if k <= 0 {
		return []Result{}, nil
	}

	// Rank every document here: chromem scores zero vectors as NaN.
	hits, err := m.collection.QueryEmbedding(ctx, Normalize(query), m.collection.Count(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	queryZero := isZero(query)
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: document id %q", ErrCorruptIndex, hit.ID)
		}
		dist := chordDistance(hit.Similarity, queryZero, isZero(hit.Embedding))
		results = append(results, Result{Distance: dist, Position: pos})
	}
	slices.SortFunc(results, func(a, b Result) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	return results[:min(k, len(results))], nil
}

// chordDistance converts cosine similarity to |a-b|^2 = 2 - 2cos between unit
// vectors. A zero vector stays zero after normalising, so it is at distance 1
// from any unit vector and 0 from another zero vector.
func chordDistance(similarity float32, queryZero, docZero bool) float32 {
	switch {
	case queryZero && docZero:
		return 0
	case queryZero || docZero:
		return 1
	case math.IsNaN(float64(similarity)):
		return 1
	}
	return max(2-2*similarity, 0)
}

// isZero reports whether v has no direction. chromem stores a normalised
// zero vector as NaNs.
func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 && !math.IsNaN(float64(x)) {
			return false
		}
	}
	return true
}

func (m *Chromem) Save(path string) error {
	if m.collection == nil {
		return ErrNotBuilt
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	log.Debug().
		Str("collection", m.name).
		Str("path", path).
		Bool("compress", m.compress).
		Bool("encrypted", m.encryptionKey != "").
		Msg("Exporting collection")

	if err := m.db.ExportToFile(path, m.compress, m.encryptionKey, m.name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

func (m *Chromem) Load(path string) error {
	db := chromem.NewDB()
	if err := db.ImportFromFile(path, m.encryptionKey, m.name); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	c := db.GetCollection(m.name, noEmbedding)
	if c == nil || c.Count() == 0 {
		return fmt.Errorf("%w: collection %q missing or empty", ErrCorruptIndex, m.name)
	}

	first, err := c.GetByID(context.Background(), "0")
	if err != nil || len(first.Embedding) == 0 {
		return fmt.Errorf("%w: first vector missing", ErrCorruptIndex)
	}

	m.db = db
	m.collection = c
	m.dimension = len(first.Embedding)
	return nil
}
