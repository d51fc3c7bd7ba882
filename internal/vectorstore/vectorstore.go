// Package vectorstore holds the per-document vector index. Index positions
// are chunk positions; the index stores no text.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"contextiq/internal/config"
)

var (
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrNotBuilt          = errors.New("index not built")
	ErrCorruptIndex      = errors.New("corrupt index file")
	ErrNoVectors         = errors.New("no vectors to index")
)

// Result is one search hit. Distance is the squared Euclidean distance
// between unit vectors, so smaller means more similar.
type Result struct {
	Distance float32
	Position int
}

type Index interface {
	Build(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	Save(path string) error
	Load(path string) error
	Len() int
	Dimension() int
}

// New returns an empty index of the configured type.
func New(cfg *config.IndexConfig) (Index, error) {
	switch cfg.Type {
	case config.IndexFlat, "":
		return NewFlat(), nil
	case config.IndexChromem:
		return NewChromem(cfg.Collection, cfg.Compress, cfg.EncryptionKey), nil
	default:
		return nil, fmt.Errorf("unknown index type: %s", cfg.Type)
	}
}

// Normalize returns a unit-length copy of v. A zero vector stays zero.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return out
	}
	inv := 1 / math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// checkUniform returns the shared dimension of vectors.
func checkUniform(vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, ErrNoVectors
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, fmt.Errorf("%w: empty vector at position 0", ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return dim, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	return nil
}
