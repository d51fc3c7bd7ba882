package vectorstore

import (
	"bufio"
	"cmp"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"slices"
)

const (
	flatMagic   = "contextiq-flat"
	flatVersion = 1
)

var _ Index = (*Flat)(nil)

// Flat is an exact brute-force index. It is sized for a single document,
// low thousands of vectors at most.
type Flat struct {
	dimension int
	vectors   [][]float32
}

type flatFile struct {
	Magic     string
	Version   int
	Dimension int
	Vectors   [][]float32
}

func NewFlat() *Flat { return &Flat{} }

func (f *Flat) Len() int       { return len(f.vectors) }
func (f *Flat) Dimension() int { return f.dimension }

func (f *Flat) Build(_ context.Context, vectors [][]float32) error {
	dim, err := checkUniform(vectors)
	if err != nil {
		return err
	}
	stored := make([][]float32, len(vectors))
	for i, v := range vectors {
		stored[i] = Normalize(v)
	}
	f.dimension = dim
	f.vectors = stored
	return nil
}

func (f *Flat) Search(_ context.Context, query []float32, k int) ([]Result, error) {
	if f.vectors == nil {
		return nil, ErrNotBuilt
	}
	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", ErrDimensionMismatch, len(query), f.dimension)
	}
	k = min(k, len(f.vectors))
	if k <= 0 {
		return []Result{}, nil
	}

	q := Normalize(query)
	results := make([]Result, len(f.vectors))
	for i, v := range f.vectors {
		results[i] = Result{Distance: squaredL2(q, v), Position: i}
	}
	slices.SortFunc(results, func(a, b Result) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	return results[:k], nil
}

// Save writes the index with gob to a temp file and renames it into place.
func (f *Flat) Save(path string) error {
	if f.vectors == nil {
		return ErrNotBuilt
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	w := bufio.NewWriter(file)
	err = gob.NewEncoder(w).Encode(flatFile{
		Magic:     flatMagic,
		Version:   flatVersion,
		Dimension: f.dimension,
		Vectors:   f.vectors,
	})
	if err == nil {
		err = w.Flush()
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write index: %w", err)
	}
	return os.Rename(tmp, path)
}

func (f *Flat) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	defer file.Close()

	var data flatFile
	if err := gob.NewDecoder(bufio.NewReader(file)).Decode(&data); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	if data.Magic != flatMagic || data.Version != flatVersion {
		return fmt.Errorf("%w: unexpected header %q v%d", ErrCorruptIndex, data.Magic, data.Version)
	}
	dim, err := checkUniform(data.Vectors)
	if err != nil || dim != data.Dimension {
		return fmt.Errorf("%w: inconsistent vectors", ErrCorruptIndex)
	}

	f.dimension = data.Dimension
	f.vectors = data.Vectors
	return nil
}
