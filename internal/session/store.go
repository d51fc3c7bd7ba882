package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"contextiq/internal/models"
)

// ChunksPath is where the chunk texts of the index at indexPath are kept.
func ChunksPath(indexPath string) string {
	return indexPath + ".chunks.json"
}

func WriteChunks(path string, chunks []models.Chunk) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode chunks: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write chunks: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadChunks returns the chunk texts in position order.
func ReadChunks(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks: %w", err)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		if c.Position != i {
			return nil, fmt.Errorf("chunk file out of order at %d", i)
		}
		texts[i] = c.Text
	}
	return texts, nil
}
