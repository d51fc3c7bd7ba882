package models

import "time"

// Chunk is one bounded piece of the active document. Position is its index
// in chunk order and doubles as its position in the vector index.
type Chunk struct {
	Position int    `json:"position"`
	Text     string `json:"text"`
}

// Turn is one answered question in the session history.
type Turn struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Sources    []string  `json:"sources"`
	NumSources int       `json:"num_sources"`
	AskedAt    time.Time `json:"asked_at"`
}

// ChunkTexts returns the text of each chunk in order.
func ChunkTexts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}

// ChunksFromTexts assigns positions to texts in order.
func ChunksFromTexts(texts []string) []Chunk {
	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Position: i, Text: t}
	}
	return chunks
}
