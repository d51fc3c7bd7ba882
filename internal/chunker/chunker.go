package chunker

import (
	"unicode"

	"contextiq/internal/models"
)

// separators in priority order: paragraph, line, word. A character boundary
// is the implicit last resort.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(" "),
}

// Chunker splits document text into overlapping chunks.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) *Chunker {
	size, overlap = normalize(size, overlap)
	return &Chunker{size: size, overlap: overlap}
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text and assigns positions in chunk order.
func (c *Chunker) Chunk(text string) []models.Chunk {
	return models.ChunksFromTexts(Split(text, c.size, c.overlap))
}

// Split cuts text into chunks of at most size characters. Each chunk ends at
// the highest-priority separator that fits and the next chunk starts exactly
// overlap characters before that end, so the tail of chunk i is the head of
// chunk i+1. A whitespace run too long to bridge ends the chunk before it and
// the next chunk starts fresh after the run. Chunks never end in whitespace
// and whitespace-only input yields no chunks.
func Split(text string, size, overlap int) []string {
	runes := []rune(text)
	var chunks []string
	for _, sp := range spans(runes, size, overlap) {
		chunks = append(chunks, string(runes[sp.start:sp.end]))
	}
	return chunks
}

// span is one chunk as rune offsets. overlapped reports whether it starts
// inside the previous span rather than after a skipped whitespace run.
type span struct {
	start, end int
	overlapped bool
}

func spans(runes []rune, size, overlap int) []span {
	if size <= 0 {
		return nil
	}
	size, overlap = normalize(size, overlap)

	n := len(runes)
	start := skipSpace(runes, 0)
	fresh := true
	var out []span
	for start < n {
		limit := min(start+size, n)
		floor := start
		if !fresh {
			floor = start + overlap
		}

		end, ok := limit, false
		if limit == n {
			end = trimRight(runes, start, n)
			ok = end > floor
		} else {
			end, ok = breakPoint(runes, start, limit, overlap)
		}

		if !ok {
			// Nothing past the overlap but whitespace: keep any new text,
			// then restart after the run without claiming overlap.
			end = trimRight(runes, start, limit)
			if end > floor {
				out = append(out, span{start: start, end: end, overlapped: !fresh})
			}
			start = skipSpace(runes, end)
			fresh = true
			continue
		}

		out = append(out, span{start: start, end: end, overlapped: !fresh})
		if limit == n || skipSpace(runes, end) >= n {
			break
		}
		if overlap == 0 {
			start = skipSpace(runes, end)
			fresh = true
		} else {
			start = end - overlap
			fresh = false
		}
	}
	return out
}

// breakPoint picks the end of the chunk starting at start. The end must lie
// beyond start+overlap so the next chunk begins after this one; ok is false
// when only whitespace follows that point inside the window.
func breakPoint(runes []rune, start, limit, overlap int) (int, bool) {
	floor := start + overlap
	for _, sep := range separators {
		for p := limit; p > floor; p-- {
			if !hasPrefixAt(runes, p, sep) {
				continue
			}
			if end := trimRight(runes, start, p); end > floor {
				return end, true
			}
		}
	}
	if end := trimRight(runes, start, limit); end > floor {
		return end, true
	}
	return limit, false
}

func hasPrefixAt(runes []rune, p int, sep []rune) bool {
	if p+len(sep) > len(runes) {
		return false
	}
	for i, r := range sep {
		if runes[p+i] != r {
			return false
		}
	}
	return true
}

func trimRight(runes []rune, start, end int) int {
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return end
}

func skipSpace(runes []rune, i int) int {
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i
}

func normalize(size, overlap int) (int, int) {
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2 // keep the walk moving
	}
	return size, overlap
}
