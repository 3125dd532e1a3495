package indexer

import (
	"fmt"
	"strings"
)

// Chunker splits text into fixed-length rune windows. Consecutive windows
// share exactly overlap runes, so every rune lands in at least one chunk.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. overlap must be in [0, size).
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than 0, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the window length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of runes shared by consecutive windows.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the windows of text in order. Whitespace-only windows are
// dropped; surviving chunks keep contiguous indexes.
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []Chunk
	for start := 0; ; start += step {
		end := min(start+c.size, len(runes))
		window := string(runes[start:end])
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, Chunk{
				Index:  len(chunks),
				Offset: start,
				Text:   window,
			})
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
