package chunker

import (
	"strings"

	"agentx/internal/domain"
)

// Defaults for the window chunker.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// WindowChunker splits text into fixed-size rune windows. Each window after
// the first starts overlap runes before the end of the previous one.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker creates a window chunker. Non-positive sizes fall back to
// DefaultChunkSize and an overlap that would stall the window is reduced to a quarter of the size.
func NewWindowChunker(size, overlap int) *WindowChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &WindowChunker{size: size, overlap: overlap}
}

// Size returns the maximum chunk length in runes.
func (c *WindowChunker) Size() int { return c.size }

// Overlap returns the overlap between consecutive chunks in runes.
func (c *WindowChunker) Overlap() int { return c.overlap }

func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(document.Content) == "" {
		return nil, nil
	}
	runes := []rune(document.Content)
	step := c.size - c.overlap

	var chunks []domain.Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			Text:   string(runes[start:end]),
			Source: document.Name,
			Path:   document.Path,
			Index:  len(chunks),
			Start:  start,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
