package domain

import (
	"context"
	"time"
)

// Document represents a single file found under the evidence roots.
// Content is empty until the extractor has run.
type Document struct {
	Name    string
	Path    string
	Ext     string
	Size    int64
	ModTime time.Time
	Content string
}

// Chunk is a bounded window of one document's extracted text.
type Chunk struct {
	Text   string
	Source string
	Path   string
	Index  int
	Start  int
}

// VectorRecord pairs a chunk with its embedding. Seq is the insertion order.
type VectorRecord struct {
	Seq    int
	Vector []float64
	Chunk  Chunk
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Roles used in conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of the conversation.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Retriever returns the chunks most relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]SearchResult, error)
}
