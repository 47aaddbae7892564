package vectorstore

import "agentx/internal/domain"

// Storage holds vector records and supports similarity search.
type Storage interface {
	Init(dimension int) error
	Upsert(records []domain.VectorRecord) error
	Search(vector []float64, topK int) ([]domain.SearchResult, error)
	Count() int
	Clear() error
}

// TextSearcher is implemented by stores that can rank chunks lexically when
// a query has no usable embedding.
type TextSearcher interface {
	SearchText(query string, topK int) ([]domain.SearchResult, error)
}
