package memory

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve"

	"agentx/internal/domain"
	"agentx/internal/vectorstore"
)

var (
	_ vectorstore.Storage      = (*Storage)(nil)
	_ vectorstore.TextSearcher = (*Storage)(nil)
)

// Storage is an in-memory vector store using brute-force cosine similarity,
// with a bleve index over chunk texts for lexical fallback.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   []domain.VectorRecord
	lexical   bleve.Index
}

type lexicalDoc struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Init(dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	return s.resetLocked()
}

func (s *Storage) Upsert(records []domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lexical == nil {
		return errors.New("storage not initialised")
	}
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	batch := s.lexical.NewBatch()
	for _, r := range records {
		pos := len(s.records)
		s.records = append(s.records, r)
		if err := batch.Index(strconv.Itoa(pos), lexicalDoc{Text: r.Chunk.Text, Source: r.Chunk.Source}); err != nil {
			return fmt.Errorf("lexical index: %w", err)
		}
	}
	return s.lexical.Batch(batch)
}

// Search returns the topK records most cosine-similar to vector.
func (s *Storage) Search(vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	qn := norm(vector)
	results := make([]domain.SearchResult, len(s.records))
	for i, r := range s.records {
		score := 0.0
		if rn := norm(r.Vector); qn > 0 && rn > 0 {
			score = dot(r.Vector, vector) / (qn * rn)
		}
		results[i] = domain.SearchResult{Chunk: r.Chunk, Score: score}
	}
	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return results[order[a]].Score > results[order[b]].Score })
	if topK > len(order) {
		topK = len(order)
	}
	out := make([]domain.SearchResult, 0, topK)
	for _, idx := range order[:topK] {
		out = append(out, results[idx])
	}
	return out, nil
}

// SearchText ranks chunks with bleve's match query.
func (s *Storage) SearchText(query string, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lexical == nil || len(s.records) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 5
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), topK, 0, false)
	res, err := s.lexical.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	out := make([]domain.SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil || pos < 0 || pos >= len(s.records) {
			continue
		}
		out = append(out, domain.SearchResult{Chunk: s.records[pos].Chunk, Score: hit.Score})
	}
	return out, nil
}

func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked()
}

func (s *Storage) resetLocked() error {
	if s.lexical != nil {
		_ = s.lexical.Close()
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("lexical index: %w", err)
	}
	s.lexical = idx
	s.records = nil
	return nil
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
