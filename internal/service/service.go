// Package service runs ingestion: scan the evidence roots, extract text,
// chunk it and rebuild the retrieval index.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"agentx/internal/domain"
	"agentx/internal/extractor"
	"agentx/internal/index"
	"agentx/internal/metrics"
	"agentx/internal/scanner"
)

// Extractor turns a file into text.
type Extractor interface {
	Extract(path string) (string, error)
}

// Indexer is the write and read side of the retrieval index.
type Indexer interface {
	Rebuild(ctx context.Context, chunks []domain.Chunk, documents int) (index.Stats, error)
	Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)
	Available(ctx context.Context) bool
	Stats(ctx context.Context) index.Stats
}

// IngestReport describes one ingestion run.
type IngestReport struct {
	Scanned     int           `json:"scanned"`
	Documents   int           `json:"documents"`
	Unsupported int           `json:"unsupported"`
	Failed      []string      `json:"failed,omitempty"`
	Chunks      int           `json:"chunks"`
	Generation  int64         `json:"generation"`
	Summary     string        `json:"summary,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// summaryInputLimit bounds how much text the summarizer sees per run.
const summaryInputLimit = 200_000

type Service struct {
	roots               []string
	extractor           Extractor
	chunker             domain.Chunker
	index               Indexer
	summarizer          domain.Summarizer
	summaryMaxSentences int
	metrics             *metrics.Metrics
	logger              *zap.Logger

	// mu serialises ingestion runs so uploads arriving together do not
	// interleave scans.
	mu sync.Mutex
}

// Options carry the optional collaborators of a Service.
type Options struct {
	Summarizer          domain.Summarizer
	SummaryMaxSentences int
	Metrics             *metrics.Metrics
	Logger              *zap.Logger
}

func New(roots []string, ex Extractor, ch domain.Chunker, idx Indexer, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		roots:               roots,
		extractor:           ex,
		chunker:             ch,
		index:               idx,
		summarizer:          opts.Summarizer,
		summaryMaxSentences: opts.SummaryMaxSentences,
		metrics:             opts.Metrics,
		logger:              opts.Logger.Named("ingest"),
	}
}

// Ingest rebuilds the index from every extractable file under the roots.
// Unsupported and unreadable files are skipped. An error means the index
// could not be rebuilt; the previous one stays live.
func (s *Service) Ingest(ctx context.Context) (IngestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	docs := scanner.Scan(s.roots...)
	report := IngestReport{Scanned: len(docs)}

	var chunks []domain.Chunk
	var corpus strings.Builder
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		text, err := s.extractor.Extract(doc.Path)
		if errors.Is(err, extractor.ErrUnsupported) {
			report.Unsupported++
			s.metrics.Skipped("unsupported")
			continue
		}
		if err != nil {
			report.Failed = append(report.Failed, doc.Name)
			s.metrics.Skipped("extract_error")
			s.logger.Warn("skipping document", zap.String("path", doc.Path), zap.Error(err))
			continue
		}
		doc.Content = text
		docChunks, err := s.chunker.Chunk(doc)
		if err != nil {
			report.Failed = append(report.Failed, doc.Name)
			s.metrics.Skipped("chunk_error")
			s.logger.Warn("chunking failed", zap.String("path", doc.Path), zap.Error(err))
			continue
		}
		report.Documents++
		chunks = append(chunks, docChunks...)
		if corpus.Len() < summaryInputLimit {
			corpus.WriteString(text)
			corpus.WriteString("\n")
		}
	}

	stats, err := s.index.Rebuild(ctx, chunks, report.Documents)
	report.Duration = time.Since(start)
	if err != nil {
		s.metrics.Ingest("error", report.Duration.Seconds(), 0)
		s.logger.Error("index rebuild failed", zap.Error(err))
		return report, fmt.Errorf("rebuilding index: %w", err)
	}
	report.Chunks = stats.Chunks
	report.Generation = stats.Generation
	report.Summary = s.summarize(corpus.String())
	s.metrics.Ingest("ok", report.Duration.Seconds(), report.Chunks)

	s.logger.Info("ingestion complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("documents", report.Documents),
		zap.Int("unsupported", report.Unsupported),
		zap.Int("failed", len(report.Failed)),
		zap.Int("chunks", report.Chunks),
		zap.Int64("generation", report.Generation),
		zap.Duration("took", report.Duration),
	)
	return report, nil
}

// Documents lists every file under the roots, ordered by path.
func (s *Service) Documents() []domain.Document {
	return scanner.Scan(s.roots...)
}

// Search delegates to the index.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	return s.index.Search(ctx, query, topK)
}

// Available reports whether retrieval can serve queries.
func (s *Service) Available(ctx context.Context) bool { return s.index.Available(ctx) }

// Stats returns the live index statistics.
func (s *Service) Stats(ctx context.Context) index.Stats { return s.index.Stats(ctx) }

func (s *Service) summarize(text string) string {
	if s.summarizer == nil || strings.TrimSpace(text) == "" {
		return ""
	}
	summary, err := s.summarizer.Summarize(text, s.summaryMaxSentences)
	if err != nil {
		s.logger.Warn("summary failed", zap.Error(err))
		return ""
	}
	return summary
}
