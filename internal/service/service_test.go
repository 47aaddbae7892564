package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"agentx/internal/chunker"
	"agentx/internal/domain"
	"agentx/internal/embedding"
	"agentx/internal/embedding/tfidf"
	"agentx/internal/extractor"
	"agentx/internal/index"
	"agentx/internal/summarizer"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newService(t *testing.T, evidence string) (*Service, *index.Manager) {
	t.Helper()
	factory := func() (embedding.Embedder, error) { return tfidf.NewEmbedder(), nil }
	idx := index.NewManager(t.TempDir(), tfidf.Name, factory, zaptest.NewLogger(t))
	svc := New(
		[]string{evidence, filepath.Join(evidence, "uploads")},
		extractor.New(),
		chunker.NewWindowChunker(200, 40),
		idx,
		Options{Summarizer: summarizer.New(), SummaryMaxSentences: 2, Logger: zaptest.NewLogger(t)},
	)
	return svc, idx
}

func tenLines(token string) string {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		if i == 6 {
			b.WriteString("The storage unit code is " + token + ".\n")
			continue
		}
		b.WriteString("Routine maintenance log entry with nothing remarkable.\n")
	}
	return b.String()
}

func sources(results []domain.SearchResult) []string {
	var out []string
	for _, r := range results {
		out = append(out, r.Chunk.Source)
	}
	return out
}

func TestIngest_SkipsUnsupportedAndBrokenFiles(t *testing.T) {
	evidence := t.TempDir()
	writeFile(t, evidence, "notes.md", "# Notes\nThe meeting was moved to Thursday.")
	writeFile(t, evidence, "uploads/report.txt", tenLines("zebra77"))
	writeFile(t, evidence, "photo.png", "\x89PNG\r\n")
	writeFile(t, evidence, "broken.pdf", "not a pdf")

	svc, _ := newService(t, evidence)
	report, err := svc.Ingest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 1, report.Unsupported)
	assert.Equal(t, []string{"broken.pdf"}, report.Failed)
	assert.Positive(t, report.Chunks)
	assert.NotEmpty(t, report.Summary)
	assert.True(t, svc.Available(context.Background()))
	assert.Equal(t, 2, svc.Stats(context.Background()).Documents)
}

func TestIngest_UniqueTokenIsRetrievable(t *testing.T) {
	evidence := t.TempDir()
	writeFile(t, evidence, "uploads/report.txt", tenLines("zebra77"))
	writeFile(t, evidence, "other.txt", "Completely unrelated shopping list: eggs, milk and bread.")

	svc, _ := newService(t, evidence)
	_, err := svc.Ingest(context.Background())
	require.NoError(t, err)

	results, err := svc.Search(context.Background(), "zebra77", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "report.txt", results[0].Chunk.Source)
}

func TestIngest_RemovedDocumentDisappears(t *testing.T) {
	evidence := t.TempDir()
	keep := "The garden fence was repaired in April."
	writeFile(t, evidence, "fence.txt", keep)
	gone := writeFile(t, evidence, "boat.txt", "The boat trailer was sold to a neighbour.")

	svc, _ := newService(t, evidence)
	_, err := svc.Ingest(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(gone))
	report, err := svc.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)

	results, err := svc.Search(context.Background(), "boat trailer sold", 5)
	require.NoError(t, err)
	assert.NotContains(t, sources(results), "boat.txt")
}

func TestIngest_EmptyEvidenceLeavesRetrievalUnavailable(t *testing.T) {
	svc, _ := newService(t, filepath.Join(t.TempDir(), "missing"))
	report, err := svc.Ingest(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Documents)
	assert.Zero(t, report.Chunks)

	_, err = svc.Search(context.Background(), "anything", 3)
	assert.ErrorIs(t, err, index.ErrUnavailable)
}

type brokenIndexer struct{ Indexer }

func (brokenIndexer) Rebuild(context.Context, []domain.Chunk, int) (index.Stats, error) {
	return index.Stats{}, errors.New("disk full")
}

func TestIngest_RebuildFailureIsReported(t *testing.T) {
	evidence := t.TempDir()
	writeFile(t, evidence, "a.txt", "Some text.")
	svc := New([]string{evidence}, extractor.New(), chunker.NewWindowChunker(0, 0), brokenIndexer{}, Options{})

	report, err := svc.Ingest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, report.Documents)
}

func TestDocuments(t *testing.T) {
	evidence := t.TempDir()
	writeFile(t, evidence, "b.txt", "b")
	writeFile(t, evidence, "uploads/a.pdf", "a")

	svc, _ := newService(t, evidence)
	docs := svc.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "b.txt", docs[0].Name)
	assert.Equal(t, "a.pdf", docs[1].Name)
}
