package index

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

	"agentx/internal/domain"
	"agentx/internal/embedding"
	"agentx/internal/embedding/tfidf"
)

func tfidfFactory() (embedding.Embedder, error) { return tfidf.NewEmbedder(), nil }

// failingEmbedder embeds normally until it sees a chunk containing poison.
type failingEmbedder struct {
	*tfidf.Embedder
	poison string
}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.Contains(text, f.poison) {
		return nil, errors.New("embedding backend exploded")
	}
	return f.Embedder.Embed(ctx, text)
}

func chunk(source, text string) domain.Chunk {
	return domain.Chunk{Text: text, Source: source, Path: "/evidence/" + source}
}

var corpus = []domain.Chunk{
	chunk("lease.txt", "The tenancy agreement starts on the first of June and the rent is paid monthly."),
	chunk("invoice.txt", "Plumbing invoice for the burst pipe under the kitchen sink."),
	chunk("witness.txt", "The neighbour heard shouting late at night and called the police."),
}

func newManager(t *testing.T, dir string) *Manager {
	return NewManager(dir, tfidf.Name, tfidfFactory, zaptest.NewLogger(t))
}

func sources(results []domain.SearchResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Chunk.Source)
	}
	return out
}

func TestManager_UnavailableBeforeFirstBuild(t *testing.T) {
	m := newManager(t, t.TempDir())
	_, err := m.Search(context.Background(), "rent", 3)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, m.Available(context.Background()))
	assert.Zero(t, m.Stats(context.Background()).Generation)
}

func TestManager_EmptyRebuildIsUnavailable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := newManager(t, dir)

	stats, err := m.Rebuild(ctx, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Chunks)

	_, err = m.Search(ctx, "rent", 3)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.FileExists(t, filepath.Join(dir, currentFile))
}

func TestManager_VerbatimQueryFindsSource(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, t.TempDir())
	_, err := m.Rebuild(ctx, corpus, 3)
	require.NoError(t, err)

	for _, ch := range corpus {
		res, err := m.Search(ctx, ch.Text, 3)
		require.NoError(t, err)
		require.NotEmpty(t, res)
		assert.Equal(t, ch.Source, res[0].Chunk.Source)
	}
	assert.True(t, m.Available(ctx))
	assert.Equal(t, 3, m.Stats(ctx).Chunks)
}

func TestManager_RebuildReplacesContent(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, t.TempDir())
	_, err := m.Rebuild(ctx, corpus, 3)
	require.NoError(t, err)

	res, err := m.Search(ctx, "plumbing burst pipe", 3)
	require.NoError(t, err)
	assert.Contains(t, sources(res), "invoice.txt")

	_, err = m.Rebuild(ctx, []domain.Chunk{corpus[0], corpus[2]}, 2)
	require.NoError(t, err)

	res, err = m.Search(ctx, "plumbing burst pipe", 3)
	require.NoError(t, err)
	assert.NotContains(t, sources(res), "invoice.txt")
}

func TestManager_FailedRebuildKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := newManager(t, dir)
	first, err := m.Rebuild(ctx, corpus, 3)
	require.NoError(t, err)
	current, err := os.ReadFile(filepath.Join(dir, currentFile))
	require.NoError(t, err)

	m.factory = func() (embedding.Embedder, error) {
		return &failingEmbedder{Embedder: tfidf.NewEmbedder(), poison: "stolen"}, nil
	}
	extra := append(append([]domain.Chunk{}, corpus...), chunk("theft.txt", "The bicycle was stolen from the shed."))
	_, err = m.Rebuild(ctx, extra, 4)
	require.Error(t, err)

	after, err := os.ReadFile(filepath.Join(dir, currentFile))
	require.NoError(t, err)
	assert.Equal(t, string(current), string(after))
	assert.Equal(t, first.Generation, m.Stats(ctx).Generation)

	res, err := m.Search(ctx, "neighbour heard shouting", 3)
	require.NoError(t, err)
	assert.Equal(t, "witness.txt", res[0].Chunk.Source)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "only CURRENT and one generation file")
}

func TestManager_LazyLoadAfterRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	_, err := newManager(t, dir).Rebuild(ctx, corpus, 3)
	require.NoError(t, err)

	restarted := newManager(t, dir)
	res, err := restarted.Search(ctx, "police shouting neighbour", 3)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "witness.txt", res[0].Chunk.Source)
	assert.Equal(t, 3, restarted.Stats(ctx).Documents)
}

func TestManager_FailedRebuildAfterRestartKeepsPersistedIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	first, err := newManager(t, dir).Rebuild(ctx, corpus, 3)
	require.NoError(t, err)

	restarted := newManager(t, dir)
	restarted.factory = func() (embedding.Embedder, error) {
		return &failingEmbedder{Embedder: tfidf.NewEmbedder(), poison: "stolen"}, nil
	}
	extra := append(append([]domain.Chunk{}, corpus...), chunk("theft.txt", "The bicycle was stolen from the shed."))
	_, err = restarted.Rebuild(ctx, extra, 4)
	require.Error(t, err)

	assert.True(t, restarted.Available(ctx))
	assert.Equal(t, first.Generation, restarted.Stats(ctx).Generation)
	res, err := restarted.Search(ctx, "neighbour heard shouting", 3)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "witness.txt", res[0].Chunk.Source)
}

func TestManager_CorpusWithoutTermsUsesLexicalSearch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := newManager(t, dir)
	stats, err := m.Rebuild(ctx, []domain.Chunk{chunk("ledger.txt", "2024-06-01 555-1234 4417 9921")}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chunks)

	res, err := m.Search(ctx, "4417", 3)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "ledger.txt", res[0].Chunk.Source)

	restarted := newManager(t, dir)
	res, err = restarted.Search(ctx, "9921", 3)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "ledger.txt", res[0].Chunk.Source)
}

func TestManager_EmbedderMismatchIsUnavailable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	_, err := newManager(t, dir).Rebuild(ctx, corpus, 3)
	require.NoError(t, err)

	other := NewManager(dir, "openai", tfidfFactory, zaptest.NewLogger(t))
	_, err = other.Search(ctx, "rent", 3)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestManager_OldGenerationsPruned(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := newManager(t, dir)
	for i := 0; i < 3; i++ {
		_, err := m.Rebuild(ctx, corpus, 3)
		require.NoError(t, err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, filePrefix+"*"+fileSuffix))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestManager_LexicalFallback(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, t.TempDir())
	chunks := append(append([]domain.Chunk{}, corpus...), chunk("receipt.txt", "Receipt number 4471 for the deposit."))
	_, err := m.Rebuild(ctx, chunks, 4)
	require.NoError(t, err)

	// Digits are not TF-IDF terms, so the query vector is zero.
	res, err := m.Search(ctx, "4471", 3)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "receipt.txt", res[0].Chunk.Source)

	res, err = m.Search(ctx, "9999", 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}
