// Package index owns the searchable vector index: full rebuilds written to a
// fresh generation file, an atomically swapped in-memory handle, and a lazy
// load of the last persisted generation on first use.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"agentx/internal/domain"
	"agentx/internal/embedding"
	"agentx/internal/vectorstore"
	"agentx/internal/vectorstore/memory"
	"agentx/internal/vectorstore/sqlite"
)

// ErrUnavailable means there is no usable index yet.
var ErrUnavailable = errors.New("retrieval index unavailable")

const (
	currentFile = "CURRENT"
	filePrefix  = "index-"
	fileSuffix  = ".db"
)

// Stats summarises the live generation.
type Stats struct {
	Generation int64     `json:"generation"`
	Chunks     int       `json:"chunks"`
	Documents  int       `json:"documents"`
	Embedder   string    `json:"embedder"`
	BuiltAt    time.Time `json:"built_at"`
}

type snapshot struct {
	stats    Stats
	embedder embedding.Embedder
	store    vectorstore.Storage
}

// Manager builds, persists and serves the index.
type Manager struct {
	dir      string
	factory  embedding.Factory
	embedder string
	log      *zap.Logger

	current atomic.Pointer[snapshot]

	loadOnce sync.Once
	loadErr  error

	// writeMu serialises rebuilds; searches never take it.
	writeMu sync.Mutex
}

// NewManager creates a manager persisting generations under dir. embedderName
// must match the Name of the embedders the factory produces; persisted
// generations built by a different embedder are ignored.
func NewManager(dir, embedderName string, factory embedding.Factory, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{dir: dir, factory: factory, embedder: embedderName, log: log.Named("index")}
}

// Rebuild replaces the whole index with chunks. documents is recorded for
// reporting. On error the previous generation stays live and on disk.
func (m *Manager) Rebuild(ctx context.Context, chunks []domain.Chunk, documents int) (Stats, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	// Load the persisted generation first so it stays live if this rebuild fails.
	m.loadOnce.Do(func() { m.loadErr = m.load(ctx) })

	emb, err := m.factory()
	if err != nil {
		return Stats{}, fmt.Errorf("creating embedder: %w", err)
	}

	records := make([]domain.VectorRecord, 0, len(chunks))
	if len(chunks) > 0 {
		corpus := make([]string, len(chunks))
		for i, ch := range chunks {
			corpus[i] = ch.Text
		}
		if err := emb.Prepare(corpus); err != nil {
			return Stats{}, fmt.Errorf("preparing embedder: %w", err)
		}
		for i, ch := range chunks {
			vec, err := emb.Embed(ctx, ch.Text)
			if err != nil {
				return Stats{}, fmt.Errorf("embedding chunk %d of %s: %w", ch.Index, ch.Source, err)
			}
			records = append(records, domain.VectorRecord{Seq: i, Vector: vec, Chunk: ch})
		}
	}

	gen := time.Now().UnixNano()
	if prev := m.current.Load(); prev != nil && gen <= prev.stats.Generation {
		gen = prev.stats.Generation + 1
	}
	stats := Stats{Generation: gen, Chunks: len(records), Documents: documents, Embedder: emb.Name(), BuiltAt: time.Now().UTC()}

	snap, err := newSnapshot(stats, emb, records)
	if err != nil {
		return Stats{}, err
	}

	meta := sqlite.Meta{Embedder: emb.Name(), Documents: documents, BuiltAt: stats.BuiltAt}
	if len(records) > 0 {
		meta.Dimension = len(records[0].Vector)
	}
	if modeler, ok := emb.(interface{ Model() string }); ok {
		meta.Model = modeler.Model()
	}
	if st, ok := emb.(embedding.Stateful); ok && len(records) > 0 {
		if meta.State, err = st.State(); err != nil {
			return Stats{}, fmt.Errorf("saving embedder state: %w", err)
		}
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return Stats{}, fmt.Errorf("creating index dir: %w", err)
	}
	name := filePrefix + strconv.FormatInt(gen, 10) + fileSuffix
	path := filepath.Join(m.dir, name)
	if err := sqlite.Save(ctx, path, meta, records); err != nil {
		return Stats{}, fmt.Errorf("persisting index: %w", err)
	}
	if err := m.writeCurrent(name); err != nil {
		_ = os.Remove(path)
		return Stats{}, fmt.Errorf("publishing index: %w", err)
	}

	m.current.Store(snap)
	m.prune(name)
	m.log.Info("index rebuilt",
		zap.Int64("generation", gen),
		zap.Int("chunks", stats.Chunks),
		zap.Int("documents", documents),
		zap.String("embedder", stats.Embedder))
	return stats, nil
}

// Search embeds query with the live generation's embedder and returns the
// topK most similar chunks. Queries without any known term fall back to
// lexical ranking.
func (m *Manager) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	snap, err := m.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	vec, err := snap.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if isZero(vec) {
		if ts, ok := snap.store.(vectorstore.TextSearcher); ok {
			return ts.SearchText(query, topK)
		}
		return nil, nil
	}
	return snap.store.Search(vec, topK)
}

// Available reports whether Search can serve results.
func (m *Manager) Available(ctx context.Context) bool {
	_, err := m.snapshot(ctx)
	return err == nil
}

// Stats describes the live generation; the zero value means none is loaded.
func (m *Manager) Stats(ctx context.Context) Stats {
	snap, err := m.snapshot(ctx)
	if err != nil {
		if cur := m.current.Load(); cur != nil {
			return cur.stats
		}
		return Stats{}
	}
	return snap.stats
}

func (m *Manager) snapshot(ctx context.Context) (*snapshot, error) {
	m.loadOnce.Do(func() { m.loadErr = m.load(ctx) })
	snap := m.current.Load()
	if snap == nil {
		if m.loadErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, m.loadErr)
		}
		return nil, ErrUnavailable
	}
	if snap.store.Count() == 0 {
		return nil, ErrUnavailable
	}
	return snap, nil
}

func (m *Manager) load(ctx context.Context) error {
	data, err := os.ReadFile(filepath.Join(m.dir, currentFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", currentFile, err)
	}
	name := strings.TrimSpace(string(data))
	gen, err := parseGeneration(name)
	if err != nil {
		return err
	}
	meta, records, err := sqlite.Load(ctx, filepath.Join(m.dir, name))
	if err != nil {
		m.log.Warn("persisted index unreadable", zap.String("file", name), zap.Error(err))
		return fmt.Errorf("loading %s: %w", name, err)
	}
	if meta.Embedder != m.embedder {
		m.log.Warn("persisted index built with a different embedder",
			zap.String("file", name), zap.String("have", meta.Embedder), zap.String("want", m.embedder))
		return fmt.Errorf("index built with embedder %q, configured %q", meta.Embedder, m.embedder)
	}
	emb, err := m.factory()
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	if st, ok := emb.(embedding.Stateful); ok && len(records) > 0 {
		if err := st.Restore(meta.State); err != nil {
			return fmt.Errorf("restoring embedder: %w", err)
		}
	}
	stats := Stats{Generation: gen, Chunks: len(records), Documents: meta.Documents, Embedder: meta.Embedder, BuiltAt: meta.BuiltAt}
	snap, err := newSnapshot(stats, emb, records)
	if err != nil {
		return err
	}
	m.current.CompareAndSwap(nil, snap)
	m.log.Info("index loaded", zap.String("file", name), zap.Int("chunks", len(records)))
	return nil
}

func newSnapshot(stats Stats, emb embedding.Embedder, records []domain.VectorRecord) (*snapshot, error) {
	var store vectorstore.Storage = memory.NewStorage()
	dim := 1
	if len(records) > 0 {
		dim = len(records[0].Vector)
	}
	if err := store.Init(dim); err != nil {
		return nil, fmt.Errorf("initialising store: %w", err)
	}
	if err := store.Upsert(records); err != nil {
		return nil, fmt.Errorf("loading store: %w", err)
	}
	return &snapshot{stats: stats, embedder: emb, store: store}, nil
}

func (m *Manager) writeCurrent(name string) error {
	tmp, err := os.CreateTemp(m.dir, currentFile+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(name + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(m.dir, currentFile))
}

// prune removes generation files other than keep.
func (m *Manager) prune(keep string) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if name == keep || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, name)); err != nil {
			m.log.Warn("removing old index generation", zap.String("file", name), zap.Error(err))
		}
	}
}

func parseGeneration(name string) (int64, error) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return 0, fmt.Errorf("malformed %s entry %q", currentFile, name)
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed %s entry %q", currentFile, name)
	}
	return gen, nil
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
