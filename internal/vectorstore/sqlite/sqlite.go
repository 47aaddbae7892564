// Package sqlite persists one index generation as a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"agentx/internal/domain"
)

// Meta describes how a generation was built.
type Meta struct {
	Embedder  string
	Model     string
	Dimension int
	State     []byte
	Documents int
	BuiltAt   time.Time
}

const schema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value BLOB
);
CREATE TABLE records (
	seq         INTEGER PRIMARY KEY,
	source      TEXT NOT NULL,
	path        TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	start       INTEGER NOT NULL,
	text        TEXT NOT NULL,
	vector      BLOB NOT NULL
);`

// Save writes meta and records to a new database at path. The file must not
// already exist; a partially written file is removed on error.
func Save(ctx context.Context, path string, meta Meta, records []domain.VectorRecord) (err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		return fmt.Errorf("index file %s already exists", path)
	}
	db, err := open(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing database: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err = db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	metaRows := map[string][]byte{
		"embedder":  []byte(meta.Embedder),
		"model":     []byte(meta.Model),
		"dimension": []byte(fmt.Sprint(meta.Dimension)),
		"state":     meta.State,
		"documents": []byte(fmt.Sprint(meta.Documents)),
		"built_at":  []byte(meta.BuiltAt.UTC().Format(time.RFC3339Nano)),
	}
	for k, v := range metaRows {
		if v == nil {
			v = []byte{}
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("writing meta %s: %w", k, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (seq, source, path, chunk_index, start, text, vector) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range records {
		if _, err = stmt.ExecContext(ctx, r.Seq, r.Chunk.Source, r.Chunk.Path, r.Chunk.Index, r.Chunk.Start, r.Chunk.Text, encodeVector(r.Vector)); err != nil {
			return fmt.Errorf("writing record %d: %w", r.Seq, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load reads a generation written by Save. Records come back in seq order.
func Load(ctx context.Context, path string) (Meta, []domain.VectorRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return Meta{}, nil, err
	}
	db, err := open(path)
	if err != nil {
		return Meta{}, nil, err
	}
	defer db.Close()

	meta, err := loadMeta(ctx, db)
	if err != nil {
		return Meta{}, nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT seq, source, path, chunk_index, start, text, vector FROM records ORDER BY seq`)
	if err != nil {
		return Meta{}, nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []domain.VectorRecord
	for rows.Next() {
		var r domain.VectorRecord
		var blob []byte
		if err := rows.Scan(&r.Seq, &r.Chunk.Source, &r.Chunk.Path, &r.Chunk.Index, &r.Chunk.Start, &r.Chunk.Text, &blob); err != nil {
			return Meta{}, nil, fmt.Errorf("scanning record: %w", err)
		}
		if r.Vector, err = decodeVector(blob); err != nil {
			return Meta{}, nil, fmt.Errorf("record %d: %w", r.Seq, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return Meta{}, nil, fmt.Errorf("iterating records: %w", err)
	}
	return meta, records, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func loadMeta(ctx context.Context, db *sql.DB) (Meta, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return Meta{}, fmt.Errorf("querying meta: %w", err)
	}
	defer rows.Close()

	var meta Meta
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return Meta{}, fmt.Errorf("scanning meta: %w", err)
		}
		switch key {
		case "embedder":
			meta.Embedder = string(value)
		case "model":
			meta.Model = string(value)
		case "dimension":
			_, _ = fmt.Sscan(string(value), &meta.Dimension)
		case "state":
			if len(value) > 0 {
				meta.State = value
			}
		case "documents":
			_, _ = fmt.Sscan(string(value), &meta.Documents)
		case "built_at":
			meta.BuiltAt, _ = time.Parse(time.RFC3339Nano, string(value))
		}
	}
	return meta, rows.Err()
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return buf
}

func decodeVector(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, errors.New("corrupt vector blob")
	}
	v := make([]float64, len(buf)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v, nil
}
