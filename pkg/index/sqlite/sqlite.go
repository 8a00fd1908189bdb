// Package sqlite is the default vector index backend: a named directory
// per deployment, one SQLite database file per collection. It uses
// modernc.org/sqlite, a pure Go driver, so local deployments need no
// external services. Search is a brute-force cosine scan, which is exact
// and fast enough for single-machine collections.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/inkpotlabs/ragcore/internal/models"
	"github.com/inkpotlabs/ragcore/internal/ragerr"
	"github.com/inkpotlabs/ragcore/internal/vecmath"
)

type Config struct {
	Dir        string // directory holding the deployment's collections
	Collection string // collection name, default "chunks"
}

// Index is a persisted collection of (vector, text, metadata) entries.
// Writers are serialized behind the write lock; searches share a read
// lock, so Clear swaps the database handle atomically and in-flight
// readers see either the old or the new collection, never a torn view.
type Index struct {
	config Config
	path   string

	mu sync.RWMutex
	db *sql.DB
}

func Open(config Config) (*Index, error) {
	if config.Collection == "" {
		config.Collection = "chunks"
	}
	if config.Dir == "" {
		config.Dir = filepath.Join("data", "index")
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	path := filepath.Join(config.Dir, config.Collection+".db")
	db, err := openCollection(path)
	if err != nil {
		return nil, err
	}
	return &Index{config: config, path: path, db: db}, nil
}

func openCollection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening collection database: %w", err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chunk_id TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT
	);
	CREATE TABLE IF NOT EXISTS collection_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	INSERT OR IGNORE INTO collection_info (key, value) VALUES ('metric', 'cosine');`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating collection schema: %w", err)
	}
	return db, nil
}

// Add stores chunks with their embeddings, assigning position-based
// collection-scoped ids. All vectors must share the collection's
// dimension, which is pinned by the first insertion.
func (x *Index) Add(ctx context.Context, chunks []models.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return ragerr.Validationf("index.add", "%d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	dim, err := x.dimension(ctx)
	if err != nil {
		return err
	}
	for i, vec := range embeddings {
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			return ragerr.Validationf("index.add", "embedding %d has dimension %d, collection uses %d", i, len(vec), dim)
		}
	}
	if dim == 0 {
		return ragerr.Validationf("index.add", "embeddings are empty vectors")
	}

	base, err := x.count(ctx)
	if err != nil {
		return err
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return ragerr.Wrap(ragerr.KindRetrieval, "index.add", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO collection_info (key, value) VALUES ('dimension', ?)`,
		strconv.Itoa(dim)); err != nil {
		return ragerr.Wrap(ragerr.KindRetrieval, "index.add", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (chunk_id, content, embedding, metadata) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return ragerr.Wrap(ragerr.KindRetrieval, "index.add", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		meta, err := encodeMetadata(chunk.Metadata)
		if err != nil {
			return ragerr.Wrap(ragerr.KindRetrieval, "index.add", err)
		}
		id := fmt.Sprintf("chunk_%d", base+i)
		if _, err := stmt.ExecContext(ctx, id, chunk.Text, encodeVector(embeddings[i]), meta); err != nil {
			return ragerr.Wrap(ragerr.KindRetrieval, "index.add", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ragerr.Wrap(ragerr.KindRetrieval, "index.add", err)
	}
	return nil
}

// Search returns at most topK entries ranked by ascending cosine
// distance, ties broken by insertion order. An empty collection yields
// an empty result, not an error.
func (x *Index) Search(ctx context.Context, query []float32, topK int, filter map[string]string) ([]models.RetrievalResult, error) {
	if topK < 1 {
		return nil, ragerr.Validationf("index.search", "top_k must be at least 1, got %d", topK)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	dim, err := x.dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return nil, nil
	}
	if len(query) != dim {
		return nil, ragerr.Validationf("index.search", "query has dimension %d, collection uses %d", len(query), dim)
	}

	rows, err := x.db.QueryContext(ctx,
		`SELECT chunk_id, content, embedding, metadata FROM chunks ORDER BY id`)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindRetrieval, "index.search", err)
	}
	defer rows.Close()

	var results []models.RetrievalResult
	for rows.Next() {
		var (
			id      string
			content string
			blob    []byte
			meta    sql.NullString
		)
		if err := rows.Scan(&id, &content, &blob, &meta); err != nil {
			return nil, ragerr.Wrap(ragerr.KindRetrieval, "index.search", err)
		}
		metadata, err := decodeMetadata(meta)
		if err != nil {
			return nil, ragerr.Wrap(ragerr.KindRetrieval, "index.search", err)
		}
		if !matchesFilter(metadata, filter) {
			continue
		}
		results = append(results, models.RetrievalResult{
			ID:       id,
			Text:     content,
			Metadata: metadata,
			Distance: vecmath.CosineDistance(query, decodeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, ragerr.Wrap(ragerr.KindRetrieval, "index.search", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (x *Index) Size(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.count(ctx)
}

// Clear atomically drops and recreates the collection under the same
// name: the database file is removed and a fresh one swapped in under
// the write lock, so it is reflected on disk before Clear returns.
func (x *Index) Clear(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.db.Close(); err != nil {
		return ragerr.Wrap(ragerr.KindRetrieval, "index.clear", err)
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(x.path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return ragerr.Wrap(ragerr.KindRetrieval, "index.clear", err)
		}
	}

	db, err := openCollection(x.path)
	if err != nil {
		return ragerr.Wrap(ragerr.KindRetrieval, "index.clear", err)
	}
	x.db = db
	return nil
}

func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.db.Close()
}

func (x *Index) count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, ragerr.Wrap(ragerr.KindRetrieval, "index.size", err)
	}
	return n, nil
}

func (x *Index) dimension(ctx context.Context) (int, error) {
	var value string
	err := x.db.QueryRowContext(ctx,
		`SELECT value FROM collection_info WHERE key = 'dimension'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, ragerr.Wrap(ragerr.KindRetrieval, "index", err)
	}
	dim, err := strconv.Atoi(value)
	if err != nil {
		return 0, ragerr.Wrap(ragerr.KindRetrieval, "index", err)
	}
	return dim, nil
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, want := range filter {
		if metadata[k] != want {
			return false
		}
	}
	return true
}

func encodeMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	return json.Marshal(metadata)
}

func decodeMetadata(raw sql.NullString) (map[string]string, error) {
	if !raw.Valid || raw.String == "" {
		return map[string]string{}, nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(raw.String), &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
