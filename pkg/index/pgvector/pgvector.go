// Package pgvector is the PostgreSQL vector index backend, for
// deployments that already run Postgres with the pgvector extension.
// Each collection is one table plus a registry row pinning its
// embedding dimension.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvec "github.com/pgvector/pgvector-go"

	"github.com/inkpotlabs/ragcore/internal/models"
	"github.com/inkpotlabs/ragcore/internal/ragerr"
)

var collectionNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type Config struct {
	ConnString string
	Collection string // table name, default "chunks"
}

// Index stores one collection per table. Writers (Add, Clear) are
// serialized behind the write lock; searches share a read lock so a
// Clear is observed as a single atomic swap.
type Index struct {
	config Config
	pool   *pgxpool.Pool
	mu     sync.RWMutex
}

func Open(ctx context.Context, config Config) (*Index, error) {
	if config.Collection == "" {
		config.Collection = "chunks"
	}
	if !collectionNameRe.MatchString(config.Collection) {
		return nil, ragerr.Validationf("index", "invalid collection name %q", config.Collection)
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("enabling pgvector extension: %w", err)
	}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS collection_registry (
			name TEXT PRIMARY KEY,
			dimension INTEGER NOT NULL
		)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating collection registry: %w", err)
	}

	return &Index{config: config, pool: pool}, nil
}

func (x *Index) Add(ctx context.Context, chunks []models.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return ragerr.Validationf("index.add", "%d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	dim := len(embeddings[0])
	for i, vec := range embeddings {
		if len(vec) != dim {
			return ragerr.Validationf("index.add", "embedding %d has dimension %d, batch uses %d", i, len(vec), dim)
		}
	}
	if dim == 0 {
		return ragerr.Validationf("index.add", "embeddings are empty vectors")
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.ensureCollection(ctx, dim); err != nil {
		return err
	}

	base, err := x.count(ctx)
	if err != nil {
		return err
	}

	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return ragerr.Wrap(ragerr.KindRetrieval, "index.add", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(
		`INSERT INTO %s (chunk_id, content, embedding, metadata) VALUES ($1, $2, $3, $4)`,
		x.config.Collection)
	for i, chunk := range chunks {
		meta, err := encodeMetadata(chunk.Metadata)
		if err != nil {
			return ragerr.Wrap(ragerr.KindRetrieval, "index.add", err)
		}
		id := fmt.Sprintf("chunk_%d", base+i)
		if _, err := tx.Exec(ctx, stmt, id, chunk.Text, pgvec.NewVector(embeddings[i]), meta); err != nil {
			return ragerr.Wrap(ragerr.KindRetrieval, "index.add", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ragerr.Wrap(ragerr.KindRetrieval, "index.add", err)
	}
	return nil
}

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

	sql := fmt.Sprintf(`
		SELECT chunk_id, content, metadata, embedding <=> $1 AS distance
		FROM %s`, x.config.Collection)
	args := []any{pgvec.NewVector(query)}
	if len(filter) > 0 {
		meta, err := json.Marshal(filter)
		if err != nil {
			return nil, ragerr.Wrap(ragerr.KindRetrieval, "index.search", err)
		}
		sql += ` WHERE metadata @> $2::jsonb`
		args = append(args, string(meta))
	}
	sql += fmt.Sprintf(` ORDER BY distance ASC, ord ASC LIMIT %d`, topK)

	rows, err := x.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindRetrieval, "index.search", err)
	}
	defer rows.Close()

	var results []models.RetrievalResult
	for rows.Next() {
		var (
			id       string
			content  string
			rawMeta  []byte
			distance float64
		)
		if err := rows.Scan(&id, &content, &rawMeta, &distance); err != nil {
			return nil, ragerr.Wrap(ragerr.KindRetrieval, "index.search", err)
		}
		metadata := map[string]string{}
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &metadata); err != nil {
				return nil, ragerr.Wrap(ragerr.KindRetrieval, "index.search", err)
			}
		}
		results = append(results, models.RetrievalResult{
			ID:       id,
			Text:     content,
			Metadata: metadata,
			Distance: float32(distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, ragerr.Wrap(ragerr.KindRetrieval, "index.search", err)
	}
	return results, nil
}

func (x *Index) Size(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	dim, err := x.dimension(ctx)
	if err != nil {
		return 0, err
	}
	if dim == 0 {
		return 0, nil
	}
	return x.count(ctx)
}

// Clear drops the collection table and its registry row in one
// transaction. The recreated collection is unpinned, so the next Add
// may establish a new dimension, same as a fresh collection.
func (x *Index) Clear(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	dim, err := x.dimension(ctx)
	if err != nil {
		return err
	}
	if dim == 0 {
		return nil
	}

	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return ragerr.Wrap(ragerr.KindRetrieval, "index.clear", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, x.config.Collection)); err != nil {
		return ragerr.Wrap(ragerr.KindRetrieval, "index.clear", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM collection_registry WHERE name = $1`, x.config.Collection); err != nil {
		return ragerr.Wrap(ragerr.KindRetrieval, "index.clear", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return ragerr.Wrap(ragerr.KindRetrieval, "index.clear", err)
	}
	return nil
}

func (x *Index) Close() error {
	x.pool.Close()
	return nil
}

func (x *Index) createTableSQL(dim int) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			ord BIGSERIAL PRIMARY KEY,
			chunk_id TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB
		)`, x.config.Collection, dim)
}

// ensureCollection pins the collection's dimension on first use and
// rejects embeddings from a differently-sized encoder afterwards.
func (x *Index) ensureCollection(ctx context.Context, dim int) error {
	registered, err := x.dimension(ctx)
	if err != nil {
		return err
	}
	if registered != 0 && registered != dim {
		return ragerr.Validationf("index.add", "embeddings have dimension %d, collection uses %d", dim, registered)
	}
	if registered == 0 {
		if _, err := x.pool.Exec(ctx,
			`INSERT INTO collection_registry (name, dimension) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
			x.config.Collection, dim); err != nil {
			return ragerr.Wrap(ragerr.KindRetrieval, "index.add", err)
		}
	}
	if _, err := x.pool.Exec(ctx, x.createTableSQL(dim)); err != nil {
		return ragerr.Wrap(ragerr.KindRetrieval, "index.add", err)
	}
	return nil
}

func (x *Index) count(ctx context.Context) (int, error) {
	var n int
	err := x.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, x.config.Collection)).Scan(&n)
	if err != nil {
		return 0, ragerr.Wrap(ragerr.KindRetrieval, "index.size", err)
	}
	return n, nil
}

func (x *Index) dimension(ctx context.Context) (int, error) {
	var dim int
	err := x.pool.QueryRow(ctx,
		`SELECT dimension FROM collection_registry WHERE name = $1`, x.config.Collection).Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, ragerr.Wrap(ragerr.KindRetrieval, "index", err)
	}
	return dim, nil
}

func encodeMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	return json.Marshal(metadata)
}
