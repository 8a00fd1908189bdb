// Package pipeline orchestrates index building: load documents, chunk
// each section with the configured strategy, embed in batches and hand
// the results to the vector index.
package pipeline

import (
	"context"

	"github.com/inkpotlabs/ragcore/internal/models"
	"github.com/inkpotlabs/ragcore/internal/ragerr"
	"github.com/inkpotlabs/ragcore/internal/types"
)

type Config struct {
	BatchSize  int                     // chunks embedded and stored per batch, default 100
	OnProgress func(stored, total int) // optional, called after each stored batch
}

type Stats struct {
	Documents int
	Chunks    int
	Stored    int
}

type Pipeline struct {
	strategy types.ChunkingStrategy
	encoder  types.Encoder
	index    types.VectorIndex
	config   Config
}

func New(strategy types.ChunkingStrategy, encoder types.Encoder, index types.VectorIndex, config Config) (*Pipeline, error) {
	if strategy == nil || encoder == nil || index == nil {
		return nil, ragerr.Validationf("pipeline", "strategy, encoder and index are all required")
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.BatchSize < 1 {
		return nil, ragerr.Validationf("pipeline", "batch_size must be positive, got %d", config.BatchSize)
	}
	return &Pipeline{strategy: strategy, encoder: encoder, index: index, config: config}, nil
}

// IngestDocuments chunks every section of every document and stores the
// embedded chunks.
func (p *Pipeline) IngestDocuments(ctx context.Context, documents []models.Document) (*Stats, error) {
	chunks, err := p.ChunkDocuments(ctx, documents)
	if err != nil {
		return nil, err
	}

	stats, err := p.IndexChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	stats.Documents = len(documents)
	return stats, nil
}

// ChunkDocuments runs the chunking strategy over every section of every
// document without touching the encoder or the index. Section headers
// and document identity travel in chunk metadata.
func (p *Pipeline) ChunkDocuments(ctx context.Context, documents []models.Document) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, doc := range documents {
		sections := doc.Sections
		if len(sections) == 0 {
			sections = []models.Section{{Content: doc.Content}}
		}
		for _, section := range sections {
			metadata := map[string]string{
				models.MetaTitle:      doc.Title,
				models.MetaSourcePath: doc.Path,
			}
			if section.Header != "" {
				metadata[models.MetaSectionHeader] = section.Header
			}
			sectionChunks, err := p.strategy.Chunk(ctx, section.Content, metadata)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, sectionChunks...)
		}
	}
	return chunks, nil
}

// IndexChunks embeds and stores pre-chunked content in batches. Chunks
// that already carry an embedding are stored as-is, so chunk files
// produced by an earlier run can skip the encoder entirely.
func (p *Pipeline) IndexChunks(ctx context.Context, chunks []models.Chunk) (*Stats, error) {
	stats := &Stats{Chunks: len(chunks)}

	for start := 0; start < len(chunks); start += p.config.BatchSize {
		end := start + p.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		embeddings, err := p.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		if err := p.index.Add(ctx, batch, embeddings); err != nil {
			return nil, err
		}

		stats.Stored += len(batch)
		if p.config.OnProgress != nil {
			p.config.OnProgress(stats.Stored, len(chunks))
		}
	}
	return stats, nil
}

// embedBatch encodes only the chunks that lack an embedding, preserving
// batch order.
func (p *Pipeline) embedBatch(ctx context.Context, batch []models.Chunk) ([][]float32, error) {
	embeddings := make([][]float32, len(batch))

	var texts []string
	var missing []int
	for i, chunk := range batch {
		if len(chunk.Embedding) > 0 {
			embeddings[i] = chunk.Embedding
			continue
		}
		texts = append(texts, chunk.Text)
		missing = append(missing, i)
	}

	if len(texts) > 0 {
		encoded, err := p.encoder.EncodeBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		for j, i := range missing {
			embeddings[i] = encoded[j]
		}
	}
	return embeddings, nil
}
