package types

import (
	"context"

	"github.com/inkpotlabs/ragcore/internal/models"
)

// Encoder turns text into fixed-dimension embedding vectors. The
// embedding dimension is a property of the loaded model; mixing vectors
// from different encoders in one collection is an error.
type Encoder interface {
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	EncodeOne(ctx context.Context, text string) ([]float32, error)
	Dim(ctx context.Context) (int, error)
}

// ChunkingStrategy splits text into ordered retrievable chunks.
// Metadata, when present, is attached to every chunk and its title and
// section header are prefixed onto the chunk text.
type ChunkingStrategy interface {
	Chunk(ctx context.Context, text string, metadata map[string]string) ([]models.Chunk, error)
}

// VectorIndex is a named, persisted collection of embedded chunks
// searchable under cosine distance.
type VectorIndex interface {
	Add(ctx context.Context, chunks []models.Chunk, embeddings [][]float32) error
	Search(ctx context.Context, query []float32, topK int, filter map[string]string) ([]models.RetrievalResult, error)
	Size(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

// Generator is the external generation capability: one prompt string in,
// one completion string out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
