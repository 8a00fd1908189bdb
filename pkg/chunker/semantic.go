package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/inkpotlabs/ragcore/internal/models"
	"github.com/inkpotlabs/ragcore/internal/ragerr"
	"github.com/inkpotlabs/ragcore/internal/types"
	"github.com/inkpotlabs/ragcore/internal/vecmath"
)

type SemanticConfig struct {
	ChunkSize           int     // soft character cap per chunk, default 1000
	SimilarityThreshold float64 // in [0, 1], default 0.5
}

// Semantic groups consecutive sentences into chunks while each sentence
// stays similar enough to the one immediately before it. The encoder is
// injected, so the same algorithm serves both a general-purpose and a
// domain-specialized embedding model.
type Semantic struct {
	encoder types.Encoder
	config  SemanticConfig
}

func NewSemantic(encoder types.Encoder, config SemanticConfig) (*Semantic, error) {
	if encoder == nil {
		return nil, ragerr.Validationf("chunker", "semantic chunking requires an encoder")
	}
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkSize < 1 {
		return nil, ragerr.Validationf("chunker", "chunk_size must be positive, got %d", config.ChunkSize)
	}
	if config.SimilarityThreshold == 0 {
		config.SimilarityThreshold = 0.5
	}
	if config.SimilarityThreshold < 0 || config.SimilarityThreshold > 1 {
		return nil, ragerr.Validationf("chunker", "similarity_threshold %v must be in [0, 1]", config.SimilarityThreshold)
	}
	return &Semantic{encoder: encoder, config: config}, nil
}

func (s *Semantic) Chunk(ctx context.Context, text string, metadata map[string]string) ([]models.Chunk, error) {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	embeddings, err := s.encoder.EncodeBatch(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("encoding sentences: %w", err)
	}

	prefix := contextPrefix(metadata)

	var chunks []models.Chunk
	var current []string
	currentLen := 0
	index := 0

	emit := func() {
		chunkText := strings.TrimSpace(strings.Join(current, " "))
		if chunkText == "" {
			return
		}
		chunks = append(chunks, models.Chunk{
			Text:          prefix + chunkText,
			ChunkIndex:    index,
			SentenceCount: len(current),
			Metadata:      chunkMetadata(metadata, index),
		})
		index++
	}

	for i, sentence := range sentences {
		// The first sentence of a chunk has no predecessor to compare
		// against; it always starts the chunk.
		if len(current) == 0 {
			current = append(current, sentence)
			currentLen = len(sentence)
			continue
		}

		similarity := vecmath.CosineSimilarity(embeddings[i], embeddings[i-1])
		if float64(similarity) < s.config.SimilarityThreshold || currentLen+len(sentence) > s.config.ChunkSize {
			emit()
			current = []string{sentence}
			currentLen = len(sentence)
			continue
		}

		current = append(current, sentence)
		currentLen += 1 + len(sentence)
	}

	if len(current) > 0 {
		emit()
	}

	return chunks, nil
}
