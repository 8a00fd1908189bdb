package chunker_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkpotlabs/ragcore/internal/models"
	"github.com/inkpotlabs/ragcore/internal/ragerr"
	"github.com/inkpotlabs/ragcore/pkg/chunker"
)

// stubEncoder returns canned vectors keyed by input text, falling back
// to a shared default vector.
type stubEncoder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
}

func (s *stubEncoder) EncodeBatch(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := s.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = s.fallback
		}
	}
	return out, nil
}

func (s *stubEncoder) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEncoder) Dim(context.Context) (int, error) {
	if s.fallback != nil {
		return len(s.fallback), nil
	}
	for _, v := range s.vectors {
		return len(v), nil
	}
	return 0, errors.New("no vectors configured")
}

func TestSemanticUnrelatedSentencesSplit(t *testing.T) {
	sentences := []string{
		"The stock market rallied strongly today.",
		"Quantum physics describes subatomic particles.",
		"My grandmother bakes wonderful sourdough bread.",
		"The football season starts in September.",
	}
	enc := &stubEncoder{vectors: map[string][]float32{
		sentences[0]: {1, 0, 0, 0},
		sentences[1]: {0, 1, 0, 0},
		sentences[2]: {0, 0, 1, 0},
		sentences[3]: {0, 0, 0, 1},
	}}

	s, err := chunker.NewSemantic(enc, chunker.SemanticConfig{ChunkSize: 1000, SimilarityThreshold: 0.9})
	require.NoError(t, err)

	chunks, err := s.Chunk(context.Background(), strings.Join(sentences, " "), nil)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, 1, c.SentenceCount)
		assert.Equal(t, sentences[i], c.Text)
	}
}

func TestSemanticCoherentParagraphStaysTogether(t *testing.T) {
	text := "Gradient descent updates model weights iteratively. Each update follows the loss gradient downhill. Smaller learning rates make the walk more stable. Convergence arrives when updates stop changing the loss."
	enc := &stubEncoder{fallback: []float32{0.5, 0.5, 0.5}}

	s, err := chunker.NewSemantic(enc, chunker.SemanticConfig{ChunkSize: 1000, SimilarityThreshold: 0.1})
	require.NoError(t, err)

	chunks, err := s.Chunk(context.Background(), text, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 4, chunks[0].SentenceCount)
	assert.Equal(t, text, chunks[0].Text)
}

func TestSemanticSizeCapForcesBreak(t *testing.T) {
	text := "This first sentence carries a fair amount of text. This second sentence also carries a fair amount."
	enc := &stubEncoder{fallback: []float32{1, 1}}

	s, err := chunker.NewSemantic(enc, chunker.SemanticConfig{ChunkSize: 60, SimilarityThreshold: 0.1})
	require.NoError(t, err)

	chunks, err := s.Chunk(context.Background(), text, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].SentenceCount)
	assert.Equal(t, 1, chunks[1].SentenceCount)
}

func TestSemanticSingleSentence(t *testing.T) {
	enc := &stubEncoder{fallback: []float32{1, 0}}
	s, err := chunker.NewSemantic(enc, chunker.SemanticConfig{})
	require.NoError(t, err)

	chunks, err := s.Chunk(context.Background(), "Only one sentence lives here.", nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].SentenceCount)
}

func TestSemanticEmptyInput(t *testing.T) {
	enc := &stubEncoder{fallback: []float32{1, 0}}
	s, err := chunker.NewSemantic(enc, chunker.SemanticConfig{})
	require.NoError(t, err)

	chunks, err := s.Chunk(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSemanticEncoderFailurePropagates(t *testing.T) {
	enc := &stubEncoder{err: errors.New("embedding server unreachable")}
	s, err := chunker.NewSemantic(enc, chunker.SemanticConfig{})
	require.NoError(t, err)

	_, err = s.Chunk(context.Background(), "Some sentence long enough to embed.", nil)
	assert.ErrorContains(t, err, "embedding server unreachable")
}

func TestSemanticValidation(t *testing.T) {
	enc := &stubEncoder{fallback: []float32{1}}

	_, err := chunker.NewSemantic(nil, chunker.SemanticConfig{})
	assert.True(t, ragerr.IsKind(err, ragerr.KindValidation))

	_, err = chunker.NewSemantic(enc, chunker.SemanticConfig{SimilarityThreshold: 1.5})
	assert.True(t, ragerr.IsKind(err, ragerr.KindValidation))
}

func TestSemanticContextPrefix(t *testing.T) {
	enc := &stubEncoder{fallback: []float32{1, 0}}
	s, err := chunker.NewSemantic(enc, chunker.SemanticConfig{})
	require.NoError(t, err)

	metadata := map[string]string{models.MetaTitle: "Paper X"}
	chunks, err := s.Chunk(context.Background(), "A sentence that should be prefixed.", metadata)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "Title: Paper X\n\n"))
}
