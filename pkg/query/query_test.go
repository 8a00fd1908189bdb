package query_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkpotlabs/ragcore/internal/models"
	"github.com/inkpotlabs/ragcore/internal/ragerr"
	"github.com/inkpotlabs/ragcore/pkg/query"
)

type stubEncoder struct {
	vector []float32
	err    error
}

func (s *stubEncoder) EncodeBatch(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = s.vector
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

func (s *stubEncoder) Dim(context.Context) (int, error) { return len(s.vector), nil }

type stubIndex struct {
	results   []models.RetrievalResult
	err       error
	lastTopK  int
	lastQuery []float32
}

func (s *stubIndex) Add(context.Context, []models.Chunk, [][]float32) error { return nil }

func (s *stubIndex) Search(_ context.Context, q []float32, topK int, _ map[string]string) ([]models.RetrievalResult, error) {
	s.lastQuery = q
	s.lastTopK = topK
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) > topK {
		return s.results[:topK], nil
	}
	return s.results, nil
}

func (s *stubIndex) Size(context.Context) (int, error) { return len(s.results), nil }
func (s *stubIndex) Clear(context.Context) error       { return nil }
func (s *stubIndex) Close() error                      { return nil }

type stubGenerator struct {
	answer     string
	err        error
	lastPrompt string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func result(text, title, section string, distance float32) models.RetrievalResult {
	return models.RetrievalResult{
		Text:     text,
		Distance: distance,
		Metadata: map[string]string{
			models.MetaTitle:         title,
			models.MetaSectionHeader: section,
		},
	}
}

func newEngine(t *testing.T, idx *stubIndex, gen *stubGenerator) *query.Engine {
	t.Helper()
	e, err := query.NewEngine(&stubEncoder{vector: []float32{1, 0}}, idx, gen, query.Config{})
	require.NoError(t, err)
	return e
}

func TestAnswerHappyPath(t *testing.T) {
	idx := &stubIndex{results: []models.RetrievalResult{
		result("Q-learning is a value-based method.", "Paper X", "Intro", 0.1),
		result("It learns an action-value function.", "Paper X", "Methods", 0.3),
	}}
	gen := &stubGenerator{answer: "Q-learning learns action values [Source 1]."}

	answer, err := newEngine(t, idx, gen).Answer(context.Background(), "What is Q-learning?", 0)
	require.NoError(t, err)

	assert.Equal(t, "Q-learning learns action values [Source 1].", answer.Answer)
	assert.Len(t, answer.Retrieved, 2)
	require.Len(t, answer.Sources, 2)
	assert.InDelta(t, 0.9, answer.Sources[0].Similarity, 1e-6)

	// The default top_k reaches the index.
	assert.Equal(t, 5, idx.lastTopK)
	assert.Equal(t, []float32{1, 0}, idx.lastQuery)
}

func TestAnswerPromptContainsNumberedContext(t *testing.T) {
	idx := &stubIndex{results: []models.RetrievalResult{
		result("first chunk text", "Paper X", "Intro", 0.1),
		result("second chunk text", "Paper Y", "Results", 0.2),
	}}
	gen := &stubGenerator{answer: "ok"}

	_, err := newEngine(t, idx, gen).Answer(context.Background(), "what?", 0)
	require.NoError(t, err)

	assert.Contains(t, gen.lastPrompt, "[Source 1]\nTitle: Paper X\nSection: Intro\nContent: first chunk text")
	assert.Contains(t, gen.lastPrompt, "[Source 2]\nTitle: Paper Y\nSection: Results\nContent: second chunk text")
	assert.Contains(t, gen.lastPrompt, "\n---\n\n")
	assert.Contains(t, gen.lastPrompt, "Question: what?")
}

func TestAnswerNoResultsIsTerminalNotError(t *testing.T) {
	idx := &stubIndex{}
	gen := &stubGenerator{answer: "should never be called"}

	answer, err := newEngine(t, idx, gen).Answer(context.Background(), "anything?", 0)
	require.NoError(t, err)

	assert.Contains(t, answer.Answer, "couldn't find any relevant information")
	assert.Empty(t, answer.Sources)
	assert.Empty(t, answer.Retrieved)
	assert.Empty(t, gen.lastPrompt, "generation must be skipped without context")
}

func TestAnswerSourceDeduplication(t *testing.T) {
	// Ranks 1 and 3 share (title, section); rank 1's similarity wins.
	idx := &stubIndex{results: []models.RetrievalResult{
		result("rank one", "Paper X", "Intro", 0.1),
		result("rank two", "Paper Y", "Methods", 0.2),
		result("rank three", "Paper X", "Intro", 0.4),
	}}
	gen := &stubGenerator{answer: "ok"}

	answer, err := newEngine(t, idx, gen).Answer(context.Background(), "what?", 0)
	require.NoError(t, err)

	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "Paper X", answer.Sources[0].Title)
	assert.Equal(t, "Intro", answer.Sources[0].Section)
	assert.InDelta(t, 0.9, answer.Sources[0].Similarity, 1e-6)
	assert.Equal(t, "Paper Y", answer.Sources[1].Title)
}

func TestAnswerMissingMetadataUsesPlaceholders(t *testing.T) {
	idx := &stubIndex{results: []models.RetrievalResult{
		{Text: "bare chunk", Distance: 0.2},
	}}
	gen := &stubGenerator{answer: "ok"}

	answer, err := newEngine(t, idx, gen).Answer(context.Background(), "what?", 0)
	require.NoError(t, err)

	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "Unknown Document", answer.Sources[0].Title)
	assert.Equal(t, "Unknown Section", answer.Sources[0].Section)
	assert.True(t, strings.Contains(gen.lastPrompt, "Title: Unknown Document"))
}

func TestAnswerRetrievalErrorKind(t *testing.T) {
	idx := &stubIndex{err: errors.New("index unreachable")}
	gen := &stubGenerator{answer: "unused"}

	_, err := newEngine(t, idx, gen).Answer(context.Background(), "what?", 0)
	require.Error(t, err)
	assert.True(t, ragerr.IsKind(err, ragerr.KindRetrieval))
	assert.False(t, ragerr.IsKind(err, ragerr.KindGeneration))
}

func TestAnswerEncoderErrorIsRetrieval(t *testing.T) {
	enc := &stubEncoder{err: errors.New("embedding server down")}
	e, err := query.NewEngine(enc, &stubIndex{}, &stubGenerator{}, query.Config{})
	require.NoError(t, err)

	_, err = e.Answer(context.Background(), "what?", 0)
	require.Error(t, err)
	assert.True(t, ragerr.IsKind(err, ragerr.KindRetrieval))
}

func TestAnswerGenerationErrorKind(t *testing.T) {
	idx := &stubIndex{results: []models.RetrievalResult{
		result("some context", "Paper X", "Intro", 0.1),
	}}
	gen := &stubGenerator{err: errors.New("model overloaded")}

	_, err := newEngine(t, idx, gen).Answer(context.Background(), "what?", 0)
	require.Error(t, err)
	assert.True(t, ragerr.IsKind(err, ragerr.KindGeneration))
	assert.False(t, ragerr.IsKind(err, ragerr.KindRetrieval))
}

func TestAnswerValidationPassesThroughUnmasked(t *testing.T) {
	idx := &stubIndex{err: ragerr.Validationf("index.search", "query has dimension 2, collection uses 3")}
	gen := &stubGenerator{}

	_, err := newEngine(t, idx, gen).Answer(context.Background(), "what?", 0)
	require.Error(t, err)
	assert.True(t, ragerr.IsKind(err, ragerr.KindValidation))
}

func TestAnswerTopKValidation(t *testing.T) {
	e := newEngine(t, &stubIndex{}, &stubGenerator{})

	_, err := e.Answer(context.Background(), "what?", -1)
	require.Error(t, err)
	assert.True(t, ragerr.IsKind(err, ragerr.KindValidation))
}

func TestAnswerCallerTopKOverride(t *testing.T) {
	idx := &stubIndex{results: []models.RetrievalResult{
		result("a", "T", "S", 0.1),
		result("b", "T", "S2", 0.2),
		result("c", "T", "S3", 0.3),
	}}
	e := newEngine(t, idx, &stubGenerator{answer: "ok"})

	answer, err := e.Answer(context.Background(), "what?", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.lastTopK)
	assert.Len(t, answer.Retrieved, 2)
}

func TestNewEngineValidation(t *testing.T) {
	_, err := query.NewEngine(nil, &stubIndex{}, &stubGenerator{}, query.Config{})
	assert.True(t, ragerr.IsKind(err, ragerr.KindValidation))

	_, err = query.NewEngine(&stubEncoder{vector: []float32{1}}, &stubIndex{}, &stubGenerator{}, query.Config{TopK: -2})
	assert.True(t, ragerr.IsKind(err, ragerr.KindValidation))
}
