package encoder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkpotlabs/ragcore/internal/ragerr"
)

// fakeClient hands back one vector per text, encoding the text's
// position in the fixture so ordering mistakes are visible.
type fakeClient struct {
	mu         sync.Mutex
	positions  map[string]float32
	dim        int
	err        error
	batchSizes []int
	calls      int
}

func (f *fakeClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.batchSizes = append(f.batchSizes, len(texts))
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, f.dim)
		vec[0] = f.positions[text]
		out[i] = vec
	}
	return out, nil
}

func newTestEncoder(client embeddingClient, batchSize int) *Encoder {
	e := New(Config{BatchSize: batchSize, RateLimit: 10000})
	e.client = client
	return e
}

func TestEncodeBatchPreservesInputOrder(t *testing.T) {
	texts := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf"}
	fake := &fakeClient{dim: 4, positions: map[string]float32{}}
	for i, text := range texts {
		fake.positions[text] = float32(i + 1)
	}

	e := newTestEncoder(fake, 3)
	vectors, err := e.EncodeBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	for i, vec := range vectors {
		require.Len(t, vec, 4)
		assert.Equal(t, float32(i+1), vec[0], "vector %d out of order", i)
	}
}

func TestEncodeBatchPartitionsIntoBatches(t *testing.T) {
	texts := []string{"one one", "two two", "three three", "four four", "five five", "six six", "seven"}
	fake := &fakeClient{dim: 2, positions: map[string]float32{}}

	e := newTestEncoder(fake, 3)
	_, err := e.EncodeBatch(context.Background(), texts)
	require.NoError(t, err)

	total := 0
	for _, size := range fake.batchSizes {
		assert.LessOrEqual(t, size, 3)
		total += size
	}
	assert.Equal(t, len(texts), total)
	assert.Equal(t, 3, fake.calls)
}

func TestEncodeBatchEmptyInput(t *testing.T) {
	e := newTestEncoder(&fakeClient{dim: 2, positions: map[string]float32{}}, 3)
	vectors, err := e.EncodeBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEncodeOne(t *testing.T) {
	fake := &fakeClient{dim: 3, positions: map[string]float32{"hello": 7}}
	e := newTestEncoder(fake, 3)

	vec, err := e.EncodeOne(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{7, 0, 0}, vec)
}

func TestDimProbesOnceAndCaches(t *testing.T) {
	fake := &fakeClient{dim: 5, positions: map[string]float32{}}
	e := newTestEncoder(fake, 3)

	dim, err := e.Dim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, dim)
	assert.Equal(t, 1, fake.calls)

	dim, err = e.Dim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, dim)
	assert.Equal(t, 1, fake.calls, "cached dimension must not re-encode")
}

func TestDimCachedFromEncodeBatch(t *testing.T) {
	fake := &fakeClient{dim: 6, positions: map[string]float32{}}
	e := newTestEncoder(fake, 3)

	_, err := e.EncodeBatch(context.Background(), []string{"warm up text"})
	require.NoError(t, err)

	dim, err := e.Dim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, dim)
	assert.Equal(t, 1, fake.calls)
}

func TestDimProbeFailureIsRetryable(t *testing.T) {
	fake := &fakeClient{dim: 2, positions: map[string]float32{}, err: errors.New("connection refused")}
	e := newTestEncoder(fake, 3)

	_, err := e.Dim(context.Background())
	require.Error(t, err)
	assert.True(t, ragerr.IsKind(err, ragerr.KindRetrieval))
	assert.False(t, ragerr.IsKind(err, ragerr.KindModelLoad))

	// The probe succeeds once the embedding server is reachable again.
	fake.err = nil
	dim, err := e.Dim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, dim)
}

func TestDimLoadFailureIsModelLoad(t *testing.T) {
	e := New(Config{})
	e.loadErr = ragerr.Wrap(ragerr.KindModelLoad, "encoder", errors.New("model not found"))

	_, err := e.Dim(context.Background())
	require.Error(t, err)
	assert.True(t, ragerr.IsKind(err, ragerr.KindModelLoad))
}

func TestLoadFailureIsFatalAndCached(t *testing.T) {
	e := New(Config{})
	e.loadErr = ragerr.Wrap(ragerr.KindModelLoad, "encoder", errors.New("model not found"))

	_, err := e.EncodeBatch(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.True(t, ragerr.IsKind(err, ragerr.KindModelLoad))

	_, second := e.EncodeBatch(context.Background(), []string{"text"})
	assert.Equal(t, err, second, "load failure must be cached, not retried")
}
