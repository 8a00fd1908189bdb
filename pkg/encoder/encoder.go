// Package encoder wraps an Ollama-compatible embedding model behind the
// Encoder contract: batched encoding into fixed-dimension float32
// vectors, with the model loaded lazily on first use.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/inkpotlabs/ragcore/internal/ragerr"
)

type Config struct {
	Model       string  // embedding model name, default nomic-embed-text:latest
	BaseURL     string  // Ollama server URL
	BatchSize   int     // texts per embedding request, default 32
	RateLimit   float64 // embedding requests per second, default 4
	MaxParallel int     // concurrent in-flight batches, default 4
}

// embeddingClient is the slice of the Ollama client the encoder needs.
type embeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Encoder lazily initializes its model client on first use and caches
// the embedding dimension after the first successful call, so Dim never
// re-encodes.
type Encoder struct {
	config  Config
	limiter *rate.Limiter

	mu      sync.Mutex
	client  embeddingClient
	loadErr error
	dim     int
}

func New(config Config) *Encoder {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.BatchSize < 1 {
		config.BatchSize = 32
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 4
	}
	if config.MaxParallel < 1 {
		config.MaxParallel = 4
	}
	return &Encoder{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// load initializes the underlying model client exactly once. A load
// failure is fatal: it is cached and returned on every subsequent call
// rather than retried per request.
func (e *Encoder) load() (embeddingClient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil || e.loadErr != nil {
		return e.client, e.loadErr
	}
	llm, err := ollama.New(ollama.WithModel(e.config.Model), ollama.WithServerURL(e.config.BaseURL))
	if err != nil {
		e.loadErr = ragerr.Wrap(ragerr.KindModelLoad, "encoder", err)
		return nil, e.loadErr
	}
	e.client = llm
	return e.client, nil
}

// EncodeBatch embeds texts and returns one vector per input, in input
// order. Batches are dispatched concurrently; each goroutine writes its
// own disjoint slice of the output.
func (e *Encoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	client, err := e.load()
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.MaxParallel)
	for start := 0; start < len(texts); start += e.config.BatchSize {
		start := start
		end := min(start+e.config.BatchSize, len(texts))
		g.Go(func() error {
			if err := e.limiter.Wait(gctx); err != nil {
				return err
			}
			vectors, err := client.CreateEmbedding(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding batch [%d:%d): %w", start, end, err)
			}
			if len(vectors) != end-start {
				return fmt.Errorf("embedding batch [%d:%d): got %d vectors for %d texts", start, end, len(vectors), end-start)
			}
			copy(out[start:end], vectors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.rememberDim(len(out[0]))
	return out, nil
}

func (e *Encoder) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dim reports the embedding dimension of the loaded model. Before any
// encode has run, it probes the model once and caches the result.
func (e *Encoder) Dim(ctx context.Context) (int, error) {
	e.mu.Lock()
	cached := e.dim
	e.mu.Unlock()
	if cached > 0 {
		return cached, nil
	}

	vector, err := e.EncodeOne(ctx, "dimension probe")
	if err != nil {
		// A load failure arrives already classified as fatal; anything
		// else is a transient encode failure the caller may retry.
		var classified *ragerr.Error
		if errors.As(err, &classified) {
			return 0, err
		}
		return 0, ragerr.Wrap(ragerr.KindRetrieval, "encoder.dim", err)
	}
	return len(vector), nil
}

func (e *Encoder) rememberDim(dim int) {
	e.mu.Lock()
	if e.dim == 0 {
		e.dim = dim
	}
	e.mu.Unlock()
}
