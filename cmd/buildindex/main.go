package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/inkpotlabs/ragcore/internal/models"
	"github.com/inkpotlabs/ragcore/internal/types"
	"github.com/inkpotlabs/ragcore/pkg/chunker"
	"github.com/inkpotlabs/ragcore/pkg/chunkio"
	cfgPkg "github.com/inkpotlabs/ragcore/pkg/config"
	"github.com/inkpotlabs/ragcore/pkg/encoder"
	"github.com/inkpotlabs/ragcore/pkg/index/pgvector"
	"github.com/inkpotlabs/ragcore/pkg/index/sqlite"
	"github.com/inkpotlabs/ragcore/pkg/loader"
	"github.com/inkpotlabs/ragcore/pkg/pipeline"
)

type buildOptions struct {
	docs        string // comma-separated glob patterns
	chunksIn    string // pre-chunked JSON to index instead of documents
	chunksOut   string // write chunks as JSON and stop before embedding
	clearBefore bool
}

func main() {
	config, opts, err := parseFlags()
	if err != nil {
		log.Fatal(err)
	}

	if err := run(config, opts); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() (*cfgPkg.Config, *buildOptions, error) {
	var (
		configPath string
		ollamaURL  string
		embedModel string
		backend    string
		indexDir   string
		dbURL      string
		collection string
		strategy   string
		chunkSize  int
		overlap    int
		threshold  float64
		opts       buildOptions
	)

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&opts.docs, "docs", "", "Comma-separated glob patterns of documents to index")
	flag.StringVar(&opts.chunksIn, "chunks", "", "Chunk JSON file to index instead of documents")
	flag.StringVar(&opts.chunksOut, "write-chunks", "", "Write chunks to a JSON file and skip indexing")
	flag.BoolVar(&opts.clearBefore, "clear", false, "Clear the collection before indexing")
	flag.StringVar(&ollamaURL, "ollama-url", "", "Ollama server URL")
	flag.StringVar(&embedModel, "embed-model", "", "Embedding model name")
	flag.StringVar(&backend, "backend", "", "Index backend (sqlite or pgvector)")
	flag.StringVar(&indexDir, "index-dir", "", "Directory holding sqlite collections")
	flag.StringVar(&dbURL, "db-url", "", "PostgreSQL connection string")
	flag.StringVar(&collection, "collection", "", "Collection name")
	flag.StringVar(&strategy, "strategy", "", "Chunking strategy (fixed, semantic or semantic_domain)")
	flag.IntVar(&chunkSize, "chunk-size", 0, "Chunk size in characters")
	flag.IntVar(&overlap, "overlap", -1, "Overlap in characters (fixed strategy)")
	flag.Float64Var(&threshold, "threshold", 0, "Similarity threshold (semantic strategies)")
	flag.Parse()

	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	// Command line flags win over file and environment values
	if ollamaURL != "" {
		config.Encoder.BaseURL = ollamaURL
		config.Generator.BaseURL = ollamaURL
	}
	if embedModel != "" {
		config.Encoder.Model = embedModel
	}
	if backend != "" {
		config.Index.Backend = backend
	}
	if indexDir != "" {
		config.Index.Dir = indexDir
	}
	if dbURL != "" {
		config.Index.DatabaseURL = dbURL
	}
	if collection != "" {
		config.Index.Collection = collection
	}
	if strategy != "" {
		config.Chunking.Strategy = strategy
	}
	if chunkSize != 0 {
		config.Chunking.ChunkSize = chunkSize
	}
	if overlap >= 0 {
		config.Chunking.Overlap = &overlap
	}
	if threshold != 0 {
		config.Chunking.SimilarityThreshold = threshold
	}

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return nil, nil, fmt.Errorf("invalid configuration")
	}

	if opts.docs == "" && opts.chunksIn == "" {
		return nil, nil, fmt.Errorf("either -docs or -chunks is required")
	}
	if opts.docs != "" && opts.chunksIn != "" {
		return nil, nil, fmt.Errorf("-docs and -chunks are mutually exclusive")
	}
	if opts.chunksOut != "" && opts.chunksIn != "" {
		return nil, nil, fmt.Errorf("-write-chunks only applies when chunking documents")
	}
	return config, &opts, nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func openIndex(ctx context.Context, config *cfgPkg.Config) (types.VectorIndex, error) {
	switch config.Index.Backend {
	case cfgPkg.BackendPgvector:
		return pgvector.Open(ctx, pgvector.Config{
			ConnString: config.Index.DatabaseURL,
			Collection: config.Index.Collection,
		})
	default:
		return sqlite.Open(sqlite.Config{
			Dir:        config.Index.Dir,
			Collection: config.Index.Collection,
		})
	}
}

func newStrategy(config *cfgPkg.Config, enc types.Encoder) (types.ChunkingStrategy, error) {
	switch config.Chunking.Strategy {
	case cfgPkg.StrategyFixed:
		return chunker.NewFixedSize(chunker.FixedSizeConfig{
			ChunkSize: config.Chunking.ChunkSize,
			Overlap:   *config.Chunking.Overlap,
		})
	default:
		return chunker.NewSemantic(enc, chunker.SemanticConfig{
			ChunkSize:           config.Chunking.ChunkSize,
			SimilarityThreshold: config.Chunking.SimilarityThreshold,
		})
	}
}

// embedModelFor keeps index-time embeddings consistent with query time:
// the domain strategy uses the domain model.
func embedModelFor(config *cfgPkg.Config) string {
	if config.Chunking.Strategy == cfgPkg.StrategySemanticDomain {
		return config.Encoder.DomainModel
	}
	return config.Encoder.Model
}

func run(config *cfgPkg.Config, opts *buildOptions) error {
	ctx := context.Background()

	enc := encoder.New(encoder.Config{
		Model:       embedModelFor(config),
		BaseURL:     config.Encoder.BaseURL,
		BatchSize:   config.Encoder.BatchSize,
		RateLimit:   config.Encoder.RateLimit,
		MaxParallel: config.Encoder.MaxParallel,
	})

	strategy, err := newStrategy(config, enc)
	if err != nil {
		return err
	}

	idx, err := openIndex(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to open index: %v", err)
	}
	defer idx.Close()

	var bar *progressbar.ProgressBar
	p, err := pipeline.New(strategy, enc, idx, pipeline.Config{
		BatchSize: config.Index.BatchSize,
		OnProgress: func(stored, total int) {
			if bar == nil {
				bar = getProgressBar(total, " Embedding and storing chunks...")
			}
			bar.Set(stored)
		},
	})
	if err != nil {
		return err
	}

	// Pre-chunked input skips loading and chunking entirely
	if opts.chunksIn != "" {
		chunks, err := chunkio.ReadFile(opts.chunksIn)
		if err != nil {
			return err
		}
		color.Blue("Indexing %d chunks from %s", len(chunks), opts.chunksIn)
		return index(ctx, p, idx, chunks, opts.clearBefore)
	}

	patterns := strings.Split(opts.docs, ",")
	for i := range patterns {
		patterns[i] = strings.TrimSpace(patterns[i])
	}

	docs, err := loader.LoadGlob(patterns)
	if err != nil {
		return err
	}
	color.Green("✓ Loaded %d documents", len(docs))

	chunks, err := p.ChunkDocuments(ctx, docs)
	if err != nil {
		return err
	}
	color.Green("✓ Chunked into %d chunks (%s strategy)", len(chunks), config.Chunking.Strategy)

	if opts.chunksOut != "" {
		if err := chunkio.WriteFile(opts.chunksOut, chunks); err != nil {
			return err
		}
		color.Green("✓ Wrote chunks to %s", opts.chunksOut)
		return nil
	}

	return index(ctx, p, idx, chunks, opts.clearBefore)
}

func index(ctx context.Context, p *pipeline.Pipeline, idx types.VectorIndex, chunks []models.Chunk, clearBefore bool) error {
	if clearBefore {
		if err := idx.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear collection: %v", err)
		}
		color.Yellow("Cleared existing collection")
	}

	stats, err := p.IndexChunks(ctx, chunks)
	if err != nil {
		return err
	}

	size, err := idx.Size(ctx)
	if err != nil {
		return err
	}
	color.Green("\n✓ Stored %d chunks, collection now holds %d", stats.Stored, size)
	return nil
}
