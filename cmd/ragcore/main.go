package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/inkpotlabs/ragcore/internal/types"
	cfgPkg "github.com/inkpotlabs/ragcore/pkg/config"
	"github.com/inkpotlabs/ragcore/pkg/encoder"
	"github.com/inkpotlabs/ragcore/pkg/generate"
	"github.com/inkpotlabs/ragcore/pkg/index/pgvector"
	"github.com/inkpotlabs/ragcore/pkg/index/sqlite"
	"github.com/inkpotlabs/ragcore/pkg/query"
)

func main() {
	config, err := parseFlags()
	if err != nil {
		log.Fatal(err)
	}

	if err := run(config); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() (*cfgPkg.Config, error) {
	var (
		configPath string
		ollamaURL  string
		embedModel string
		genModel   string
		backend    string
		indexDir   string
		dbURL      string
		collection string
		topK       int
	)

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&ollamaURL, "ollama-url", "", "Ollama server URL")
	flag.StringVar(&embedModel, "embed-model", "", "Embedding model name")
	flag.StringVar(&genModel, "model", "", "Generation model name")
	flag.StringVar(&backend, "backend", "", "Index backend (sqlite or pgvector)")
	flag.StringVar(&indexDir, "index-dir", "", "Directory holding sqlite collections")
	flag.StringVar(&dbURL, "db-url", "", "PostgreSQL connection string")
	flag.StringVar(&collection, "collection", "", "Collection name")
	flag.IntVar(&topK, "top-k", 0, "Number of chunks to retrieve per question")
	flag.Parse()

	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	// Command line flags win over file and environment values
	if ollamaURL != "" {
		config.Encoder.BaseURL = ollamaURL
		config.Generator.BaseURL = ollamaURL
	}
	if embedModel != "" {
		config.Encoder.Model = embedModel
	}
	if genModel != "" {
		config.Generator.Model = genModel
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
	if topK != 0 {
		config.Search.TopK = topK
	}

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return nil, fmt.Errorf("invalid configuration")
	}
	return config, nil
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
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

// embedModelFor keeps query-time embeddings consistent with the model
// that built the index: the domain strategy uses the domain model.
func embedModelFor(config *cfgPkg.Config) string {
	if config.Chunking.Strategy == cfgPkg.StrategySemanticDomain {
		return config.Encoder.DomainModel
	}
	return config.Encoder.Model
}

func run(config *cfgPkg.Config) error {
	ctx := context.Background()

	enc := encoder.New(encoder.Config{
		Model:       embedModelFor(config),
		BaseURL:     config.Encoder.BaseURL,
		BatchSize:   config.Encoder.BatchSize,
		RateLimit:   config.Encoder.RateLimit,
		MaxParallel: config.Encoder.MaxParallel,
	})

	gen, err := generate.NewEngine(generate.Config{
		Model:       config.Generator.Model,
		BaseURL:     config.Generator.BaseURL,
		MaxTokens:   config.Generator.MaxTokens,
		Temperature: config.Generator.Temperature,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %v", err)
	}

	idx, err := openIndex(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to open index: %v", err)
	}
	defer idx.Close()

	engine, err := query.NewEngine(enc, idx, gen, query.Config{TopK: config.Search.TopK})
	if err != nil {
		return err
	}

	size, err := idx.Size(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index: %v", err)
	}
	color.Cyan("\nAsk your document database (%d chunks indexed, type 'exit' to quit)", size)

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	answerPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nQuestion: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.ToLower(question) == "exit" {
			break
		}

		spinner := getSpinner(" Retrieving and answering...")
		answer, err := engine.Answer(ctx, question, 0)
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		answerPrompt("\nAnswer: %s\n", answer.Answer)

		if len(answer.Sources) > 0 {
			color.Yellow("\nSources:")
			for i, source := range answer.Sources {
				line := fmt.Sprintf("  [%d] %s / %s (similarity %.1f%%)",
					i+1, source.Title, source.Section, source.Similarity*100)
				if source.Path != "" {
					line += fmt.Sprintf(" (%s)", source.Path)
				}
				color.Yellow("%s", line)
			}
		}
	}

	return nil
}
