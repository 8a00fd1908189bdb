// Package query orchestrates one retrieval-augmented question: embed the
// query, search the index, assemble numbered context blocks, delegate to
// the generation capability, and extract deduplicated source citations.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/inkpotlabs/ragcore/internal/models"
	"github.com/inkpotlabs/ragcore/internal/ragerr"
	"github.com/inkpotlabs/ragcore/internal/types"
)

// Returned verbatim when the search comes back empty; a defined terminal
// state, not an error.
const noContextAnswer = "I couldn't find any relevant information in the document database to answer this question."

const unknownTitle = "Unknown Document"
const unknownSection = "Unknown Section"

const promptTemplate = `You are a research assistant. Answer the following question using only the information provided in the context below. If the context doesn't contain enough information to answer the question, say so.

Question: %s

Context from the document database:
%s

Instructions:
1. Provide a clear, accurate answer based on the context
2. Cite the sources you draw from by number (e.g. "According to [Source 1]...")
3. If the context doesn't fully answer the question, acknowledge what information is missing
4. Be precise and technical, but also clear and accessible

Answer:`

type Config struct {
	TopK int // default 5
}

// Engine is stateless across queries; every Answer call runs the full
// pipeline against the injected components.
type Engine struct {
	encoder   types.Encoder
	index     types.VectorIndex
	generator types.Generator
	config    Config
}

func NewEngine(encoder types.Encoder, index types.VectorIndex, generator types.Generator, config Config) (*Engine, error) {
	if encoder == nil || index == nil || generator == nil {
		return nil, ragerr.Validationf("query", "encoder, index and generator are all required")
	}
	if config.TopK == 0 {
		config.TopK = 5
	}
	if config.TopK < 1 {
		return nil, ragerr.Validationf("query", "top_k must be at least 1, got %d", config.TopK)
	}
	return &Engine{encoder: encoder, index: index, generator: generator, config: config}, nil
}

// Answer runs one query. topK overrides the configured default when
// positive; zero means "use the default".
func (e *Engine) Answer(ctx context.Context, query string, topK int) (*models.Answer, error) {
	if topK == 0 {
		topK = e.config.TopK
	}
	if topK < 1 {
		return nil, ragerr.Validationf("query", "top_k must be at least 1, got %d", topK)
	}

	queryVec, err := e.encoder.EncodeOne(ctx, query)
	if err != nil {
		return nil, retrievalErr("query.embed", err)
	}

	results, err := e.index.Search(ctx, queryVec, topK, nil)
	if err != nil {
		return nil, retrievalErr("query.search", err)
	}

	if len(results) == 0 {
		return &models.Answer{
			Answer:    noContextAnswer,
			Sources:   []models.SourceCitation{},
			Retrieved: []models.RetrievalResult{},
		}, nil
	}

	prompt := fmt.Sprintf(promptTemplate, query, buildContext(results))
	answer, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindGeneration, "query.generate", err)
	}

	return &models.Answer{
		Answer:    answer,
		Sources:   extractSources(results),
		Retrieved: results,
	}, nil
}

// retrievalErr classifies plain failures as retrieval errors while
// leaving already-classified ones (validation, model load) intact.
func retrievalErr(op string, err error) error {
	var classified *ragerr.Error
	if errors.As(err, &classified) {
		return err
	}
	return ragerr.Wrap(ragerr.KindRetrieval, op, err)
}

// buildContext renders one labeled block per retrieved chunk, in rank
// order. The source numbering here is what the prompt instructs the
// model to cite by.
func buildContext(results []models.RetrievalResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("[Source %d]\nTitle: %s\nSection: %s\nContent: %s\n",
			i+1, titleOf(r), sectionOf(r), r.Text)
	}
	return strings.Join(blocks, "\n---\n\n")
}

// extractSources walks results in rank order, deduplicating by
// (title, section) so each source keeps its highest-ranked similarity.
func extractSources(results []models.RetrievalResult) []models.SourceCitation {
	type key struct{ title, section string }
	seen := make(map[key]bool, len(results))
	sources := make([]models.SourceCitation, 0, len(results))
	for _, r := range results {
		k := key{titleOf(r), sectionOf(r)}
		if seen[k] {
			continue
		}
		seen[k] = true
		sources = append(sources, models.SourceCitation{
			Title:      k.title,
			Section:    k.section,
			Similarity: r.Similarity(),
			Path:       r.Metadata[models.MetaSourcePath],
		})
	}
	return sources
}

func titleOf(r models.RetrievalResult) string {
	if t := r.Metadata[models.MetaTitle]; t != "" {
		return t
	}
	return unknownTitle
}

func sectionOf(r models.RetrievalResult) string {
	if s := r.Metadata[models.MetaSectionHeader]; s != "" {
		return s
	}
	return unknownSection
}
