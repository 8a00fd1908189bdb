package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Encoder config
	if c.Encoder.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "encoder.base_url",
			Message: "embedding server URL is required",
		})
	} else if _, err := url.Parse(c.Encoder.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "encoder.base_url",
			Message: "invalid embedding server URL",
		})
	}

	if c.Encoder.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "encoder.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Encoder.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "encoder.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Encoder.MaxParallel < 1 {
		errors = append(errors, ValidationError{
			Field:   "encoder.max_parallel",
			Message: "max_parallel must be positive",
		})
	}

	// Validate Generator config
	if c.Generator.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "generator.base_url",
			Message: "generation server URL is required",
		})
	}

	if c.Generator.MaxTokens < 1 || c.Generator.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "generator.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "generator.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate Index config
	switch c.Index.Backend {
	case BackendSQLite:
	case BackendPgvector:
		if c.Index.DatabaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "index.database_url",
				Message: "database_url is required for the pgvector backend",
			})
		} else if _, err := url.Parse(c.Index.DatabaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "index.database_url",
				Message: "invalid database URL",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "index.backend",
			Message: fmt.Sprintf("unknown backend %q, want %q or %q", c.Index.Backend, BackendSQLite, BackendPgvector),
		})
	}

	if c.Index.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Chunking config
	switch c.Chunking.Strategy {
	case StrategyFixed, StrategySemantic, StrategySemanticDomain:
	default:
		errors = append(errors, ValidationError{
			Field:   "chunking.strategy",
			Message: fmt.Sprintf("unknown strategy %q", c.Chunking.Strategy),
		})
	}

	if c.Chunking.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunking.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	overlap := 0
	if c.Chunking.Overlap != nil {
		overlap = *c.Chunking.Overlap
	}
	if overlap < 0 || overlap >= c.Chunking.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "chunking.overlap",
			Message: "overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Chunking.SimilarityThreshold < 0 || c.Chunking.SimilarityThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "chunking.similarity_threshold",
			Message: "similarity_threshold must be between 0 and 1",
		})
	}

	// Validate Search config
	if c.Search.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "search.top_k",
			Message: "top_k must be at least 1",
		})
	}

	return errors
}
