package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite   = "sqlite"
	BackendPgvector = "pgvector"

	StrategyFixed          = "fixed"
	StrategySemantic       = "semantic"
	StrategySemanticDomain = "semantic_domain"
)

type Config struct {
	Encoder struct {
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		DomainModel string  `yaml:"domain_model"`
		BatchSize   int     `yaml:"batch_size"`
		RateLimit   float64 `yaml:"rate_limit"`
		MaxParallel int     `yaml:"max_parallel"`
	} `yaml:"encoder"`

	Generator struct {
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"generator"`

	Index struct {
		Backend     string `yaml:"backend"`
		Dir         string `yaml:"dir"`
		DatabaseURL string `yaml:"database_url"`
		Collection  string `yaml:"collection"`
		BatchSize   int    `yaml:"batch_size"`
	} `yaml:"index"`

	Chunking struct {
		Strategy  string `yaml:"strategy"`
		ChunkSize int    `yaml:"chunk_size"`
		// Pointer so an explicit "overlap: 0" survives defaulting.
		Overlap             *int    `yaml:"overlap"`
		SimilarityThreshold float64 `yaml:"similarity_threshold"`
	} `yaml:"chunking"`

	Search struct {
		TopK int `yaml:"top_k"`
	} `yaml:"search"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/ragcore/config.yaml"),
			"/etc/ragcore/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Encoder.BaseURL == "" {
		config.Encoder.BaseURL = "http://localhost:11434"
	}
	if config.Encoder.Model == "" {
		config.Encoder.Model = "nomic-embed-text:latest"
	}
	if config.Encoder.DomainModel == "" {
		config.Encoder.DomainModel = "mxbai-embed-large:latest"
	}
	if config.Encoder.BatchSize == 0 {
		config.Encoder.BatchSize = 32
	}
	if config.Encoder.RateLimit == 0 {
		config.Encoder.RateLimit = 4
	}
	if config.Encoder.MaxParallel == 0 {
		config.Encoder.MaxParallel = 4
	}

	if config.Generator.BaseURL == "" {
		config.Generator.BaseURL = "http://localhost:11434"
	}
	if config.Generator.Model == "" {
		config.Generator.Model = "llama3"
	}
	if config.Generator.MaxTokens == 0 {
		config.Generator.MaxTokens = 2000
	}
	if config.Generator.Temperature == 0 {
		config.Generator.Temperature = 0.1
	}

	if config.Index.Backend == "" {
		config.Index.Backend = BackendSQLite
	}
	if config.Index.Dir == "" {
		config.Index.Dir = filepath.Join("data", "index")
	}
	if config.Index.Collection == "" {
		config.Index.Collection = "chunks"
	}
	if config.Index.BatchSize == 0 {
		config.Index.BatchSize = 100
	}

	if config.Chunking.Strategy == "" {
		config.Chunking.Strategy = StrategyFixed
	}
	if config.Chunking.ChunkSize == 0 {
		config.Chunking.ChunkSize = 1000
	}
	if config.Chunking.Overlap == nil {
		overlap := 0
		if config.Chunking.Strategy == StrategyFixed {
			overlap = 200
		}
		config.Chunking.Overlap = &overlap
	}
	if config.Chunking.SimilarityThreshold == 0 {
		config.Chunking.SimilarityThreshold = 0.5
	}

	if config.Search.TopK == 0 {
		config.Search.TopK = 5
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Encoder.BaseURL = baseURL
		config.Generator.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Index.DatabaseURL = dbURL
	}
	if dir := os.Getenv("RAGCORE_INDEX_DIR"); dir != "" {
		config.Index.Dir = dir
	}
}
