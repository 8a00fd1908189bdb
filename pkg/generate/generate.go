// Package generate adapts an Ollama chat model to the generation
// capability boundary: one prompt string in, one completion string out.
package generate

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"

	"github.com/inkpotlabs/ragcore/internal/ragerr"
)

type Config struct {
	Model       string  // default llama3
	BaseURL     string  // Ollama server URL
	MaxTokens   int     // default 2000
	Temperature float64 // default 0.1, low for factual answers
}

type Engine struct {
	config Config
	llm    llms.Model
}

func NewEngine(config Config) (*Engine, error) {
	if config.Model == "" {
		config.Model = "llama3"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.MaxTokens < 0 {
		return nil, ragerr.Validationf("generate", "max_tokens cannot be negative")
	}
	if config.Temperature == 0 {
		config.Temperature = 0.1
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, ragerr.Validationf("generate", "temperature %v must be between 0 and 2", config.Temperature)
	}

	llm, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, ragerr.Wrap(ragerr.KindModelLoad, "generate", err)
	}

	return &Engine{config: config, llm: llm}, nil
}

func (e *Engine) Generate(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}
	response, err := e.llm.GenerateContent(ctx, content,
		llms.WithMaxTokens(e.config.MaxTokens),
		llms.WithTemperature(e.config.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0].Content == "" {
		return "", fmt.Errorf("model returned no content")
	}
	return response.Choices[0].Content, nil
}
