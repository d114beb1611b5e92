package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// EngineConfig represents the configuration for a generation engine.
type EngineConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string // Ollama server URL
	Timeout     time.Duration
}

// Engine issues single-prompt generation calls against a local Ollama
// server. Every call is bounded by the configured timeout; callers decide
// how to degrade on failure.
type Engine struct {
	config EngineConfig
	llm    llms.Model
}

// NewWithConfig creates a new Engine with the given configuration.
func NewWithConfig(config EngineConfig) (*Engine, error) {
	if config.Model == "" {
		config.Model = "llama3.2"
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}

	model, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &Engine{
		config: config,
		llm:    model,
	}, nil
}

// Generate sends one prompt and returns the model's reply text.
func (e *Engine) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	response, err := e.llm.GenerateContent(ctx, content,
		llms.WithTemperature(e.config.Temperature),
		llms.WithMaxTokens(e.config.MaxTokens))
	if err != nil {
		return "", fmt.Errorf("generation error: %w", err)
	}
	if len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", fmt.Errorf("no response from LLM")
	}

	return response.Choices[0].Content, nil
}
