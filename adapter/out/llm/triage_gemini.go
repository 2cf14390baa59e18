package llm

import (
	"context"
	"fmt"

	"ticket_triage/core/port/out"

	"github.com/sony/gobreaker"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig configures a GeminiGenerator.
type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// GeminiGenerator completes prompts with the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
	cb     *gobreaker.CircuitBreaker
}

var _ out.TextGenerator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a generator.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(cfg.Temperature)),
	}
	if cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(cfg.MaxTokens)
	}

	return &GeminiGenerator{
		client: client,
		model:  model,
		config: genCfg,
		cb:     newBreaker("gemini"),
	}, nil
}

// Complete sends prompt as a single user turn and returns the response text.
func (g *GeminiGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	return complete(g.cb, func() (string, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
		if err != nil {
			return "", fmt.Errorf("gemini generate content: %w", err)
		}
		return resp.Text(), nil
	})
}
