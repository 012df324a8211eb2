package personality

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

var (
	// ErrMissingAPIKey is returned when no Gemini API key is configured.
	ErrMissingAPIKey = errors.New("missing GenAI API key")

	// ErrQuotaExceeded is returned when Gemini answers 429.
	ErrQuotaExceeded = errors.New("gemini quota exceeded")
)

// GenAIConfig configures a GenAIGenerator.
type GenAIConfig struct {
	APIKey     string
	Model      string        // Default: gemini-2.0-flash
	BaseURL    string        // Empty for Google's endpoint
	Timeout    time.Duration // Per request; zero for none
	HTTPClient *http.Client
}

// GenAIGenerator generates text with the Gemini API.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAIGenerator creates a Gemini-backed Generator.
func NewGenAIGenerator(ctx context.Context, cfg GenAIConfig) (*GenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	httpOpts := genai.HTTPOptions{BaseURL: cfg.BaseURL}
	if cfg.Timeout > 0 {
		timeout := cfg.Timeout
		httpOpts.Timeout = &timeout
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GenAIGenerator{client: client, model: cfg.Model}, nil
}

// Model returns the configured model name.
func (g *GenAIGenerator) Model() string {
	return g.model
}

// Generate sends prompt as a single user turn and returns the response text.
func (g *GenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			return "", fmt.Errorf("gemini %s: %w: %w", g.model, ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("gemini %s: %w", g.model, err)
	}
	return resp.Text(), nil
}
