package generator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	coreconfig "github.com/m3rciful/hackbot/core/config"
	"github.com/m3rciful/hackbot/core/logger"
)

// Gemini calls the Gemini API through the genai SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini builds the client. cfg.BaseURL overrides the API endpoint.
func NewGemini(ctx context.Context, cfg coreconfig.GeneratorConfig, httpClient *http.Client) (*Gemini, error) {
	gc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		gc.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, gc)
	if err != nil {
		return nil, fmt.Errorf("generator: gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model}, nil
}

// Generate sends prompt as a single text part.
func (g *Gemini) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	})
	if err != nil {
		logger.Warn(ctx, "llm", "completion",
			slog.String("status", "error"),
			slog.String("provider", coreconfig.ProviderGemini),
			slog.String("model", g.model),
			slog.Duration("duration", logger.Took(start)),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: gemini: %w", ErrGeneration, err)
	}

	text := strings.TrimSpace(resp.Text())
	logger.Debug(ctx, "llm", "completion",
		slog.String("status", logger.Status(nil)),
		slog.String("provider", coreconfig.ProviderGemini),
		slog.String("model", g.model),
		slog.Int("budget", maxTokens),
		slog.Int("chars", len(text)),
		slog.Duration("duration", logger.Took(start)),
	)
	if text == "" {
		return "", fmt.Errorf("%w: gemini: empty completion", ErrGeneration)
	}
	return text, nil
}
