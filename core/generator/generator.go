// Package generator adapts hosted LLM APIs to a prompt-in, text-out call.
package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	coreconfig "github.com/m3rciful/hackbot/core/config"
)

// ErrGeneration wraps every backend failure, including blank completions.
var ErrGeneration = errors.New("generator: generation failed")

// Generator produces a completion for prompt capped at maxTokens.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// New builds the backend selected by cfg.Provider. httpClient may be nil.
func New(ctx context.Context, cfg coreconfig.GeneratorConfig, httpClient *http.Client) (Generator, error) {
	switch cfg.Provider {
	case coreconfig.ProviderOpenAI, "":
		return NewOpenAI(cfg, httpClient), nil
	case coreconfig.ProviderGemini:
		return NewGemini(ctx, cfg, httpClient)
	default:
		return nil, fmt.Errorf("generator: unknown provider %q", cfg.Provider)
	}
}
