package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	coreconfig "github.com/m3rciful/hackbot/core/config"
	"github.com/m3rciful/hackbot/core/logger"
)

// OpenAI talks to the chat completions API or any compatible endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI builds the client; cfg.BaseURL points it at compatible providers.
func NewOpenAI(cfg coreconfig.GeneratorConfig, httpClient *http.Client) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		oc.BaseURL = strings.TrimRight(base, "/")
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClientWithConfig(oc), model: model}
}

// Generate sends prompt as a single user message.
func (o *OpenAI) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
	})
	if err != nil {
		attrs := []slog.Attr{
			slog.String("status", "error"),
			slog.String("provider", coreconfig.ProviderOpenAI),
			slog.String("model", o.model),
			slog.Duration("duration", logger.Took(start)),
			slog.String("error", err.Error()),
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			attrs = append(attrs, slog.Int("http_status", apiErr.HTTPStatusCode))
		}
		logger.Warn(ctx, "llm", "completion", attrs...)
		return "", fmt.Errorf("%w: openai: %w", ErrGeneration, err)
	}

	text := ""
	if len(resp.Choices) > 0 {
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	logger.Debug(ctx, "llm", "completion",
		slog.String("status", logger.Status(nil)),
		slog.String("provider", coreconfig.ProviderOpenAI),
		slog.String("model", o.model),
		slog.Int("budget", maxTokens),
		slog.Int("chars", len(text)),
		slog.Int("tokens", resp.Usage.CompletionTokens),
		slog.Duration("duration", logger.Took(start)),
	)
	if text == "" {
		return "", fmt.Errorf("%w: openai: empty completion", ErrGeneration)
	}
	return text, nil
}
