package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/hackbot/core/infosource"
	"github.com/m3rciful/hackbot/core/logger"
)

// DefaultCallTimeout bounds a single collaborator call when Options leaves it unset.
const DefaultCallTimeout = 20 * time.Second

var (
	// ErrEmptyResult is returned when a collaborator answers with blank text.
	ErrEmptyResult = errors.New("scenario: empty result")
	// ErrCallTimeout is returned when a collaborator outlives the per-call timeout.
	ErrCallTimeout = errors.New("scenario: call timed out")
)

// ContentGenerator produces text for a prompt within a token budget.
type ContentGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// InfoSource fetches reference text for a topic. The context text may be used
// to pick among candidate passages.
type InfoSource interface {
	Fetch(ctx context.Context, topic infosource.Topic, context string) (string, error)
}

// Options configures a Pipeline.
type Options struct {
	Generator   ContentGenerator
	Info        InfoSource
	CallTimeout time.Duration
}

// Pipeline runs the five scenario steps strictly in order.
type Pipeline struct {
	gen     ContentGenerator
	info    InfoSource
	timeout time.Duration
}

// New validates collaborators and returns a ready pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Generator == nil {
		return nil, errors.New("scenario: generator is required")
	}
	if opts.Info == nil {
		return nil, errors.New("scenario: info source is required")
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return &Pipeline{gen: opts.Generator, info: opts.Info, timeout: opts.CallTimeout}, nil
}

// Run produces a bundle for category. A non-empty prior asks for a variation of
// an earlier scenario. Only a failed seed step returns an error, always wrapping
// ErrGenerationUnavailable; later steps degrade to fallback text.
func (p *Pipeline) Run(ctx context.Context, category Category, prior string) (Bundle, error) {
	start := time.Now()

	seed, err := p.generate(ctx, StepScenario, SeedPrompt(category, prior), BudgetScenario)
	if err != nil {
		logger.Warn(ctx, "scenario", "pipeline.seed_failed",
			slog.String("status", "error"),
			slog.String("category", category.Value),
			slog.Bool("explore", prior != ""),
			slog.Duration("duration", logger.Took(start)),
			slog.String("error", err.Error()),
		)
		return Bundle{}, fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}

	b := Bundle{Scenario: seed}
	b.DomainInfo = p.fetchOr(ctx, &b, StepDomainInfo, infosource.TopicGeneral, seed, FallbackInfo)
	b.Comparison = p.generateOr(ctx, &b, StepComparison, ComparisonPrompt(seed), BudgetComparison, FallbackComparison)
	b.Hack = p.fetchOr(ctx, &b, StepHack, infosource.TopicHack, seed, FallbackHack)
	b.Explanation = p.generateOr(ctx, &b, StepExplanation, ExplanationPrompt(b.Hack, b.Comparison), BudgetExplanation, FallbackExplanation)

	fallbacks := make([]string, 0, len(b.Fallbacks))
	for _, s := range b.Fallbacks {
		fallbacks = append(fallbacks, string(s))
	}
	summary, _ := logger.SummarizeStrings(fallbacks, len(fallbacks))
	logger.Info(ctx, "scenario", "pipeline.done",
		slog.String("status", "ok"),
		slog.String("category", category.Value),
		slog.Bool("explore", prior != ""),
		slog.String("fallback", summary),
		slog.Duration("duration", logger.Took(start)),
	)
	return b, nil
}

func (p *Pipeline) generateOr(ctx context.Context, b *Bundle, step Step, prompt string, budget int, fallback string) string {
	out, err := p.generate(ctx, step, prompt, budget)
	if err != nil {
		p.logFallback(ctx, step, err)
		b.Fallbacks = append(b.Fallbacks, step)
		return fallback
	}
	return out
}

func (p *Pipeline) fetchOr(ctx context.Context, b *Bundle, step Step, topic infosource.Topic, seed, fallback string) string {
	start := time.Now()
	out, err := p.call(ctx, func(callCtx context.Context) (string, error) {
		return p.info.Fetch(callCtx, topic, seed)
	})
	logger.Debug(ctx, "scenario", "step.fetch",
		slog.String("status", logger.Status(err)),
		slog.String("step", string(step)),
		slog.String("topic", topic.Value),
		slog.Int("chars", len(out)),
		slog.Duration("duration", logger.Took(start)),
	)
	if err != nil {
		p.logFallback(ctx, step, err)
		b.Fallbacks = append(b.Fallbacks, step)
		return fallback
	}
	return out
}

func (p *Pipeline) generate(ctx context.Context, step Step, prompt string, budget int) (string, error) {
	start := time.Now()
	out, err := p.call(ctx, func(callCtx context.Context) (string, error) {
		return p.gen.Generate(callCtx, prompt, budget)
	})
	logger.Debug(ctx, "scenario", "step.generate",
		slog.String("status", logger.Status(err)),
		slog.String("step", string(step)),
		slog.Int("budget", budget),
		slog.Int("chars", len(out)),
		slog.Duration("duration", logger.Took(start)),
	)
	return out, err
}

// call runs fn under the per-call timeout and returns as soon as the deadline
// passes, even if fn ignores its context.
func (p *Pipeline) call(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := fn(callCtx)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		text := strings.TrimSpace(r.text)
		if text == "" {
			return "", ErrEmptyResult
		}
		return text, nil
	case <-callCtx.Done():
		return "", fmt.Errorf("%w: %w", ErrCallTimeout, callCtx.Err())
	}
}

func (p *Pipeline) logFallback(ctx context.Context, step Step, err error) {
	logger.Warn(ctx, "scenario", "step.fallback",
		slog.String("status", "error"),
		slog.String("step", string(step)),
		slog.String("error", err.Error()),
	)
}
