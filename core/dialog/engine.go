package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/hackbot/core/logger"
	"github.com/m3rciful/hackbot/core/scenario"
)

// Pipeline produces a scenario bundle. *scenario.Pipeline satisfies it.
type Pipeline interface {
	Run(ctx context.Context, category scenario.Category, prior string) (scenario.Bundle, error)
}

// Options configures an Engine.
type Options struct {
	Pipeline     Pipeline
	StartKeyword string
}

// Engine maps one inbound event to one outbound turn. It holds no
// per-conversation state and is safe for concurrent use.
type Engine struct {
	pipeline Pipeline
	keyword  string
}

// NewEngine validates options and returns an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("dialog: pipeline is required")
	}
	if opts.StartKeyword == "" {
		return nil, errors.New("dialog: start keyword is required")
	}
	return &Engine{pipeline: opts.Pipeline, keyword: opts.StartKeyword}, nil
}

// StartKeyword returns the text that opens the category menu.
func (e *Engine) StartKeyword() string {
	return e.keyword
}

// Handle never fails: every event, including malformed ones, yields a turn.
// A panic inside the pipeline is logged and answered with the category menu.
func (e *Engine) Handle(ctx context.Context, ev Event) (turn Turn) {
	start := time.Now()
	token := ""
	if ev != nil {
		token = ev.Token()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "dialog", "handle.panic",
				slog.String("status", "error"),
				slog.String("error", fmt.Sprint(r)),
			)
			turn = e.categoryTurn(token)
		}
		logger.Info(ctx, "dialog", "turn",
			slog.String("status", turnStatus(turn)),
			slog.String("state", string(turn.State)),
			slog.String("category", turn.Category.Value),
			slog.Int("turn_messages", len(turn.Messages)),
			slog.Duration("duration", logger.Took(start)),
		)
	}()

	switch ev := ev.(type) {
	case TextEvent:
		if strings.TrimSpace(ev.Text) == e.keyword {
			return e.categoryTurn(token)
		}
		return Turn{
			ReplyToken: token,
			Messages:   []Message{{Text: InstructionText(e.keyword)}},
			State:      StateIdle,
		}
	case CallbackEvent:
		return e.handlePayload(ctx, token, ev.Data)
	default:
		logger.Warn(ctx, "dialog", "event.unknown", slog.String("type", fmt.Sprintf("%T", ev)))
		return e.categoryTurn(token)
	}
}

func (e *Engine) handlePayload(ctx context.Context, token, data string) Turn {
	p, err := DecodePayload(data)
	if err != nil {
		logger.Debug(ctx, "dialog", "payload.malformed",
			slog.String("status", "error"),
			slog.String("error", err.Error()),
		)
		p = Restart{}
	}
	switch p := p.(type) {
	case StartCategory:
		return e.scenarioTurn(ctx, token, p.Category, "")
	case ExploreMore:
		return e.scenarioTurn(ctx, token, p.Category, p.PriorScenario)
	default:
		return e.categoryTurn(token)
	}
}

func (e *Engine) scenarioTurn(ctx context.Context, token string, category scenario.Category, prior string) Turn {
	if !category.Valid() {
		logger.Debug(ctx, "dialog", "category.invalid", slog.String("category", category.Value))
		return Turn{
			ReplyToken: token,
			Messages:   []Message{{Text: InvalidCategoryText}, menuMessage(CategoryMenu())},
			State:      StateAwaitingCategory,
		}
	}

	logger.Debug(ctx, "dialog", "transition",
		slog.String("state", string(StateCategoryChosen)),
		slog.String("category", category.Value),
	)
	bundle, err := e.pipeline.Run(ctx, category, prior)
	if err != nil {
		return Turn{
			ReplyToken: token,
			Messages:   []Message{{Text: ApologyText}, menuMessage(CategoryMenu())},
			State:      StateAwaitingCategory,
			Category:   category,
			Err:        scenario.ErrGenerationUnavailable,
		}
	}

	msgs := append(BundleMessages(bundle), menuMessage(NextMenu(category, bundle.Scenario)))
	return Turn{
		ReplyToken: token,
		Messages:   msgs,
		State:      StateScenarioShown,
		Category:   category,
	}
}

func (e *Engine) categoryTurn(token string) Turn {
	return Turn{
		ReplyToken: token,
		Messages:   []Message{menuMessage(CategoryMenu())},
		State:      StateAwaitingCategory,
	}
}

func turnStatus(t Turn) string {
	if t.Err != nil {
		return "error"
	}
	return "ok"
}
