package generator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/hackbot/core/logger"
)

const journalTimeout = 3 * time.Second

// Record is one journaled generation call.
type Record struct {
	ID         uuid.UUID `db:"id"`
	Provider   string    `db:"provider"`
	Model      string    `db:"model"`
	Prompt     string    `db:"prompt"`
	Completion string    `db:"completion"`
	MaxTokens  int       `db:"max_tokens"`
	Status     string    `db:"status"`
	Error      string    `db:"error"`
	DurationMS int64     `db:"duration_ms"`
	CreatedAt  time.Time `db:"created_at"`
}

// Journal persists generation records.
type Journal interface {
	RecordGeneration(ctx context.Context, rec Record) error
}

type journaled struct {
	next     Generator
	journal  Journal
	provider string
	model    string
	now      func() time.Time
	pending  sync.WaitGroup
}

// WithJournal records every call made through next. Records are written in the
// background after the call returns, so a slow journal never eats into the
// caller's deadline. Journal failures are logged and never change the result.
// The returned generator has a Wait method that blocks until pending writes end.
func WithJournal(next Generator, j Journal, provider, model string) Generator {
	if j == nil {
		return next
	}
	return &journaled{next: next, journal: j, provider: provider, model: model, now: time.Now}
}

func (g *journaled) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	start := g.now()
	text, err := g.next.Generate(ctx, prompt, maxTokens)

	rec := Record{
		ID:         uuid.New(),
		Provider:   g.provider,
		Model:      g.model,
		Prompt:     prompt,
		Completion: text,
		MaxTokens:  maxTokens,
		Status:     logger.Status(err),
		DurationMS: g.now().Sub(start).Milliseconds(),
		CreatedAt:  start.UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
	}

	jctx := context.WithoutCancel(ctx)
	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		g.write(jctx, rec)
	}()
	return text, err
}

// Wait blocks until every record started so far has been written or dropped.
func (g *journaled) Wait() {
	g.pending.Wait()
}

func (g *journaled) write(ctx context.Context, rec Record) {
	wctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()
	if err := g.journal.RecordGeneration(wctx, rec); err != nil {
		logger.Warn(ctx, "db", "journal.write",
			slog.String("status", "error"),
			slog.String("id", rec.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
