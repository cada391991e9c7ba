package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/hackbot/core/generator"
	"github.com/m3rciful/hackbot/core/logger"
)

const insertGeneration = `
INSERT INTO generations (id, provider, model, prompt, completion, max_tokens, status, error, duration_ms, created_at)
VALUES (:id, :provider, :model, :prompt, :completion, :max_tokens, :status, :error, :duration_ms, :created_at)`

// GenerationJournal stores generator.Record rows in the generations table.
type GenerationJournal struct {
	db *sqlx.DB
}

var _ generator.Journal = (*GenerationJournal)(nil)

// NewGenerationJournal wraps an open connection.
func NewGenerationJournal(db *sqlx.DB) *GenerationJournal {
	return &GenerationJournal{db: db}
}

// RecordGeneration inserts rec.
func (j *GenerationJournal) RecordGeneration(ctx context.Context, rec generator.Record) error {
	start := time.Now()
	if _, err := j.db.NamedExecContext(ctx, insertGeneration, rec); err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	logger.Debug(ctx, "db", "journal.write",
		slog.String("status", "ok"),
		slog.String("id", rec.ID.String()),
		slog.String("provider", rec.Provider),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}
