package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/m3rciful/hackbot/core/dialog"
	"github.com/m3rciful/hackbot/core/logger"
)

// summary is the one handler.handled line written per update.
type summary struct {
	handler string
	start   time.Time
	outcome string
	attrs   []slog.Attr
}

func newSummary(handler string) *summary {
	return &summary{handler: handler, start: time.Now()}
}

// turn records what the engine produced for the update.
func (s *summary) turn(t dialog.Turn) {
	s.attrs = append(s.attrs,
		slog.Int("turn_messages", len(t.Messages)),
		slog.String("state", string(t.State)),
	)
	if t.Category.Valid() {
		s.attrs = append(s.attrs, slog.String("category", t.Category.String()))
	}
	if t.Err != nil {
		s.outcome = "apology"
		s.attrs = append(s.attrs, slog.String("reason", t.Err.Error()))
	}
}

// skip logs an update that was not handled and returns nil.
func (s *summary) skip(ctx context.Context, outcome string) error {
	s.outcome = outcome
	s.write(ctx, "skip")
	return nil
}

// done logs the delivery result and returns err unchanged.
func (s *summary) done(ctx context.Context, err error) error {
	status := "ok"
	if err != nil {
		status = "fail"
		if s.outcome == "" {
			s.outcome = "fail"
		}
		s.attrs = append(s.attrs,
			slog.String("err", err.Error()),
			slog.String("err_code", errorCode(err)),
		)
	}
	s.write(ctx, status)
	return err
}

func (s *summary) write(ctx context.Context, status string) {
	if s.outcome == "" {
		s.outcome = "ok"
	}
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("handler", s.handler),
		slog.String("outcome", s.outcome),
		slog.Duration("duration", logger.Took(s.start)),
	}, s.attrs...)
	logger.Info(ctx, "tg", "handler.handled", attrs...)
}

// errorCode names the innermost error type: *net.DNSError gives "DNS_ERROR".
func errorCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	var b strings.Builder
	var prev rune
	for _, r := range name {
		if unicode.IsUpper(r) && unicode.IsLower(prev) {
			b.WriteByte('_')
		}
		b.WriteRune(r)
		prev = r
	}
	return strings.ToUpper(b.String())
}
