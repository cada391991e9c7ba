package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/hackbot/core/logger"
	"github.com/m3rciful/hackbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/hackbot/core/telegram/helpers"
)

// seenUpdates remembers recently logged update ids so a redelivered update
// is logged once.
type seenUpdates struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[int]time.Time
}

func (s *seenUpdates) first(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, at := range s.seen {
		if now.Sub(at) > s.ttl {
			delete(s.seen, k)
		}
	}
	if _, dup := s.seen[id]; dup {
		return false
	}
	s.seen[id] = now
	return true
}

var received = &seenUpdates{ttl: 10 * time.Second, seen: make(map[int]time.Time)}

// LoggerMiddleware prepares the update context and writes a sampled
// update.received debug line with what the user sent.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		upd := c.Update()
		if !logger.ShouldSampleDebug() || !received.first(upd.ID, time.Now()) {
			return next(c)
		}

		attrs := []slog.Attr{slog.String("status", "ok")}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
		}
		if user := c.Sender(); user != nil {
			if user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			if user.LanguageCode != "" {
				attrs = append(attrs, slog.String("lang", user.LanguageCode))
			}
		}
		switch {
		case upd.Callback != nil:
			key, payload := callbacks.ParseCallbackData(upd.Callback)
			if key != "" {
				attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
			}
			attrs = append(attrs, slog.String("payload", payload))
		case upd.Message != nil:
			attrs = append(attrs, slog.String("payload", c.Text()))
		}
		logger.Debug(ctx, "tg", "update.received", attrs...)
		return next(c)
	}
}
