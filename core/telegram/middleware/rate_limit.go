package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/hackbot/core/logger"
	tghelpers "github.com/m3rciful/hackbot/core/telegram/helpers"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	// Interval is the minimum gap between two updates of one user.
	Interval time.Duration
	// Exclude lists update kinds (see helpers.UpdateKind) that are never limited.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

type userLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// userLimiters hands out one single-token limiter per user and forgets
// users that have been quiet for longer than the interval.
type userLimiters struct {
	mu       sync.Mutex
	every    time.Duration
	limiters map[int64]*userLimiter
}

func (u *userLimiters) allow(userID int64, now time.Time) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	for id, l := range u.limiters {
		if now.Sub(l.seen) > u.every {
			delete(u.limiters, id)
		}
	}
	l, ok := u.limiters[userID]
	if !ok {
		l = &userLimiter{lim: rate.NewLimiter(rate.Every(u.every), 1)}
		u.limiters[userID] = l
	}
	l.seen = now
	return l.lim.AllowN(now, 1)
}

// RateLimitMiddleware drops updates that arrive faster than opts.Interval
// from the same user. An accepted update may start a scenario run with
// several upstream calls, so this also caps upstream spend per user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	users := &userLimiters{every: opts.Interval, limiters: make(map[int64]*userLimiter)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := tghelpers.UpdateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if users.allow(user.ID, time.Now()) {
				return next(c)
			}

			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "skip"),
				slog.String("kind", kind),
				slog.Duration("interval", opts.Interval),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
