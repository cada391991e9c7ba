package middleware

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

type chatLock struct {
	mu   sync.Mutex
	refs int
}

// chatLocks hands out one mutex per chat and drops it when no handler holds it.
type chatLocks struct {
	mu    sync.Mutex
	locks map[int64]*chatLock
}

func (l *chatLocks) acquire(chatID int64) *chatLock {
	l.mu.Lock()
	lk, ok := l.locks[chatID]
	if !ok {
		lk = &chatLock{}
		l.locks[chatID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return lk
}

func (l *chatLocks) release(chatID int64, lk *chatLock) {
	lk.mu.Unlock()

	l.mu.Lock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, chatID)
	}
	l.mu.Unlock()
}

func (l *chatLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// SerializeChatMiddleware runs handlers for the same chat one at a time, so an
// event is handled to completion before the next one from that chat starts.
// Different chats proceed in parallel.
func SerializeChatMiddleware() tele.MiddlewareFunc {
	locks := &chatLocks{locks: make(map[int64]*chatLock)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			if chat == nil {
				return next(c)
			}
			lk := locks.acquire(chat.ID)
			defer locks.release(chat.ID, lk)
			return next(c)
		}
	}
}
