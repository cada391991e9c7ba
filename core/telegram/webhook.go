package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/hackbot/core/logger"
)

const (
	// SecretHeader carries the secret_token registered with setWebhook.
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

	maxUpdateBytes = 1 << 20
)

// ErrUnauthorized reports a webhook request whose secret does not match.
var ErrUnauthorized = errors.New("telegram: webhook secret mismatch")

// WebhookReceiver authenticates webhook requests and feeds decoded updates
// into the bot. It is both the HTTP handler and the tele.Poller.
type WebhookReceiver struct {
	secret  []byte
	updates chan tele.Update
}

// NewWebhookReceiver returns a receiver that accepts requests carrying secret.
func NewWebhookReceiver(secret string, buffer int) *WebhookReceiver {
	if buffer <= 0 {
		buffer = 100
	}
	return &WebhookReceiver{secret: []byte(secret), updates: make(chan tele.Update, buffer)}
}

// Verify checks the secret header in constant time.
func (w *WebhookReceiver) Verify(r *http.Request) error {
	got := []byte(r.Header.Get(SecretHeader))
	if len(w.secret) == 0 || subtle.ConstantTimeCompare(got, w.secret) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// ServeHTTP answers 405 for non-POST, 400 for a bad secret or body and 200
// once the update is queued.
func (w *WebhookReceiver) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		rw.Header().Set("Allow", http.MethodPost)
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := w.Verify(r); err != nil {
		logger.Warn(ctx, "tg.webhook", "request.rejected",
			slog.String("status", "error"),
			slog.String("reason", "secret"),
			slog.String("remote", r.RemoteAddr),
		)
		rw.WriteHeader(http.StatusBadRequest)
		return
	}

	var upd tele.Update
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, maxUpdateBytes)).Decode(&upd); err != nil {
		logger.Warn(ctx, "tg.webhook", "request.rejected",
			slog.String("status", "error"),
			slog.String("reason", "decode"),
			slog.String("error", err.Error()),
		)
		rw.WriteHeader(http.StatusBadRequest)
		return
	}

	select {
	case w.updates <- upd:
		logger.Debug(ctx, "tg.webhook", "request.accepted",
			slog.String("status", "ok"),
			slog.Int("update_id", upd.ID),
		)
	case <-ctx.Done():
		rw.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	rw.WriteHeader(http.StatusOK)
}

// Poll forwards received updates until stop is closed.
func (w *WebhookReceiver) Poll(_ *tele.Bot, dest chan tele.Update, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case upd := <-w.updates:
			select {
			case dest <- upd:
			case <-stop:
				return
			}
		}
	}
}
