package telegram

import (
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/hackbot/core/config"
)

const defaultLongPollTimeout = 10 * time.Second

// BuildPoller returns the poller for the configured run mode. In webhook mode
// the returned receiver must also be mounted on an HTTP server.
func BuildPoller(cfg *coreconfig.Config) (tele.Poller, *WebhookReceiver) {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		r := NewWebhookReceiver(cfg.Webhook.Secret, 0)
		return r, r
	}
	return &tele.LongPoller{
		Timeout:        longPollTimeout(cfg),
		AllowedUpdates: AllowedUpdates,
	}, nil
}

func longPollTimeout(cfg *coreconfig.Config) time.Duration {
	if cfg.Telegram.LongPollTimeoutSeconds > 0 {
		return time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	}
	return defaultLongPollTimeout
}
