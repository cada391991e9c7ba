package helpers

import (
	"errors"
	"log/slog"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/hackbot/core/logger"
	"github.com/m3rciful/hackbot/core/telegram/sender"
)

// SendText sends raw text to the current chat through d. When d is nil, full
// or closed the message is sent inline.
func SendText(c tele.Context, d *sender.Dispatcher, text string) error {
	run := func() error { return c.Send(text) }
	if d == nil {
		return run()
	}

	var key string
	if chat := c.Chat(); chat != nil {
		key = strconv.FormatInt(chat.ID, 10)
	}
	ctx := BuildContext(c)
	if err := d.Enqueue(ctx, key, "send.text", "sendMessage", run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", "send.text"),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}
