package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/hackbot/core/dialog"
	"github.com/m3rciful/hackbot/core/logger"
	"github.com/m3rciful/hackbot/core/telegram/keyboard"
	"github.com/m3rciful/hackbot/core/telegram/sender"
)

// Sender is the part of *tele.Bot used for outbound messages.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type outbound struct {
	text   string
	markup *tele.ReplyMarkup
}

// Deliverer sends dialog turns to the chat named by their reply token.
type Deliverer struct {
	bot        Sender
	dispatcher *sender.Dispatcher
	pack       keyboard.PackFunc
}

// NewDeliverer wires a Deliverer. A nil dispatcher sends synchronously.
func NewDeliverer(bot Sender, dispatcher *sender.Dispatcher, pack keyboard.PackFunc) *Deliverer {
	return &Deliverer{bot: bot, dispatcher: dispatcher, pack: pack}
}

// Deliver renders turn and sends its messages in order as one dispatcher job
// keyed by chat, so turns for one chat go out in the order they were delivered.
// Retries resume from the first unsent message.
func (d *Deliverer) Deliver(ctx context.Context, turn dialog.Turn) error {
	chatID, err := strconv.ParseInt(turn.ReplyToken, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad reply token %q: %w", turn.ReplyToken, err)
	}
	chat := tele.ChatID(chatID)

	msgs := make([]outbound, 0, len(turn.Messages))
	for _, m := range turn.Messages {
		if m.Menu == nil {
			msgs = append(msgs, outbound{text: m.Text})
			continue
		}
		markup, err := keyboard.MenuMarkup(ctx, *m.Menu, d.pack)
		if err != nil {
			return fmt.Errorf("telegram: render menu: %w", err)
		}
		msgs = append(msgs, outbound{text: keyboard.MenuText(*m.Menu), markup: markup})
	}
	if len(msgs) == 0 {
		return nil
	}

	sent := 0
	run := func() error {
		for sent < len(msgs) {
			m := msgs[sent]
			var err error
			if m.markup != nil {
				_, err = d.bot.Send(chat, m.text, m.markup)
			} else {
				_, err = d.bot.Send(chat, m.text)
			}
			if err != nil {
				return err
			}
			sent++
		}
		return nil
	}

	if d.dispatcher == nil {
		return run()
	}
	if err := d.dispatcher.Enqueue(ctx, turn.ReplyToken, "send.turn", "sendMessage", run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", "send.turn"),
				slog.Int("turn_messages", len(msgs)),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}
