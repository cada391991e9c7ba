package router

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/hackbot/core/dialog"
	"github.com/m3rciful/hackbot/core/logger"
	tg "github.com/m3rciful/hackbot/core/telegram"
	"github.com/m3rciful/hackbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/hackbot/core/telegram/helpers"
)

// Engine turns a channel-neutral event into an ordered reply.
type Engine interface {
	Handle(ctx context.Context, ev dialog.Event) dialog.Turn
}

// Deliverer sends a turn back to the chat it answers.
type Deliverer interface {
	Deliver(ctx context.Context, turn dialog.Turn) error
}

// Unpacker resolves callback_data produced by a callbacks.Packer.
type Unpacker interface {
	Unpack(ctx context.Context, data string) (string, error)
}

// DialogOptions wires the dialog routes.
type DialogOptions struct {
	Engine    Engine
	Deliverer Deliverer
	// Unpacker is optional; without it callback data reaches the engine as is.
	Unpacker Unpacker
}

// DialogRoutes builds the text and callback handlers that feed every inbound
// update through the dialog engine. The reply token is the chat id.
func DialogRoutes(opts DialogOptions) ([]tg.Route, error) {
	if opts.Engine == nil {
		return nil, errors.New("router: dialog engine is required")
	}
	if opts.Deliverer == nil {
		return nil, errors.New("router: deliverer is required")
	}

	textHandler := func(c tele.Context) error {
		sum := newSummary("dialog.text")
		ctx := logger.WithEventKind(tghelpers.WithHandler(c, sum.handler), "text")
		chat := c.Chat()
		if chat == nil {
			return sum.skip(ctx, "no_chat")
		}
		ev := dialog.TextEvent{ReplyToken: replyToken(chat), Text: commandText(c.Text())}
		return runTurn(ctx, sum, opts, ev)
	}

	callbackHandler := func(c tele.Context) error {
		sum := newSummary("dialog.callback")
		ctx := logger.WithEventKind(tghelpers.WithHandler(c, sum.handler), "callback")
		cb := c.Callback()
		chat := c.Chat()
		if cb == nil || chat == nil {
			return sum.skip(ctx, "no_chat")
		}
		_ = c.Respond()

		_, data := callbacks.ParseCallbackData(cb)
		if opts.Unpacker != nil {
			raw, err := opts.Unpacker.Unpack(ctx, data)
			if err != nil {
				// An expired or unknown reference decodes as garbage, which
				// the engine answers with the category menu.
				logger.Warn(ctx, "tg", "callback.unpack",
					slog.String("status", "fail"),
					slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				)
				raw = ""
			}
			data = raw
		}
		ev := dialog.CallbackEvent{ReplyToken: replyToken(chat), Data: data}
		return runTurn(ctx, sum, opts, ev)
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: textHandler},
		{Endpoint: tele.OnCallback, Handler: callbackHandler},
	}, nil
}

func runTurn(ctx context.Context, sum *summary, opts DialogOptions, ev dialog.Event) error {
	turn := opts.Engine.Handle(ctx, ev)
	sum.turn(turn)
	return sum.done(ctx, opts.Deliverer.Deliver(ctx, turn))
}

// commandText drops the "@botname" suffix Telegram adds to commands sent in
// groups, so "/start@HackBot" reads as "/start".
func commandText(text string) string {
	trimmed := strings.TrimLeft(text, " \t\n")
	if !strings.HasPrefix(trimmed, "/") {
		return text
	}
	end := strings.IndexAny(trimmed, " \t\n")
	if end < 0 {
		end = len(trimmed)
	}
	cmd, _, found := strings.Cut(trimmed[:end], "@")
	if !found {
		return text
	}
	return cmd + trimmed[end:]
}

func replyToken(chat *tele.Chat) string {
	return strconv.FormatInt(chat.ID, 10)
}
