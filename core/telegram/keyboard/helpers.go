package keyboard

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/hackbot/core/dialog"
)

// InlineBtn is one button whose Data is sent verbatim as callback_data.
type InlineBtn struct {
	Text string
	Data string
}

// PackFunc turns an encoded payload into callback_data.
type PackFunc func(ctx context.Context, raw string) (string, error)

// MenuMarkup renders menu actions as an inline keyboard, one button per row.
func MenuMarkup(ctx context.Context, menu dialog.Menu, pack PackFunc) (*tele.ReplyMarkup, error) {
	buttons := make([]InlineBtn, 0, len(menu.Actions))
	for _, a := range menu.Actions {
		raw, err := dialog.EncodePayload(a.Payload)
		if err != nil {
			return nil, fmt.Errorf("keyboard: %q: %w", a.Label, err)
		}
		data := raw
		if pack != nil {
			if data, err = pack(ctx, raw); err != nil {
				return nil, fmt.Errorf("keyboard: %q: %w", a.Label, err)
			}
		}
		buttons = append(buttons, InlineBtn{Text: a.Label, Data: data})
	}
	return InlineButtons(buttons), nil
}

// MenuText renders the title and body shown above the buttons.
func MenuText(menu dialog.Menu) string {
	switch {
	case menu.Title == "":
		return menu.Text
	case menu.Text == "":
		return menu.Title
	default:
		return menu.Title + "\n\n" + menu.Text
	}
}

// InlineButtons builds an inline keyboard with one button per row. Data
// is not prefixed with a telebot unique, so presses reach tele.OnCallback.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []tele.InlineButton{{Text: b.Text, Data: b.Data}})
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}
