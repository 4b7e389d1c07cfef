// Package keyboard builds inline and reply markups.
package keyboard

import (
	"slices"

	tele "gopkg.in/telebot.v4"
)

// InlineBtn describes an inline button. A non-empty URL makes a link button;
// Unique and Data are ignored then.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

const defaultCancelText = "❌ Отмена"

// RemoveKeyboard hides a reply keyboard left on the client.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// InlineButtons puts every button on its own row.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	return InlineButtonsNPerRow(buttons, 1)
}

// InlineButtonsNPerRow lays buttons out left to right, n per row.
func InlineButtonsNPerRow(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	return InlineButtonsRows(slices.Collect(slices.Chunk(buttons, max(n, 1)))...)
}

// InlineButtonsRows builds an inline keyboard row by row.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			btn := markup.Data(b.Text, b.Unique, b.Data)
			if b.URL != "" {
				btn = markup.URL(b.Text, b.URL)
			}
			line = append(line, *btn.Inline())
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, line)
	}
	return markup
}

// SingleCancelMarkup is a one-button keyboard for aborting a prompt. The
// optional values override the payload ("cancel") and the label.
func SingleCancelMarkup(unique string, options ...string) *tele.ReplyMarkup {
	btn := InlineBtn{Text: defaultCancelText, Unique: unique, Data: "cancel"}
	if len(options) > 0 && options[0] != "" {
		btn.Data = options[0]
	}
	if len(options) > 1 && options[1] != "" {
		btn.Text = options[1]
	}
	return InlineButtonsRows([]InlineBtn{btn})
}
