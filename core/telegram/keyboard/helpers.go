// Package keyboard builds reply and inline markups from plain values.
package keyboard

import (
	"slices"

	tele "gopkg.in/telebot.v4"
)

// MaxCallbackData is Telegram's limit on callback_data, which telebot
// fills with "\f<unique>|<data>".
const MaxCallbackData = 64

// InlineBtn is one inline button: label, handler key and payload.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// Fits reports whether the encoded callback data stays within MaxCallbackData.
func (b InlineBtn) Fits() bool {
	return len(b.Unique)+len(b.Data)+2 <= MaxCallbackData
}

// ReplyButtons builds a resized reply keyboard, one row per argument.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, labels := range rows {
		row := make(tele.Row, 0, len(labels))
		for _, label := range labels {
			row = append(row, markup.Text(label))
		}
		keyboard = append(keyboard, row)
	}
	markup.Reply(keyboard...)
	return markup
}

// InlineButtonsRows builds an inline keyboard, one row per argument.
// Empty rows are skipped.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, *markup.Data(b.Text, b.Unique, b.Data).Inline())
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, line)
	}
	return markup
}

// InlineButtonsNPerRow lays buttons out n per row; n < 1 means one per row.
func InlineButtonsNPerRow(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	return InlineButtonsRows(slices.Collect(slices.Chunk(buttons, max(n, 1)))...)
}

// SingleCancelMarkup is an inline keyboard with one "Cancel" button for
// the unique key. An optional argument overrides the label.
func SingleCancelMarkup(unique string, label ...string) *tele.ReplyMarkup {
	text := "❌ Cancel"
	if len(label) > 0 && label[0] != "" {
		text = label[0]
	}
	return InlineButtonsRows([]InlineBtn{{Text: text, Unique: unique, Data: "cancel"}})
}
