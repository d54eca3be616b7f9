package keyboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineButtonsNPerRow(t *testing.T) {
	btns := []InlineBtn{
		{Text: "Merch", Unique: "cat", Data: "merch"},
		{Text: "Gifts", Unique: "cat", Data: "gifts"},
		{Text: "Sale", Unique: "cat", Data: "sale"},
	}
	kb := InlineButtonsNPerRow(btns, 2).InlineKeyboard
	require.Len(t, kb, 2)
	assert.Len(t, kb[0], 2)
	assert.Len(t, kb[1], 1)
	assert.Equal(t, "Sale", kb[1][0].Text)
	assert.Equal(t, "cat", kb[1][0].Unique)
	assert.Equal(t, "sale", kb[1][0].Data)

	assert.Len(t, InlineButtonsNPerRow(btns, 0).InlineKeyboard, 3)
}

func TestInlineButtonsRowsSkipsEmptyRows(t *testing.T) {
	kb := InlineButtonsRows(nil, []InlineBtn{{Text: "Order", Unique: "order"}}).InlineKeyboard
	require.Len(t, kb, 1)
	assert.Equal(t, "Order", kb[0][0].Text)
}

func TestReplyButtons(t *testing.T) {
	m := ReplyButtons([]string{"🛒 Cart (2)"})
	assert.True(t, m.ResizeKeyboard)
	require.Len(t, m.ReplyKeyboard, 1)
	assert.Equal(t, "🛒 Cart (2)", m.ReplyKeyboard[0][0].Text)
}

func TestSingleCancelMarkup(t *testing.T) {
	kb := SingleCancelMarkup("auth_cancel").InlineKeyboard
	require.Len(t, kb, 1)
	assert.Equal(t, "auth_cancel", kb[0][0].Unique)
	assert.Equal(t, "cancel", kb[0][0].Data)

	kb = SingleCancelMarkup("auth_cancel", "Stop").InlineKeyboard
	assert.Equal(t, "Stop", kb[0][0].Text)
}

func TestFits(t *testing.T) {
	assert.True(t, InlineBtn{Unique: "cart_add", Data: "12345"}.Fits())
	assert.False(t, InlineBtn{Unique: "cart_add", Data: strings.Repeat("9", 60)}.Fits())
}
