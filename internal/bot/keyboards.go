package bot

import (
	"strconv"

	"github.com/m3rciful/pointshop/core/telegram/keyboard"
	"github.com/m3rciful/pointshop/internal/catalog"
	"github.com/m3rciful/pointshop/internal/domain"

	tele "gopkg.in/telebot.v4"
)

// Callback keys. The payload follows the key after "|".
const (
	cbCategory   = "cat"
	cbNav        = "nav"
	cbNoop       = "noop"
	cbCartAdd    = "cart_add"
	cbCartRemove = "cart_remove"
	cbCartView   = "cart_view"
	cbCartClear  = "cart_clear"
	cbOrder      = "order"
	cbAuthCancel = "auth_cancel"
)

func menuKeyboard() *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		buttons = append(buttons, keyboard.InlineBtn{Text: c.Title(), Unique: cbCategory, Data: string(c)})
	}
	return keyboard.InlineButtonsNPerRow(buttons, 2)
}

// cardKeyboard offers Remove only for products already in the cart.
func cardKeyboard(card catalog.Card) *tele.ReplyMarkup {
	id := strconv.FormatInt(card.Product.ID, 10)
	pager := []keyboard.InlineBtn{
		{Text: "◀", Unique: cbNav, Data: string(catalog.Prev)},
		{Text: strconv.Itoa(card.Index+1) + "/" + strconv.Itoa(card.Total), Unique: cbNoop},
		{Text: "▶", Unique: cbNav, Data: string(catalog.Next)},
	}
	actions := []keyboard.InlineBtn{{Text: "➕ Add to cart", Unique: cbCartAdd, Data: id}}
	if card.InCart > 0 {
		actions = append(actions, keyboard.InlineBtn{Text: "➖ Remove", Unique: cbCartRemove, Data: id})
	}
	footer := []keyboard.InlineBtn{
		{Text: "🛒 Cart", Unique: cbCartView},
		{Text: "↩ Back", Unique: cbNav, Data: string(catalog.Back)},
	}
	return keyboard.InlineButtonsRows(pager, actions, footer)
}

func cartKeyboard(orderable bool) *tele.ReplyMarkup {
	row := []keyboard.InlineBtn{{Text: "🗑 Clear", Unique: cbCartClear}}
	if orderable {
		row = append([]keyboard.InlineBtn{{Text: "✅ Order", Unique: cbOrder}}, row...)
	}
	return keyboard.InlineButtonsRows(row)
}

// cartReplyKeyboard is the persistent keyboard with the cart button.
func cartReplyKeyboard(n int64) *tele.ReplyMarkup {
	return keyboard.ReplyButtons([]string{cartButtonLabel(n)})
}

func emailPromptKeyboard() *tele.ReplyMarkup {
	return keyboard.SingleCancelMarkup(cbAuthCancel)
}
