package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/pointshop/core/logger"
	"github.com/m3rciful/pointshop/core/telegram/format"
	"github.com/m3rciful/pointshop/internal/catalog"

	tele "gopkg.in/telebot.v4"
)

// API is the part of *tele.Bot the renderer talks to.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	EditMedia(msg tele.Editable, media tele.Inputtable, opts ...interface{}) (*tele.Message, error)
}

// CardRenderer draws product cards. With a placeholder image every card is
// a photo message; without one cards are text messages and product images
// are attached as link previews. A chat never mixes both kinds, so a card
// can always be edited in place.
type CardRenderer struct {
	api         API
	placeholder string
}

var _ catalog.Renderer = (*CardRenderer)(nil)

// NewCardRenderer returns a renderer sending through api.
func NewCardRenderer(api API, placeholder string) *CardRenderer {
	return &CardRenderer{api: api, placeholder: strings.TrimSpace(placeholder)}
}

func (r *CardRenderer) photoMode() bool { return r.placeholder != "" }

// ShowCard implements catalog.Renderer.
func (r *CardRenderer) ShowCard(ctx context.Context, chatID int64, card catalog.Card) (int, error) {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2, ReplyMarkup: cardKeyboard(card)}
	var what interface{} = r.text(card)
	if r.photoMode() {
		what = r.photo(card)
	}
	msg, err := r.api.Send(tele.ChatID(chatID), what, opts)
	if err != nil {
		logRender(ctx, "render.show", card, err)
		return 0, fmt.Errorf("send card: %w", err)
	}
	return msg.ID, nil
}

// EditCard implements catalog.Renderer.
func (r *CardRenderer) EditCard(ctx context.Context, chatID int64, messageID int, card catalog.Card) error {
	target := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2, ReplyMarkup: cardKeyboard(card)}
	var err error
	if r.photoMode() {
		_, err = r.api.EditMedia(target, r.photo(card), opts)
	} else {
		_, err = r.api.Edit(target, r.text(card), opts)
	}
	if err == nil || notModified(err) {
		return nil
	}
	logRender(ctx, "render.edit", card, err)
	return fmt.Errorf("edit card: %w", err)
}

func (r *CardRenderer) photo(card catalog.Card) *tele.Photo {
	src := r.placeholder
	if card.Product.ImageURL != nil && strings.TrimSpace(*card.Product.ImageURL) != "" {
		src = strings.TrimSpace(*card.Product.ImageURL)
	}
	return &tele.Photo{File: fileFrom(src), Caption: cardCaption(card)}
}

func (r *CardRenderer) text(card catalog.Card) string {
	caption := cardCaption(card)
	if card.Product.ImageURL == nil || strings.TrimSpace(*card.Product.ImageURL) == "" {
		return caption
	}
	// Invisible link so the client shows the image as a preview.
	return format.Link("\u200b", *card.Product.ImageURL) + caption
}

// fileFrom accepts a URL or a Telegram file id.
func fileFrom(src string) tele.File {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return tele.FromURL(src)
	}
	return tele.File{FileID: src}
}

// notModified matches Telegram's answer to an edit that changes nothing.
func notModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

func logRender(ctx context.Context, event string, card catalog.Card, err error) {
	logger.TG.LogAttrs(ctx, slog.LevelWarn, event,
		slog.String("status", "fail"),
		slog.Int64("product_id", card.Product.ID),
		slog.String("err", err.Error()),
	)
}
