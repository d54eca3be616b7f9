package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/pointshop/core/logger"
	"github.com/m3rciful/pointshop/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/pointshop/core/telegram/helpers"
	"github.com/m3rciful/pointshop/internal/auth"
	"github.com/m3rciful/pointshop/internal/cart"
	"github.com/m3rciful/pointshop/internal/catalog"
	"github.com/m3rciful/pointshop/internal/checkout"
	"github.com/m3rciful/pointshop/internal/domain"
	"github.com/m3rciful/pointshop/internal/points"

	tele "gopkg.in/telebot.v4"
)

func (h *Handlers) onCategory(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	category, ok := domain.ParseCategory(callbacks.Payload(c))
	if !ok {
		return callbacks.Toast(c, toastStale)
	}
	err := h.catalog.SelectCategory(ctx, c.Sender().ID, c.Chat().ID, category)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrNotAuthorized):
		return h.promptEmail(ctx, c)
	case errors.Is(err, catalog.ErrNoProducts):
		return callbacks.Toast(c, toastNoProducts)
	}
	return h.fail(ctx, c, "catalog.select", err)
}

func (h *Handlers) onNavigate(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	dir, ok := catalog.ParseDirection(callbacks.Payload(c))
	if !ok {
		return callbacks.Toast(c, toastStale)
	}
	err := h.catalog.Navigate(ctx, c.Sender().ID, dir)
	switch {
	case errors.Is(err, catalog.ErrSelectionChanged):
		return h.selectionChanged(c)
	case err != nil:
		return h.fail(ctx, c, "catalog.navigate", err)
	}
	if dir != catalog.Back {
		return nil
	}
	if err := c.Delete(); err != nil {
		logger.TG.LogAttrs(ctx, slog.LevelDebug, "card.delete",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return h.sendMenu(c)
}

func (h *Handlers) onCartAdd(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	productID, err := callbacks.ID(c)
	if err != nil {
		return callbacks.Toast(c, toastStale)
	}
	_, err = h.cart.Add(ctx, c.Sender().ID, productID)
	switch {
	case errors.Is(err, cart.ErrOutOfStock):
		return callbacks.Alert(c, toastOutOfStock)
	case errors.Is(err, cart.ErrUnknownProduct):
		return callbacks.Alert(c, toastGone)
	case err != nil:
		return h.fail(ctx, c, "cart.add", err)
	}
	_ = callbacks.Toast(c, toastAdded)
	return h.afterCartChange(ctx, c)
}

func (h *Handlers) onCartRemove(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	productID, err := callbacks.ID(c)
	if err != nil {
		return callbacks.Toast(c, toastStale)
	}
	if err := h.cart.Remove(ctx, c.Sender().ID, productID); err != nil {
		return h.fail(ctx, c, "cart.remove", err)
	}
	_ = callbacks.Toast(c, toastRemoved)
	return h.afterCartChange(ctx, c)
}

// afterCartChange redraws the card and the cart button.
func (h *Handlers) afterCartChange(ctx context.Context, c tele.Context) error {
	err := h.catalog.Refresh(ctx, c.Sender().ID)
	switch {
	case errors.Is(err, catalog.ErrSelectionChanged):
		return h.selectionChanged(c)
	case err != nil:
		logger.TG.LogAttrs(ctx, slog.LevelWarn, "card.refresh",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return h.sendCartCount(ctx, c, "")
}

func (h *Handlers) selectionChanged(c tele.Context) error {
	_ = callbacks.Ack(c)
	return send(c, textSelection, menuKeyboard())
}

func (h *Handlers) onCart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	v, err := h.cart.View(ctx, c.Sender().ID)
	switch {
	case errors.Is(err, cart.ErrCartEmpty):
		return send(c, textCartEmpty, menuKeyboard())
	case err != nil:
		return h.fail(ctx, c, "cart.view", err)
	}
	return send(c, cartText(v), cartKeyboard(!v.Stale))
}

func (h *Handlers) onCartView(c tele.Context) error {
	_ = callbacks.Ack(c)
	return h.onCart(c)
}

func (h *Handlers) onCartClear(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if err := h.cart.Clear(ctx, c.Sender().ID); err != nil {
		return h.fail(ctx, c, "cart.clear", err)
	}
	_ = callbacks.Ack(c)
	if err := c.Edit(textCartCleared, &tele.SendOptions{ParseMode: tele.ModeMarkdownV2}); err != nil && !notModified(err) {
		logger.TG.LogAttrs(ctx, slog.LevelDebug, "cart.edit",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	if err := h.sendCartCount(ctx, c, ""); err != nil {
		return h.fail(ctx, c, "cart.count", err)
	}
	return h.sendMenu(c)
}

func (h *Handlers) onOrder(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	receipt, err := h.checkout.PlaceOrder(ctx, customerOf(c.Sender()))
	if err != nil {
		return h.orderFailed(ctx, c, err)
	}
	_ = callbacks.Ack(c)
	// The old card must not react to taps once the order went through.
	if err := h.catalog.Navigate(ctx, c.Sender().ID, catalog.Back); err != nil {
		logger.TG.LogAttrs(ctx, slog.LevelWarn, "catalog.leave",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	if err := c.Edit(textOrderSent,&tele.SendOptions{ParseMode: tele.ModeMarkdownV2}); err != nil && !notModified(err) {
		logger.TG.LogAttrs(ctx, slog.LevelDebug, "cart.edit",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	if err := send(c, receiptText(receipt), cartReplyKeyboard(0)); err != nil {
		return err
	}
	return h.sendMenu(c)
}

func (h *Handlers) orderFailed(ctx context.Context, c tele.Context, err error) error {
	var (
		short *checkout.ShortageError
		funds *checkout.InsufficientFundsError
	)
	switch {
	case errors.Is(err, auth.ErrNotAuthorized):
		return h.promptEmail(ctx, c)
	case errors.Is(err, cart.ErrCartEmpty):
		_ = callbacks.Ack(c)
		return send(c, textCartEmpty, menuKeyboard())
	case errors.Is(err, checkout.ErrStaleCart):
		_ = callbacks.Ack(c)
		return send(c, textStaleCart, cartKeyboard(false))
	case errors.As(err, &short):
		_ = callbacks.Ack(c)
		return send(c, shortageText(short), nil)
	case errors.As(err, &funds):
		_ = callbacks.Ack(c)
		return send(c, fundsText(funds), nil)
	case errors.Is(err, checkout.ErrBalanceUnavailable):
		_ = callbacks.Ack(c)
		return send(c, textNoBalance, nil)
	case errors.Is(err, checkout.ErrDebitFailed):
		_ = callbacks.Ack(c)
		text := textDebitFailed
		if points.IsUncertain(err) {
			text = textDebitUncertain
		}
		if sendErr := send(c, text, nil); sendErr != nil {
			return errors.Join(err, sendErr)
		}
		return err
	}
	return h.fail(ctx, c, "checkout", err)
}
