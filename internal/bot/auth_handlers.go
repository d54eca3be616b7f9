package bot

import (
	"context"
	"errors"

	"github.com/m3rciful/pointshop/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/pointshop/core/telegram/helpers"
	"github.com/m3rciful/pointshop/internal/auth"
	"github.com/m3rciful/pointshop/internal/domain"
	"github.com/m3rciful/pointshop/internal/points"

	tele "gopkg.in/telebot.v4"
)

func (h *Handlers) onStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	rec, err := h.auth.Require(ctx, c.Sender().ID)
	if errors.Is(err, auth.ErrNotAuthorized) {
		return h.promptEmail(ctx, c)
	}
	if err != nil {
		return h.fail(ctx, c, "start.auth", err)
	}
	return h.greet(ctx, c, rec, false)
}

func (h *Handlers) onLogin(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	rec, err := h.auth.Require(ctx, c.Sender().ID)
	if errors.Is(err, auth.ErrNotAuthorized) {
		return h.promptEmail(ctx, c)
	}
	if err != nil {
		return h.fail(ctx, c, "login.auth", err)
	}
	return send(c, signedInText(rec), nil)
}

func (h *Handlers) onLogout(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if err := h.auth.Logout(ctx, c.Sender().ID); err != nil {
		return h.fail(ctx, c, "logout", err)
	}
	return send(c, textLoggedOut, nil)
}

func (h *Handlers) onBalance(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	rec, err := h.auth.Require(ctx, c.Sender().ID)
	if errors.Is(err, auth.ErrNotAuthorized) {
		return h.promptEmail(ctx, c)
	}
	if err != nil {
		return h.fail(ctx, c, "balance.auth", err)
	}
	bal, err := h.auth.Balance(ctx, rec)
	if err != nil {
		return h.fail(ctx, c, "balance.read", err)
	}
	return send(c, balanceText(bal), nil)
}

func (h *Handlers) onAuthCancel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if err := h.auth.Cancel(ctx, c.Sender().ID); err != nil {
		return h.fail(ctx, c, "auth.cancel", err)
	}
	_ = callbacks.Ack(c)
	return c.Edit(textLoginCancelled, &tele.SendOptions{ParseMode: tele.ModeMarkdownV2})
}

// onEmail handles text while the user is asked for an email. The cart
// button keeps working and does not end the prompt.
func (h *Handlers) onEmail(c tele.Context) error {
	if isCartButton(c.Text()) {
		return h.onCart(c)
	}
	ctx := tghelpers.BuildContext(c)
	rec, err := h.auth.SubmitEmail(ctx, c.Sender().ID, c.Text())
	switch {
	case errors.Is(err, auth.ErrInvalidEmail):
		return send(c, textInvalidEmail, emailPromptKeyboard())
	case errors.Is(err, auth.ErrEmailNotFound):
		return send(c, textEmailNotFound, emailPromptKeyboard())
	case errors.Is(err, points.ErrDirectoryUnavailable):
		return send(c, textDirectoryDown, emailPromptKeyboard())
	case err != nil:
		return h.fail(ctx, c, "auth.submit", err)
	}
	return h.greet(ctx, c, rec, true)
}

// greet welcomes a signed-in user, optionally with the balance, and opens the menu.
func (h *Handlers) greet(ctx context.Context, c tele.Context, rec *domain.AuthorizationRecord, withBalance bool) error {
	text := welcomeText(rec)
	if withBalance {
		if bal, err := h.auth.Balance(ctx, rec); err == nil {
			text += "\n" + balanceText(bal)
		}
	}
	if err := h.sendCartCount(ctx, c, text); err != nil {
		return h.fail(ctx, c, "greet", err)
	}
	return h.sendMenu(c)
}
