// Package bot binds the storefront services to Telegram: commands, inline
// callbacks, the email prompt and the product card renderer.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/pointshop/core/logger"
	tg "github.com/m3rciful/pointshop/core/telegram"
	"github.com/m3rciful/pointshop/core/telegram/callbacks"
	"github.com/m3rciful/pointshop/core/telegram/commands"
	tghelpers "github.com/m3rciful/pointshop/core/telegram/helpers"
	"github.com/m3rciful/pointshop/core/telegram/state"
	"github.com/m3rciful/pointshop/core/telegram/ui"
	"github.com/m3rciful/pointshop/internal/cart"
	"github.com/m3rciful/pointshop/internal/catalog"
	"github.com/m3rciful/pointshop/internal/checkout"
	"github.com/m3rciful/pointshop/internal/domain"
	"github.com/m3rciful/pointshop/internal/points"
	"github.com/m3rciful/pointshop/internal/session"

	tele "gopkg.in/telebot.v4"
)

// Auth is the sign-in flow.
type Auth interface {
	Begin(ctx context.Context, userID int64) error
	Cancel(ctx context.Context, userID int64) error
	SubmitEmail(ctx context.Context, userID int64, text string) (*domain.AuthorizationRecord, error)
	Require(ctx context.Context, userID int64) (*domain.AuthorizationRecord, error)
	Logout(ctx context.Context, userID int64) error
	Balance(ctx context.Context, rec *domain.AuthorizationRecord) (points.Balance, error)
}

// Catalog is the product browser.
type Catalog interface {
	SelectCategory(ctx context.Context, userID, chatID int64, category domain.Category) error
	Navigate(ctx context.Context, userID int64, dir catalog.Direction) error
	Refresh(ctx context.Context, userID int64) error
}

// Cart is the durable cart.
type Cart interface {
	Add(ctx context.Context, userID, productID int64) (domain.CartItem, error)
	Remove(ctx context.Context, userID, productID int64) error
	Clear(ctx context.Context, userID int64) error
	Count(ctx context.Context, userID int64) (int64, error)
	View(ctx context.Context, userID int64) (cart.View, error)
}

// Checkout places orders.
type Checkout interface {
	PlaceOrder(ctx context.Context, customer checkout.Customer) (*checkout.Receipt, error)
}

// Reconciliations backs the admin commands.
type Reconciliations interface {
	ListOpen(ctx context.Context, limit int) ([]domain.ReconciliationRecord, error)
	Resolve(ctx context.Context, id string, at time.Time) error
}

// Options wires Handlers.
type Options struct {
	Auth            Auth
	Catalog         Catalog
	Cart            Cart
	Checkout        Checkout
	Sessions        session.Store
	Reconciliations Reconciliations
	Now             func() time.Time
}

// Handlers holds every Telegram handler of the shop.
type Handlers struct {
	auth     Auth
	catalog  Catalog
	cart     Cart
	checkout Checkout
	recs     Reconciliations
	machine  *state.Machine
	reg      *tg.Registry
	now      func() time.Time
}

var _ ui.FallbackProvider = (*Handlers)(nil)

// New builds Handlers. The email prompt is driven by the session stage.
func New(opts Options) *Handlers {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	h := &Handlers{
		auth:     opts.Auth,
		catalog:  opts.Catalog,
		cart:     opts.Cart,
		checkout: opts.Checkout,
		recs:     opts.Reconciliations,
		machine:  state.NewMachine(session.Tracker(opts.Sessions)),
		now:      now,
	}
	h.machine.Handle(session.StageAwaitingEmail, h.onEmail)
	return h
}

// Machine routes free text while the user is in a conversation stage.
func (h *Handlers) Machine() *state.Machine { return h.machine }

// Register adds commands, callbacks and the text fallback to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	h.reg = reg

	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: h.onStart, Description: "Open the shop"}},
		{"/cart", commands.Command{Handler: h.onCart, Description: "Show your cart"}},
		{"/login", commands.Command{Handler: h.onLogin, Description: "Sign in with your LMS email"}},
		{"/logout", commands.Command{Handler: h.onLogout, Description: "Sign out"}},
		{"/balance", commands.Command{Handler: h.onBalance, Description: "Show your points balance"}},
		{"/help", commands.Command{Handler: h.onHelp, Description: "List commands"}},
		{"/reconcile", commands.Command{Handler: h.onReconcile, Description: "List open reconciliation records", AdminOnly: true}},
		{"/resolve", commands.Command{Handler: h.onResolve, Description: "Mark a reconciliation record as fixed", AdminOnly: true}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return err
		}
	}

	cbs := map[string]tele.HandlerFunc{
		cbCategory:   h.onCategory,
		cbNav:        h.onNavigate,
		cbNoop:       callbacks.Ack,
		cbCartAdd:    h.onCartAdd,
		cbCartRemove: h.onCartRemove,
		cbCartView:   h.onCartView,
		cbCartClear:  h.onCartClear,
		cbOrder:      h.onOrder,
		cbAuthCancel: h.onAuthCancel,
	}
	for key, fn := range cbs {
		if err := reg.RegisterCallback(key, fn); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(h.UnknownCallback())
	reg.SetTextFallback(h.onText)
	return nil
}

// UnknownText implements ui.FallbackProvider.
func (h *Handlers) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendMDV2(c, textUnknownText)
	}
}

// UnknownDocument implements ui.FallbackProvider.
func (h *Handlers) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendMDV2(c, textUnknownDoc)
	}
}

// UnknownCallback implements ui.FallbackProvider.
func (h *Handlers) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return callbacks.Toast(c, toastStale)
	}
}

// OnAdminReject answers non-admins calling admin commands.
func (h *Handlers) OnAdminReject(c tele.Context) error {
	return tghelpers.SendMDV2(c, textNotAdmin)
}

// OnRateLimited answers throttled updates.
func (h *Handlers) OnRateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return callbacks.Toast(c, toastRateLimited)
	}
	return nil
}

// onText handles free text outside any conversation stage.
func (h *Handlers) onText(c tele.Context) error {
	if isCartButton(c.Text()) {
		return h.onCart(c)
	}
	return h.UnknownText()(c)
}

func send(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return c.Send(text, &tele.SendOptions{ParseMode: tele.ModeMarkdownV2, ReplyMarkup: markup})
}

// sendMenu shows the category picker.
func (h *Handlers) sendMenu(c tele.Context) error {
	return send(c, textMenu, menuKeyboard())
}

// sendCartCount refreshes the persistent cart button.
func (h *Handlers) sendCartCount(ctx context.Context, c tele.Context, text string) error {
	n, err := h.cart.Count(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	if text == "" {
		text = cartUpdatedText(n)
	}
	return send(c, text, cartReplyKeyboard(n))
}

// promptEmail starts the sign-in flow.
func (h *Handlers) promptEmail(ctx context.Context, c tele.Context) error {
	if err := h.auth.Begin(ctx, c.Sender().ID); err != nil {
		return h.fail(ctx, c, "auth.begin", err)
	}
	_ = callbacks.Ack(c)
	return send(c, textEnterEmail, emailPromptKeyboard())
}

// fail tells the user to retry later and returns err for the handler log.
func (h *Handlers) fail(ctx context.Context, c tele.Context, op string, err error) error {
	logger.TG.LogAttrs(ctx, slog.LevelError, op,
		slog.String("status", "fail"),
		slog.Int64("user_id", c.Sender().ID),
		slog.String("err", err.Error()),
	)
	if c.Callback() != nil {
		_ = callbacks.Ack(c)
	}
	if sendErr := send(c, textTryLater, nil); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return err
}

func customerOf(u *tele.User) checkout.Customer {
	return checkout.Customer{
		TelegramID: u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
	}
}
