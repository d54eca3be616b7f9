// Package checkout places orders. An order is a saga without a database
// transaction:
//
//	validate cart -> check balance -> debit points -> decrement stock -> notify -> clear cart
//
// Everything before the debit aborts cleanly. The debit is the point of no
// return: later failures are logged, counted and written as reconciliation
// records for an operator, never rolled back.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/pointshop/core/logger"
	"github.com/m3rciful/pointshop/internal/cart"
	"github.com/m3rciful/pointshop/internal/domain"
	"github.com/m3rciful/pointshop/internal/points"
	"github.com/m3rciful/pointshop/internal/telemetry"
)

// Authorizer returns the valid authorization record of a user.
type Authorizer interface {
	Require(ctx context.Context, userID int64) (*domain.AuthorizationRecord, error)
}

// Cart is the part of the cart table checkout needs.
type Cart interface {
	Lines(ctx context.Context, userID int64) ([]domain.CartLine, error)
	Clear(ctx context.Context, userID int64) error
}

// Stock decrements remaining units, failing when fewer than qty remain.
type Stock interface {
	DecrementStock(ctx context.Context, productID, qty int64) error
}

// Wallet is the points provider.
type Wallet interface {
	Points(ctx context.Context, externalUserID string) (points.Balance, error)
	Withdraw(ctx context.Context, externalUserID string, amount int64, reason string) error
}

// Reconciliations stores records of post-debit failures.
type Reconciliations interface {
	Insert(ctx context.Context, rec domain.ReconciliationRecord) error
}

// Notifier delivers order summaries.
type Notifier interface {
	NotifyOrder(ctx context.Context, order Order) error
}

// Customer identifies the Telegram user placing the order.
type Customer struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// Line is one validated order line priced at the current product price.
type Line struct {
	ProductID int64
	Name      string
	Size      string
	Quantity  int64
	UnitPrice int64
}

// Amount is Quantity * UnitPrice.
func (l Line) Amount() int64 { return l.Quantity * l.UnitPrice }

// Receipt is returned to the buyer after a successful order.
type Receipt struct {
	OrderID string
	Lines   []Line
	Total   int64
	// Balance is the balance read before the debit minus Total.
	Balance int64
}

// Order is what notifiers receive.
type Order struct {
	Receipt
	Customer Customer
	Email    string
	// ExternalUserID is the provider identity that was debited.
	ExternalUserID string
	PlacedAt       time.Time
}

// Options wires a Coordinator.
type Options struct {
	Auth            Authorizer
	Cart            Cart
	Stock           Stock
	Wallet          Wallet
	Reconciliations Reconciliations
	Notifier        Notifier
	Metrics         *telemetry.Metrics
	// Reason tags every withdrawal.
	Reason string
	Now    func() time.Time
	NewID  func() string
}

// Coordinator runs the checkout saga.
type Coordinator struct {
	auth     Authorizer
	cart     Cart
	stock    Stock
	wallet   Wallet
	recon    Reconciliations
	notifier Notifier
	metrics  *telemetry.Metrics
	reason   string
	now      func() time.Time
	newID    func() string
}

// NewCoordinator builds a Coordinator from opts.
func NewCoordinator(opts Options) *Coordinator {
	c := &Coordinator{
		auth:     opts.Auth,
		cart:     opts.Cart,
		stock:    opts.Stock,
		wallet:   opts.Wallet,
		recon:    opts.Reconciliations,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		reason:   opts.Reason,
		now:      opts.Now,
		newID:    opts.NewID,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = func() string { return uuid.NewString() }
	}
	return c
}

// PlaceOrder validates the cart of customer and, if everything checks out,
// debits the points and completes the order.
func (c *Coordinator) PlaceOrder(ctx context.Context, customer Customer) (receipt *Receipt, err error) {
	start := time.Now()
	defer func() {
		c.metrics.Order(resultCode(err))
		c.logResult(ctx, start, receipt, err)
	}()

	rec, err := c.auth.Require(ctx, customer.TelegramID)
	if err != nil {
		return nil, err
	}

	lines, total, err := c.validate(ctx, customer.TelegramID)
	if err != nil {
		return nil, err
	}

	balance, err := c.wallet.Points(ctx, rec.ExternalUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBalanceUnavailable, err)
	}
	if !balance.Known {
		return nil, ErrBalanceUnavailable
	}
	if balance.Points < total {
		return nil, &InsufficientFundsError{Balance: balance.Points, Total: total}
	}

	orderID := c.newID()
	ctx = logger.WithOrderID(ctx, orderID)
	order := Order{
		Receipt: Receipt{
			OrderID: orderID,
			Lines:   lines,
			Total:   total,
			Balance: balance.Points - total,
		},
		Customer:       customer,
		Email:          rec.Email,
		ExternalUserID: rec.ExternalUserID,
		PlacedAt:       c.now(),
	}

	// The provider refuses zero withdrawals; a free order has nothing to debit.
	if total > 0 {
		if err := c.wallet.Withdraw(ctx, rec.ExternalUserID, total, c.reason); err != nil {
			if points.IsUncertain(err) {
				c.reconcile(ctx, order, domain.StepDebitUncertain, nil, 0, err)
			}
			return nil, fmt.Errorf("%w: %w", ErrDebitFailed, err)
		}
	}

	// Past this point nothing aborts the order, not even the caller going away.
	ctx = context.WithoutCancel(ctx)
	for _, l := range lines {
		if err := c.stock.DecrementStock(ctx, l.ProductID, l.Quantity); err != nil {
			pid := l.ProductID
			c.reconcile(ctx, order, domain.StepStockDecrement, &pid, l.Quantity, err)
		}
	}

	if c.notifier != nil {
		if err := c.notifier.NotifyOrder(ctx, order); err != nil {
			logger.SVCCheckout.LogAttrs(ctx, slog.LevelWarn, "checkout.notify",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}

	if err := c.cart.Clear(ctx, customer.TelegramID); err != nil {
		c.reconcile(ctx, order, domain.StepCartClear, nil, 0, err)
	}

	return &order.Receipt, nil
}

// validate loads the cart and runs every pre-debit check.
func (c *Coordinator) validate(ctx context.Context, userID int64) ([]Line, int64, error) {
	cartLines, err := c.cart.Lines(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if len(cartLines) == 0 {
		return nil, 0, cart.ErrCartEmpty
	}

	for _, l := range cartLines {
		if l.Product == nil {
			return nil, 0, ErrStaleCart
		}
	}

	var short []Shortage
	lines := make([]Line, 0, len(cartLines))
	var total int64
	for _, l := range cartLines {
		p := l.Product
		if l.Quantity > p.Remains {
			short = append(short, Shortage{ProductID: p.ID, Name: p.Name, Requested: l.Quantity, Available: p.Remains})
			continue
		}
		line := Line{ProductID: p.ID, Name: p.Name, Size: p.Size, Quantity: l.Quantity, UnitPrice: p.Price}
		lines = append(lines, line)
		total += line.Amount()
	}
	if len(short) > 0 {
		return nil, 0, &ShortageError{Lines: short}
	}
	return lines, total, nil
}

func (c *Coordinator) reconcile(ctx context.Context, order Order, step string, productID *int64, qty int64, cause error) {
	c.metrics.PostDebitFailure(step)
	rec := domain.ReconciliationRecord{
		ID:             c.newID(),
		OrderID:        order.OrderID,
		TelegramID:     order.Customer.TelegramID,
		ExternalUserID: order.ExternalUserID,
		Step:           step,
		ProductID:      productID,
		Quantity:       qty,
		Amount:         order.Total,
		Detail:         cause.Error(),
		CreatedAt:      c.now(),
	}
	attrs := []slog.Attr{
		slog.String("status", "fail"),
		slog.String("order_id", order.OrderID),
		slog.String("step", step),
		slog.String("record_id", rec.ID),
		slog.Int64("total", order.Total),
		slog.String("err", cause.Error()),
	}
	if productID != nil {
		attrs = append(attrs, slog.Int64("product_id", *productID), slog.Int64("qty", qty))
	}
	logger.SVCCheckout.LogAttrs(ctx, slog.LevelError, "checkout.reconcile", attrs...)

	if c.recon == nil {
		return
	}
	// The user's context may be cancelled by now; the record must still land.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.recon.Insert(wctx, rec); err != nil {
		logger.SVCCheckout.LogAttrs(ctx, slog.LevelError, "checkout.reconcile",
			slog.String("status", "fail"),
			slog.String("order_id", order.OrderID),
			slog.String("record_id", rec.ID),
			slog.String("err", errors.Join(cause, err).Error()),
		)
	}
}

func (c *Coordinator) logResult(ctx context.Context, start time.Time, receipt *Receipt, err error) {
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("reason", resultCode(err)), slog.String("err", err.Error()))
	} else {
		attrs = append(attrs,
			slog.String("order_id", receipt.OrderID),
			slog.Int64("total", receipt.Total),
			slog.Int("lines", len(receipt.Lines)),
		)
	}
	logger.SVCCheckout.LogAttrs(ctx, level, "checkout.place_order", attrs...)
}
