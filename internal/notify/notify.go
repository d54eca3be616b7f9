// Package notify delivers order summaries to the shop administrator by
// Telegram message and by email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/pointshop/core/logger"
	"github.com/m3rciful/pointshop/core/telegram/sender"
	"github.com/m3rciful/pointshop/internal/checkout"
	"github.com/m3rciful/pointshop/internal/telemetry"
)

// Channel names used in metrics and logs.
const (
	ChannelChat  = "chat"
	ChannelEmail = "email"
)

// Queue runs jobs asynchronously, e.g. *sender.Dispatcher.
type Queue interface {
	Enqueue(ctx context.Context, action, endpoint string, run sender.Job) error
}

// deliver runs job through q, or inline when q is missing or refuses it.
func deliver(ctx context.Context, q Queue, metrics *telemetry.Metrics, channel, action string, job func(context.Context) error) error {
	ctx = context.WithoutCancel(ctx)
	run := func(ctx context.Context) error {
		err := job(ctx)
		metrics.Notification(channel, err)
		return err
	}
	if q == nil {
		return run(ctx)
	}
	err := q.Enqueue(ctx, action, channel, run)
	if err == nil {
		return nil
	}
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Notify.LogAttrs(ctx, slog.LevelWarn, "notify.queue",
			slog.String("status", "fail"),
			slog.String("reason", "sent inline"),
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run(ctx)
	}
	metrics.Notification(channel, err)
	return err
}

// Fanout sends each order to every notifier and joins their errors.
type Fanout []checkout.Notifier

// NotifyOrder implements checkout.Notifier.
func (f Fanout) NotifyOrder(ctx context.Context, o checkout.Order) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.NotifyOrder(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Summary renders the plain-text order summary used by both channels.
func Summary(o checkout.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New order %s from %s\n", o.OrderID, customerName(o.Customer))
	if o.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", o.Email)
	}
	fmt.Fprintf(&b, "Telegram ID: %d\n\n", o.Customer.TelegramID)
	for _, l := range o.Lines {
		name := l.Name
		if l.Size != "" {
			name += " (" + l.Size + ")"
		}
		fmt.Fprintf(&b, "- %s x%d = %d\n", name, l.Quantity, l.Amount())
	}
	fmt.Fprintf(&b, "\nTotal: %d points\n", o.Total)
	fmt.Fprintf(&b, "Placed at: %s", o.PlacedAt.UTC().Format("2006-01-02 15:04 MST"))
	return b.String()
}

func customerName(c checkout.Customer) string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	switch {
	case name != "" && c.Username != "":
		return fmt.Sprintf("%s (@%s)", name, c.Username)
	case c.Username != "":
		return "@" + c.Username
	case name != "":
		return name
	}
	return fmt.Sprintf("user %d", c.TelegramID)
}
