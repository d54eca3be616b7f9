package notify

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/pointshop/internal/checkout"
	"github.com/m3rciful/pointshop/internal/telemetry"
)

// Bot is the subset of *tele.Bot used to message the administrator.
type Bot interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Chat messages the admin chat about every order.
type Chat struct {
	bot     Bot
	adminID int64
	queue   Queue
	metrics *telemetry.Metrics
}

// NewChat returns a Chat notifier. queue may be nil for synchronous sends.
func NewChat(bot Bot, adminID int64, queue Queue, metrics *telemetry.Metrics) *Chat {
	return &Chat{bot: bot, adminID: adminID, queue: queue, metrics: metrics}
}

// NotifyOrder implements checkout.Notifier.
func (c *Chat) NotifyOrder(ctx context.Context, o checkout.Order) error {
	text := Summary(o)
	to := tele.ChatID(c.adminID)
	return deliver(ctx, c.queue, c.metrics, ChannelChat, "notify.order", func(context.Context) error {
		_, err := c.bot.Send(to, text, &tele.SendOptions{DisableWebPagePreview: true})
		return err
	})
}
