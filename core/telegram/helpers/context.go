// Package helpers bridges telebot contexts and the rest of the core: the
// correlation context carried into services, and reply helpers.
package helpers

import (
	"context"

	"github.com/m3rciful/pointshop/core/logger"

	tele "gopkg.in/telebot.v4"
)

const contextKey = "logger_ctx"

// NewContext derives a correlation context from the update: request id,
// update, user and chat ids, and the tg component logger.
func NewContext(c tele.Context) context.Context {
	var userID, chatID int64
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	updateID := c.Update().ID

	ctx := logger.WithRID(context.Background(), logger.BuildRID(updateID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	return logger.WithLogger(ctx, logger.TG)
}

// StoreContext caches ctx on c for later helpers and returns it.
func StoreContext(c tele.Context, ctx context.Context) context.Context {
	if c != nil && ctx != nil {
		c.Set(contextKey, ctx)
	}
	return ctx
}

// BuildContext returns the cached correlation context of c, creating it
// on first use.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(contextKey).(context.Context); ok {
		return ctx
	}
	return StoreContext(c, NewContext(c))
}

// WithHandler tags the cached context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	return StoreContext(c, logger.WithHandler(ctx, handler))
}
