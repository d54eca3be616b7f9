package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	keyLogger ctxKey = iota
	keyRID
	keyUpdate
	keyHandler
	keyOrder
)

// updateMeta identifies the Telegram update being handled.
type updateMeta struct {
	updateID int
	userID   int64
	chatID   int64
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func with(ctx context.Context, k ctxKey, v any) context.Context {
	return context.WithValue(orBackground(ctx), k, v)
}

func value[T any](ctx context.Context, k ctxKey) T {
	var zero T
	if ctx == nil {
		return zero
	}
	v, _ := ctx.Value(k).(T)
	return v
}

// WithLogger stores log in ctx for FromContext.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if log == nil {
		return orBackground(ctx)
	}
	return with(ctx, keyLogger, log)
}

// FromContext returns the logger stored in ctx, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if l := value[*slog.Logger](ctx, keyLogger); l != nil {
		return l
	}
	return L
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return with(ctx, keyRID, rid)
}

func RIDFrom(ctx context.Context) string {
	return value[string](ctx, keyRID)
}

// WithUpdateMeta attaches the identifiers of the update being handled.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return with(ctx, keyUpdate, updateMeta{updateID: updateID, userID: userID, chatID: chatID})
}

func UpdateIDFrom(ctx context.Context) int {
	return value[updateMeta](ctx, keyUpdate).updateID
}

// UserIDFrom returns the Telegram user id of the update in ctx.
func UserIDFrom(ctx context.Context) int64 {
	return value[updateMeta](ctx, keyUpdate).userID
}

func ChatIDFrom(ctx context.Context) int64 {
	return value[updateMeta](ctx, keyUpdate).chatID
}

// WithHandler records which handler is running.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return orBackground(ctx)
	}
	return with(ctx, keyHandler, handler)
}

func HandlerFrom(ctx context.Context) string {
	return value[string](ctx, keyHandler)
}

// WithOrderID tags everything logged under ctx with the order being placed,
// including notification jobs that outlive the update.
func WithOrderID(ctx context.Context, orderID string) context.Context {
	return with(ctx, keyOrder, orderID)
}

func OrderIDFrom(ctx context.Context) string {
	return value[string](ctx, keyOrder)
}
