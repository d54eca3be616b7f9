package router

import (
	"log/slog"

	tg "github.com/m3rciful/pointshop/core/telegram"
	"github.com/m3rciful/pointshop/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions supplies the handler for unknown keys when the registry has none.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every inline button press by its unique key.
// A callback left unanswered by its handler is acked afterwards so the
// client drops the loading spinner.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler: func(c tele.Context) error {
			if c.Callback() == nil {
				return nil
			}
			defer func() { _ = callbacks.Ack(c) }()

			key, _ := callbacks.Split(c.Callback())
			name := "callback." + handlerName(key)
			if h, ok := reg.GetCallback(key); ok {
				return handle(c, name, h, slog.String("cb_key", key))
			}

			notFound := reg.CallbackNotFound()
			if notFound == nil {
				notFound = opts.NotFound
			}
			if notFound == nil {
				skip(c, name)
				return nil
			}
			return handle(c, name, notFound, slog.String("cb_key", key), slog.String("reason", "not_found"))
		},
	}
}
