package router

import (
	"context"

	tg "github.com/m3rciful/pointshop/core/telegram"
	tghelpers "github.com/m3rciful/pointshop/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// FSM routes free input for users in the middle of a conversation.
type FSM interface {
	InProgress(ctx context.Context, userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions supplies replies for input nothing else claimed.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes routes plain text and documents. Text goes to the active
// conversation first, then to a command typed as text, then to the
// registry fallback and finally to UnknownText.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	inConversation := func(c tele.Context) bool {
		return fsm != nil && c.Sender() != nil && fsm.InProgress(tghelpers.BuildContext(c), c.Sender().ID)
	}

	onText := func(c tele.Context) error {
		if inConversation(c) {
			return handle(c, "fsm", fsm.ManagerHandler)
		}
		if reg != nil {
			if name, cmd, ok := reg.LookupCommand(c.Text()); ok && !cmd.AdminOnly {
				return handle(c, handlerName(name), cmd.Handler)
			}
			if fb := reg.TextFallback(); fb != nil {
				return handle(c, "fallback", fb)
			}
		}
		if opts.UnknownText != nil {
			return handle(c, "unknown_text", opts.UnknownText)
		}
		skip(c, "unknown_text")
		return nil
	}

	onDocument := func(c tele.Context) error {
		if inConversation(c) {
			return handle(c, "fsm_document", fsm.ManagerHandler)
		}
		if opts.UnknownDocument != nil {
			return handle(c, "unexpected_document", opts.UnknownDocument)
		}
		skip(c, "unexpected_document")
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: onText},
		{Endpoint: tele.OnDocument, Handler: onDocument},
	}
}
