// Package router turns a Registry into telebot routes and logs one
// handler.handled summary per update.
package router

import (
	tg "github.com/m3rciful/pointshop/core/telegram"
	"github.com/m3rciful/pointshop/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

// Options configures All.
type Options struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
	// Machine receives text and documents of users mid-conversation.
	Machine   FSM
	Fallbacks ui.FallbackProvider
}

// All returns the command, callback, text and document routes for reg.
func All(reg *tg.Registry, opts Options) []tg.Route {
	var text TextOptions
	var cb CallbackOptions
	if opts.Fallbacks != nil {
		text = TextOptions{UnknownText: opts.Fallbacks.UnknownText(), UnknownDocument: opts.Fallbacks.UnknownDocument()}
		cb = CallbackOptions{NotFound: opts.Fallbacks.UnknownCallback()}
	}
	routes := CommandRoutes(reg, CommandRouteOptions{AdminID: opts.AdminID, OnAdminReject: opts.OnAdminReject})
	routes = append(routes, CallbackRoute(reg, cb))
	return append(routes, TextRoutes(opts.Machine, reg, text)...)
}
