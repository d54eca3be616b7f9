// Package ui holds contracts between the routers and the application's
// user-facing replies.
package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider answers updates no command, callback or conversation claimed.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}
