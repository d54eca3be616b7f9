package middleware

import (
	tele "gopkg.in/telebot.v4"
)

// Reply kinds reported to ReplyObserver.
const (
	ReplySend    = "send"
	ReplyEdit    = "edit"
	ReplyRespond = "respond"
	ReplyDelete  = "delete"
)

const countersKey = "reply_counters"

// ReplyObserver is told about every successful reply a handler makes.
type ReplyObserver func(kind string, keyboard bool)

type replyCounters struct {
	messages int
	keyboard bool
}

// countingContext wraps tele.Context to count the replies of one update.
type countingContext struct {
	tele.Context
	counters *replyCounters
	observe  ReplyObserver
}

func (m countingContext) done(err error, kind string, opts []interface{}) error {
	if err != nil {
		return err
	}
	kb := hasKeyboard(opts)
	m.counters.messages++
	m.counters.keyboard = m.counters.keyboard || kb
	if m.observe != nil {
		m.observe(kind, kb)
	}
	return nil
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (m countingContext) Send(what interface{}, opts ...interface{}) error {
	return m.done(m.Context.Send(what, opts...), ReplySend, opts)
}

func (m countingContext) Reply(what interface{}, opts ...interface{}) error {
	return m.done(m.Context.Reply(what, opts...), ReplySend, opts)
}

func (m countingContext) Edit(what interface{}, opts ...interface{}) error {
	return m.done(m.Context.Edit(what, opts...), ReplyEdit, opts)
}

func (m countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return m.done(m.Context.EditOrSend(what, opts...), ReplyEdit, opts)
}

func (m countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return m.done(m.Context.EditOrReply(what, opts...), ReplyEdit, opts)
}

// Respond counts callback answers, toasts and alerts included.
func (m countingContext) Respond(resp ...*tele.CallbackResponse) error {
	return m.done(m.Context.Respond(resp...), ReplyRespond, nil)
}

func (m countingContext) Delete() error {
	return m.done(m.Context.Delete(), ReplyDelete, nil)
}

// ReplyMetricsMiddleware counts the replies of each update for the handler
// summary log and reports each one to observe when it is not nil.
func ReplyMetricsMiddleware(observe ReplyObserver) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			counters := &replyCounters{}
			c.Set(countersKey, counters)
			return next(countingContext{Context: c, counters: counters, observe: observe})
		}
	}
}

// GetCounters returns how many replies the current update produced and
// whether any carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	rc, _ := c.Get(countersKey).(*replyCounters)
	if rc == nil {
		return 0, false
	}
	return rc.messages, rc.keyboard
}
