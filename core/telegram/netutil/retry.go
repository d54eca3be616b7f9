// Package netutil classifies outbound call failures for the retry loops of
// the Telegram client, the send dispatcher and the points provider client.
package netutil

import (
	"context"
	"errors"
	"net"
	"time"

	tele "gopkg.in/telebot.v4"
)

// temporary is implemented by errors that know whether they are transient,
// such as SMTP send errors carrying a 4xx reply.
type temporary interface {
	IsTemp() bool
}

// ShouldRetry reports whether err is transient: network timeouts, refused
// dials, Telegram flood control and server errors, and errors describing
// themselves as temporary. A per-call deadline counts as a timeout;
// cancellation is never retried.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var temp temporary
	if errors.As(err, &temp) {
		return temp.IsTemp()
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// RetryAfter returns how long Telegram asked to wait before the next call,
// or zero when err is not a flood-control error.
func RetryAfter(err error) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return 0
}
