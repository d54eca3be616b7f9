// Package callbacks decodes inline button payloads and answers callback
// queries at most once per update.
package callbacks

import (
	"errors"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ErrBadPayload is returned when a payload is not a positive id.
var ErrBadPayload = errors.New("callbacks: bad payload")

// Split returns the unique key and payload of cb.
// Telebot strips its "\f<unique>|<payload>" encoding before OnCallback
// handlers run and leaves the key in cb.Unique. Raw data is decoded only
// when that did not happen.
func Split(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	unique, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(unique), payload
}

// Payload returns the payload of the current callback.
func Payload(c tele.Context) string {
	_, p := Split(c.Callback())
	return p
}

// ID parses the payload of the current callback as a positive row id.
func ID(c tele.Context) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(Payload(c)), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadPayload
	}
	return id, nil
}
