// Package session keeps the per-user navigation state of the bot: the
// current stage, the catalog snapshot being browsed and the product card
// message. Sessions are values; callers read, modify a copy and write it back.
package session

import (
	"context"
	"slices"

	"github.com/m3rciful/pointshop/core/telegram/state"
	"github.com/m3rciful/pointshop/internal/domain"
)

// StageAwaitingEmail is set while the bot waits for the user's email.
const StageAwaitingEmail state.State = "awaiting_email"

// Session is the ephemeral state of one user.
type Session struct {
	Stage    state.State     `json:"stage,omitempty"`
	Category domain.Category `json:"category,omitempty"`
	Index    int             `json:"index"`
	// Products is the snapshot taken when the category was selected.
	Products  []domain.Product `json:"products,omitempty"`
	ChatID    int64            `json:"chat_id,omitempty"`
	MessageID int              `json:"message_id,omitempty"`
	// PendingEmail is the last address the user submitted.
	PendingEmail string `json:"pending_email,omitempty"`
}

// Current returns the product under the cursor.
func (s Session) Current() (domain.Product, bool) {
	if s.Index < 0 || s.Index >= len(s.Products) {
		return domain.Product{}, false
	}
	return s.Products[s.Index], true
}

// Browsing reports whether a product card is on screen.
func (s Session) Browsing() bool {
	return s.MessageID != 0
}

// LeaveCatalog drops the category, snapshot and card message.
func (s *Session) LeaveCatalog() {
	s.Category = ""
	s.Index = 0
	s.Products = nil
	s.ChatID = 0
	s.MessageID = 0
}

func (s Session) clone() Session {
	s.Products = slices.Clone(s.Products)
	return s
}

// Store persists sessions keyed by Telegram user id.
type Store interface {
	// Get returns the session and whether one existed.
	Get(ctx context.Context, userID int64) (Session, bool, error)
	Set(ctx context.Context, userID int64, s Session) error
	Clear(ctx context.Context, userID int64) error
}

// Tracker exposes the stage stored in s to the text router.
func Tracker(s Store) state.Tracker {
	return state.TrackerFunc(func(ctx context.Context, userID int64) (state.State, error) {
		sess, ok, err := s.Get(ctx, userID)
		if err != nil || !ok {
			return state.StateIdle, err
		}
		return sess.Stage, nil
	})
}
