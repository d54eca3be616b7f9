package state

import (
	"context"
	"log/slog"
	"sync"

	"github.com/m3rciful/pointshop/core/logger"
	tghelpers "github.com/m3rciful/pointshop/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Machine routes text updates to stage handlers.
type Machine struct {
	tracker Tracker

	mu       sync.RWMutex
	handlers map[State]tele.HandlerFunc
}

// NewMachine returns a machine reading stages from tracker.
func NewMachine(tracker Tracker) *Machine {
	return &Machine{
		tracker:  tracker,
		handlers: make(map[State]tele.HandlerFunc),
	}
}

// Handle associates a stage with its handler.
func (m *Machine) Handle(st State, h tele.HandlerFunc) {
	if h == nil || st == StateIdle {
		return
	}
	m.mu.Lock()
	m.handlers[st] = h
	m.mu.Unlock()
}

func (m *Machine) handler(st State) (tele.HandlerFunc, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handlers[st]
	return h, ok
}

// InProgress reports whether the user is in a stage that has a handler.
// Tracker failures are logged and treated as idle.
func (m *Machine) InProgress(ctx context.Context, userID int64) bool {
	if m == nil || m.tracker == nil {
		return false
	}
	st, err := m.tracker.StateOf(ctx, userID)
	if err != nil {
		logger.Warn(ctx, "tg", "fsm.lookup",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return false
	}
	if st == StateIdle {
		return false
	}
	_, ok := m.handler(st)
	return ok
}

// ManagerHandler executes the handler registered for the user's current stage, if any.
func (m *Machine) ManagerHandler(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	st, err := m.tracker.StateOf(ctx, userID)
	if err != nil {
		return err
	}
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("state", string(st)),
	)
	if h, ok := m.handler(st); ok {
		return h(c)
	}
	return nil
}
