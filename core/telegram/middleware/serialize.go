package middleware

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

// UserLocks is a keyed mutex holding one lock per active user.
// Entries are dropped once no goroutine holds or waits for them.
type UserLocks struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewUserLocks returns an empty lock table.
func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[int64]*userLock)}
}

// Lock blocks until the lock for userID is held and returns its release func.
func (l *UserLocks) Lock(userID int64) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

// Len reports how many users currently hold or wait for a lock.
func (l *UserLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// SerializeMiddleware runs updates of the same user one at a time.
// Telebot handles every update in its own goroutine, so without it two quick
// taps on the same button race on session and cart state.
func SerializeMiddleware(locks *UserLocks) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || locks == nil {
				return next(c)
			}
			unlock := locks.Lock(user.ID)
			defer unlock()
			return next(c)
		}
	}
}
