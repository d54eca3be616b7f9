package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/pointshop/core/logger"
)

type memoryEntry struct {
	session Session
	touched time.Time
}

// MemoryStore keeps sessions in process memory. Entries not touched for the
// idle timeout are removed by Sweep.
type MemoryStore struct {
	idle time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[int64]memoryEntry
}

// NewMemoryStore returns a store evicting sessions idle for longer than idle.
// A non-positive idle disables eviction.
func NewMemoryStore(idle time.Duration) *MemoryStore {
	return &MemoryStore{
		idle:    idle,
		now:     time.Now,
		entries: make(map[int64]memoryEntry),
	}
}

func (m *MemoryStore) expired(e memoryEntry, now time.Time) bool {
	return m.idle > 0 && now.Sub(e.touched) >= m.idle
}

// Get implements Store. Reading a session counts as activity.
func (m *MemoryStore) Get(_ context.Context, userID int64) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		return Session{}, false, nil
	}
	now := m.now()
	if m.expired(e, now) {
		delete(m.entries, userID)
		return Session{}, false, nil
	}
	e.touched = now
	m.entries[userID] = e
	return e.session.clone(), true, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, userID int64, s Session) error {
	m.mu.Lock()
	m.entries[userID] = memoryEntry{session: s.clone(), touched: m.now()}
	m.mu.Unlock()
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	delete(m.entries, userID)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep removes idle sessions and returns how many were dropped.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, e := range m.entries {
		if m.expired(e, now) {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.idle <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				logger.Debug(ctx, "session", "session.sweep",
					slog.String("status", "ok"),
					slog.Int("evicted", n),
					slog.Int("users", m.Len()),
				)
			}
		}
	}
}
