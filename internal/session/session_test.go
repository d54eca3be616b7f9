package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/pointshop/core/telegram/state"
	"github.com/m3rciful/pointshop/internal/domain"
)

func sample() Session {
	return Session{
		Category:  domain.CategoryMerch,
		Index:     1,
		Products:  []domain.Product{{ID: 1, Name: "Mug"}, {ID: 2, Name: "Cap"}},
		ChatID:    10,
		MessageID: 77,
	}
}

func TestSessionCurrent(t *testing.T) {
	s := sample()
	p, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, int64(2), p.ID)

	s.Index = 2
	_, ok = s.Current()
	assert.False(t, ok)

	s.LeaveCatalog()
	assert.False(t, s.Browsing())
	assert.Empty(t, s.Products)
	assert.Empty(t, s.Category)
}

func TestMemoryStoreValueSemantics(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(time.Hour)
	in := sample()
	require.NoError(t, m.Set(ctx, 1, in))

	in.Products[0].Name = "changed"
	got, ok, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Mug", got.Products[0].Name)

	got.Products[1].Name = "changed"
	again, _, _ := m.Get(ctx, 1)
	assert.Equal(t, "Cap", again.Products[1].Name)

	require.NoError(t, m.Clear(ctx, 1))
	_, ok, err = m.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreIdleEviction(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryStore(time.Hour)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, 1, sample()))
	require.NoError(t, m.Set(ctx, 2, sample()))

	now = now.Add(50 * time.Minute)
	_, ok, _ := m.Get(ctx, 1)
	require.True(t, ok, "reading refreshes activity")

	now = now.Add(20 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())

	_, ok, _ = m.Get(ctx, 2)
	assert.False(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok, _ = m.Get(ctx, 1)
	assert.False(t, ok, "expired entries are dropped on read")
	assert.Zero(t, m.Len())
}

func TestMemoryStoreRunStopsOnCancel(t *testing.T) {
	m := NewMemoryStore(time.Millisecond)
	require.NoError(t, m.Set(context.Background(), 1, sample()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTrackerReadsStage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(0)
	tr := Tracker(m)

	st, err := tr.StateOf(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, st)

	require.NoError(t, m.Set(ctx, 5, Session{Stage: StageAwaitingEmail}))
	st, err = tr.StateOf(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingEmail, st)
}

// Runs against a real server when POINTSHOP_TEST_REDIS_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("POINTSHOP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POINTSHOP_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	r := NewRedisStore(client, "pointshop:test:session:", time.Minute)
	require.NoError(t, r.Ping(ctx))
	t.Cleanup(func() { _ = r.Clear(ctx, 42) })

	require.NoError(t, r.Set(ctx, 42, sample()))
	got, ok, err := r.Get(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sample(), got)

	ttl, err := client.TTL(ctx, r.key(42)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, r.Clear(ctx, 42))
	_, ok, err = r.Get(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := decode([]byte("{"))
	assert.Error(t, err)

	s, err := decode([]byte(`{"stage":"awaiting_email","index":0}`))
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingEmail, s.Stage)
}
