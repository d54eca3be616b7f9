package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/pointshop/internal/domain"
	"github.com/m3rciful/pointshop/internal/points"
	"github.com/m3rciful/pointshop/internal/session"
)

type fakeDirectory struct {
	users     map[string]domain.Identity
	err       error
	refreshes int
}

func (f *fakeDirectory) LookupEmail(_ context.Context, email string) (domain.Identity, bool, error) {
	if f.err != nil {
		return domain.Identity{}, false, f.err
	}
	id, ok := f.users[email]
	return id, ok, nil
}

func (f *fakeDirectory) RefreshDirectory(context.Context) error {
	f.refreshes++
	return f.err
}

type fakeUsers struct {
	records map[int64]domain.AuthorizationRecord
}

func (f *fakeUsers) GetByTelegramID(_ context.Context, id int64) (*domain.AuthorizationRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeUsers) Upsert(_ context.Context, rec domain.AuthorizationRecord) error {
	f.records[rec.TelegramID] = rec
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id int64) error {
	delete(f.records, id)
	return nil
}

type fakeBalances struct{ balance points.Balance }

func (f fakeBalances) Points(context.Context, string) (points.Balance, error) {
	return f.balance, nil
}

type fixture struct {
	m        *Manager
	dir      *fakeDirectory
	users    *fakeUsers
	sessions *session.MemoryStore
	now      time.Time
}

func newFixture() *fixture {
	f := &fixture{
		dir: &fakeDirectory{users: map[string]domain.Identity{
			"ann@example.com": {UserID: "u-1", Email: "ann@example.com", FirstName: "Ann"},
		}},
		users:    &fakeUsers{records: map[int64]domain.AuthorizationRecord{}},
		sessions: session.NewMemoryStore(0),
		now:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.m = NewManager(Options{
		Sessions:  f.sessions,
		Users:     f.users,
		Directory: f.dir,
		Balances:  fakeBalances{balance: points.Balance{Points: 40, Known: true}},
		Now:       func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) stage(t *testing.T, userID int64) session.Session {
	t.Helper()
	s, _, err := f.sessions.Get(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func TestIsAuthorized(t *testing.T) {
	now := time.Now()
	assert.False(t, IsAuthorized(nil, now))
	assert.True(t, IsAuthorized(&domain.AuthorizationRecord{ExpiresAt: now.Add(time.Second)}, now))
	assert.False(t, IsAuthorized(&domain.AuthorizationRecord{ExpiresAt: now}, now))
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Ann@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", got)

	for _, bad := range []string{"", "ann", "Ann <ann@example.com>", "ann@localhost", "a b@example.com"} {
		_, err := NormalizeEmail(bad)
		assert.ErrorIs(t, err, ErrInvalidEmail, bad)
	}
}

func TestSubmitEmailMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.m.Begin(ctx, 7))
	assert.Equal(t, session.StageAwaitingEmail, f.stage(t, 7).Stage)

	rec, err := f.m.SubmitEmail(ctx, 7, " ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", rec.ExternalUserID)
	assert.Equal(t, f.now.Add(DefaultValidity), rec.ExpiresAt)
	require.NotNil(t, rec.FirstName)
	assert.Nil(t, rec.LastName)

	assert.Empty(t, f.stage(t, 7).Stage)
	stored, err := f.m.Require(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", stored.Email)
}

func TestSubmitEmailNoMatchStaysAwaiting(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.m.Begin(ctx, 7))

	for i := 0; i < 3; i++ {
		_, err := f.m.SubmitEmail(ctx, 7, "bob@example.com")
		assert.ErrorIs(t, err, ErrEmailNotFound)
		assert.Equal(t, session.StageAwaitingEmail, f.stage(t, 7).Stage)
	}
	assert.Empty(t, f.users.records)

	_, err := f.m.SubmitEmail(ctx, 7, "not an email")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	assert.Equal(t, session.StageAwaitingEmail, f.stage(t, 7).Stage)
}

func TestSubmitEmailDirectoryDown(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.dir.err = points.ErrDirectoryUnavailable
	require.NoError(t, f.m.Begin(ctx, 7))

	_, err := f.m.SubmitEmail(ctx, 7, "ann@example.com")
	assert.ErrorIs(t, err, points.ErrDirectoryUnavailable)
	assert.Equal(t, session.StageAwaitingEmail, f.stage(t, 7).Stage)
}

func TestRequireExpiredRecordRefreshesDirectory(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.users.records[7] = domain.AuthorizationRecord{TelegramID: 7, ExternalUserID: "u-1", ExpiresAt: f.now.Add(-time.Minute)}

	_, err := f.m.Require(ctx, 7)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, 1, f.dir.refreshes)

	_, err = f.m.Require(ctx, 8)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, 2, f.dir.refreshes)
}

func TestRequireRefreshFailureStillNotAuthorized(t *testing.T) {
	f := newFixture()
	f.dir.err = errors.New("down")
	_, err := f.m.Require(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.users.records[7] = domain.AuthorizationRecord{TelegramID: 7, ExpiresAt: f.now.Add(time.Hour)}
	require.NoError(t, f.m.Begin(ctx, 7))

	require.NoError(t, f.m.Logout(ctx, 7))
	assert.Empty(t, f.users.records)
	assert.Empty(t, f.stage(t, 7).Stage)
	require.NoError(t, f.m.Logout(ctx, 7))
}

func TestBalance(t *testing.T) {
	f := newFixture()
	_, err := f.m.Balance(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	b, err := f.m.Balance(context.Background(), &domain.AuthorizationRecord{ExternalUserID: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(40), b.Points)
}
