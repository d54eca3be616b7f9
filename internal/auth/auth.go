// Package auth links Telegram users to provider identities by email and
// gates protected actions on a non-expired authorization record.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/m3rciful/pointshop/core/logger"
	"github.com/m3rciful/pointshop/internal/domain"
	"github.com/m3rciful/pointshop/internal/points"
	"github.com/m3rciful/pointshop/internal/session"
)

var (
	// ErrNotAuthorized means the user has no valid authorization record.
	ErrNotAuthorized = errors.New("auth: not authorized")
	// ErrInvalidEmail is returned for text that is not a bare email address.
	ErrInvalidEmail = errors.New("auth: invalid email")
	// ErrEmailNotFound means the directory has no user with that email.
	ErrEmailNotFound = errors.New("auth: email not found")
)

// DefaultValidity is how long a successful email match stays valid.
const DefaultValidity = 30 * 24 * time.Hour

// Directory resolves emails to provider identities.
type Directory interface {
	LookupEmail(ctx context.Context, email string) (domain.Identity, bool, error)
	RefreshDirectory(ctx context.Context) error
}

// BalanceReader reads point balances.
type BalanceReader interface {
	Points(ctx context.Context, externalUserID string) (points.Balance, error)
}

// Users persists authorization records.
type Users interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*domain.AuthorizationRecord, error)
	Upsert(ctx context.Context, rec domain.AuthorizationRecord) error
	Delete(ctx context.Context, telegramID int64) error
}

// Options wires a Manager.
type Options struct {
	Sessions  session.Store
	Users     Users
	Directory Directory
	Balances  BalanceReader
	Validity  time.Duration
	Now       func() time.Time
}

// Manager drives the Unauthenticated -> AwaitingEmail -> Authenticated flow.
type Manager struct {
	sessions  session.Store
	users     Users
	directory Directory
	balances  BalanceReader
	validity  time.Duration
	now       func() time.Time
}

// NewManager builds a Manager from opts.
func NewManager(opts Options) *Manager {
	m := &Manager{
		sessions:  opts.Sessions,
		users:     opts.Users,
		directory: opts.Directory,
		balances:  opts.Balances,
		validity:  opts.Validity,
		now:       opts.Now,
	}
	if m.validity <= 0 {
		m.validity = DefaultValidity
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// IsAuthorized reports whether rec exists and has not expired at now.
func IsAuthorized(rec *domain.AuthorizationRecord, now time.Time) bool {
	return rec != nil && now.Before(rec.ExpiresAt)
}

// NormalizeEmail trims and lowercases text and checks it is a bare address.
func NormalizeEmail(text string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(text))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Begin puts the user into the awaiting-email stage.
func (m *Manager) Begin(ctx context.Context, userID int64) error {
	sess, _, err := m.sessions.Get(ctx, userID)
	if err != nil {
		return err
	}
	sess.Stage = session.StageAwaitingEmail
	sess.PendingEmail = ""
	return m.sessions.Set(ctx, userID, sess)
}

// Cancel leaves the awaiting-email stage without touching the record.
func (m *Manager) Cancel(ctx context.Context, userID int64) error {
	sess, ok, err := m.sessions.Get(ctx, userID)
	if err != nil || !ok || sess.Stage != session.StageAwaitingEmail {
		return err
	}
	sess.Stage = ""
	sess.PendingEmail = ""
	return m.sessions.Set(ctx, userID, sess)
}

// SubmitEmail matches text against the directory. On a match the record is
// stored and the stage cleared; otherwise the user stays in AwaitingEmail.
func (m *Manager) SubmitEmail(ctx context.Context, userID int64, text string) (*domain.AuthorizationRecord, error) {
	sess, _, err := m.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	email, err := NormalizeEmail(text)
	if err != nil {
		return nil, err
	}
	sess.PendingEmail = email
	if err := m.sessions.Set(ctx, userID, sess); err != nil {
		return nil, err
	}

	identity, ok, err := m.directory.LookupEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("auth: lookup: %w", err)
	}
	if !ok {
		logger.SVCAuth.LogAttrs(ctx, slog.LevelInfo, "auth.email",
			slog.String("status", "fail"),
			slog.String("reason", "not_found"),
			slog.String("email", email),
		)
		return nil, ErrEmailNotFound
	}

	now := m.now()
	rec := domain.AuthorizationRecord{
		TelegramID:     userID,
		Email:          identity.Email,
		ExternalUserID: identity.UserID,
		FirstName:      optional(identity.FirstName),
		LastName:       optional(identity.LastName),
		ExpiresAt:      now.Add(m.validity),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.users.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("auth: store record: %w", err)
	}

	sess.Stage = ""
	sess.PendingEmail = ""
	if err := m.sessions.Set(ctx, userID, sess); err != nil {
		return nil, err
	}
	logger.SVCAuth.LogAttrs(ctx, slog.LevelInfo, "auth.email",
		slog.String("status", "ok"),
		slog.Time("expires_at", rec.ExpiresAt),
	)
	return &rec, nil
}

// GetUserByTelegramID returns the stored record or nil when there is none.
func (m *Manager) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.AuthorizationRecord, error) {
	rec, err := m.users.GetByTelegramID(ctx, telegramID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// Require returns the valid record of userID. When there is none the
// directory is refreshed so the next email attempt sees fresh data, and
// ErrNotAuthorized is returned.
func (m *Manager) Require(ctx context.Context, userID int64) (*domain.AuthorizationRecord, error) {
	rec, err := m.GetUserByTelegramID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if IsAuthorized(rec, m.now()) {
		return rec, nil
	}
	if err := m.directory.RefreshDirectory(ctx); err != nil {
		logger.SVCAuth.LogAttrs(ctx, slog.LevelWarn, "auth.directory",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return nil, ErrNotAuthorized
}

// Logout deletes the record and any pending email prompt.
func (m *Manager) Logout(ctx context.Context, userID int64) error {
	if err := m.users.Delete(ctx, userID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return m.Cancel(ctx, userID)
}

// Balance reads the current points of rec's provider identity.
func (m *Manager) Balance(ctx context.Context, rec *domain.AuthorizationRecord) (points.Balance, error) {
	if rec == nil {
		return points.Balance{}, ErrNotAuthorized
	}
	return m.balances.Points(ctx, rec.ExternalUserID)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
