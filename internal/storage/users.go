package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pointshop/internal/domain"
)

const userColumns = "id, telegram_id, email, external_user_id, first_name, last_name, expires_at, created_at, updated_at"

// UserRepo persists authorization records in telegram_users.
type UserRepo struct {
	db *sqlx.DB
}

// GetByTelegramID returns the record or domain.ErrNotFound.
func (r *UserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.AuthorizationRecord, error) {
	start := time.Now()
	var rec domain.AuthorizationRecord
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM telegram_users WHERE telegram_id = ?`)
	err := notFound(r.db.GetContext(ctx, &rec, q, telegramID))
	logQuery(ctx, "users.get", start, err)
	if err != nil {
		return nil, wrap("get telegram user", err)
	}
	return &rec, nil
}

// Upsert creates or refreshes the record keyed by telegram_id.
func (r *UserRepo) Upsert(ctx context.Context, rec domain.AuthorizationRecord) error {
	start := time.Now()
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	q := r.db.Rebind(`INSERT INTO telegram_users
			(telegram_id, email, external_user_id, first_name, last_name, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (telegram_id) DO UPDATE SET
			email = excluded.email,
			external_user_id = excluded.external_user_id,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`)
	_, err := r.db.ExecContext(ctx, q,
		rec.TelegramID, rec.Email, rec.ExternalUserID, rec.FirstName, rec.LastName,
		rec.ExpiresAt.UTC(), rec.CreatedAt.UTC(), now,
	)
	logQuery(ctx, "users.upsert", start, err)
	return wrap("upsert telegram user", err)
}

// Delete removes the record; deleting a missing record is not an error.
func (r *UserRepo) Delete(ctx context.Context, telegramID int64) error {
	start := time.Now()
	q := r.db.Rebind(`DELETE FROM telegram_users WHERE telegram_id = ?`)
	_, err := r.db.ExecContext(ctx, q, telegramID)
	logQuery(ctx, "users.delete", start, err)
	return wrap("delete telegram user", err)
}
