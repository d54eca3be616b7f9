package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pointshop/internal/domain"
)

const reconciliationColumns = "id, order_id, telegram_id, external_user_id, step, product_id, quantity, amount, detail, created_at, resolved_at"

// ReconciliationRepo stores notes about failed post-debit checkout steps.
type ReconciliationRepo struct {
	db *sqlx.DB
}

// Insert stores rec. ID and CreatedAt must be set by the caller.
func (r *ReconciliationRepo) Insert(ctx context.Context, rec domain.ReconciliationRecord) error {
	start := time.Now()
	q := r.db.Rebind(`INSERT INTO reconciliation_records (` + reconciliationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.OrderID, rec.TelegramID, rec.ExternalUserID, rec.Step, rec.ProductID,
		rec.Quantity, rec.Amount, rec.Detail, rec.CreatedAt.UTC(), rec.ResolvedAt,
	)
	logQuery(ctx, "reconciliation.insert", start, err)
	return wrap("insert reconciliation record", err)
}

// ListOpen returns unresolved records, oldest first.
func (r *ReconciliationRepo) ListOpen(ctx context.Context, limit int) ([]domain.ReconciliationRecord, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 20
	}
	var out []domain.ReconciliationRecord
	q := r.db.Rebind(`SELECT ` + reconciliationColumns + ` FROM reconciliation_records
		WHERE resolved_at IS NULL ORDER BY created_at, id LIMIT ?`)
	err := r.db.SelectContext(ctx, &out, q, limit)
	logQuery(ctx, "reconciliation.list_open", start, err)
	return out, wrap("list reconciliation records", err)
}

// Resolve marks an open record as handled. Unknown or already resolved ids yield domain.ErrNotFound.
func (r *ReconciliationRepo) Resolve(ctx context.Context, id string, at time.Time) error {
	start := time.Now()
	q := r.db.Rebind(`UPDATE reconciliation_records SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL`)
	res, err := r.db.ExecContext(ctx, q, at.UTC(), id)
	if err == nil {
		var n int64
		if n, err = res.RowsAffected(); err == nil && n == 0 {
			err = domain.ErrNotFound
		}
	}
	logQuery(ctx, "reconciliation.resolve", start, err)
	return wrap("resolve reconciliation record", err)
}
