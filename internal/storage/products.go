package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pointshop/core/database"
	"github.com/m3rciful/pointshop/internal/domain"
)

const productColumns = "id, name, size, price, remains, image_url, is_gift"

// ProductRepo reads and updates the catalog.
type ProductRepo struct {
	db *sqlx.DB
}

// ListAvailable returns the in-stock products of one partition ordered by id.
func (r *ProductRepo) ListAvailable(ctx context.Context, isGift bool) ([]domain.Product, error) {
	start := time.Now()
	var out []domain.Product
	q := r.db.Rebind(`SELECT ` + productColumns + ` FROM products WHERE is_gift = ? AND remains > 0 ORDER BY id`)
	err := r.db.SelectContext(ctx, &out, q, isGift)
	logQuery(ctx, "products.list_available", start, err)
	return out, wrap("list products", err)
}

// Get returns a product by id or domain.ErrNotFound.
func (r *ProductRepo) Get(ctx context.Context, id int64) (*domain.Product, error) {
	start := time.Now()
	var p domain.Product
	q := r.db.Rebind(`SELECT ` + productColumns + ` FROM products WHERE id = ?`)
	err := notFound(r.db.GetContext(ctx, &p, q, id))
	logQuery(ctx, "products.get", start, err)
	if err != nil {
		return nil, wrap("get product", err)
	}
	return &p, nil
}

// DecrementStock subtracts qty from remains only while enough stock is left.
// It returns domain.ErrConflict when the guard rejected the update.
func (r *ProductRepo) DecrementStock(ctx context.Context, id, qty int64) error {
	start := time.Now()
	q := r.db.Rebind(`UPDATE products SET remains = remains - ? WHERE id = ? AND remains >= ?`)
	res, err := r.db.ExecContext(ctx, q, qty, id, qty)
	if err == nil {
		var n int64
		if n, err = res.RowsAffected(); err == nil && n == 0 {
			err = domain.ErrConflict
		}
	}
	logQuery(ctx, "products.decrement_stock", start, err)
	return wrap("decrement stock", err)
}

// Upsert inserts or replaces a product keyed by id.
func (r *ProductRepo) Upsert(ctx context.Context, p domain.Product) error {
	start := time.Now()
	q := r.db.Rebind(`INSERT INTO products (` + productColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			size = excluded.size,
			price = excluded.price,
			remains = excluded.remains,
			image_url = excluded.image_url,
			is_gift = excluded.is_gift`)
	_, err := r.db.ExecContext(ctx, q, p.ID, p.Name, p.Size, p.Price, p.Remains, p.ImageURL, p.IsGift)
	logQuery(ctx, "products.upsert", start, err)
	return wrap("upsert product", err)
}

// SyncSequence moves the Postgres id sequence past explicitly inserted ids.
func (r *ProductRepo) SyncSequence(ctx context.Context) error {
	if r.db.DriverName() != database.DriverPostgres {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`SELECT setval(pg_get_serial_sequence('products', 'id'), COALESCE((SELECT MAX(id) FROM products), 1))`)
	return wrap("sync product sequence", err)
}
