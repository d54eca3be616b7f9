package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pointshop/internal/domain"
)

// CartRepo stores one row per (user, product).
type CartRepo struct {
	db *sqlx.DB
}

// Get returns the cart row or domain.ErrNotFound.
func (r *CartRepo) Get(ctx context.Context, userID, productID int64) (*domain.CartItem, error) {
	start := time.Now()
	var item domain.CartItem
	q := r.db.Rebind(`SELECT user_id, product_id, quantity, price FROM cart_items WHERE user_id = ? AND product_id = ?`)
	err := notFound(r.db.GetContext(ctx, &item, q, userID, productID))
	logQuery(ctx, "cart.get", start, err)
	if err != nil {
		return nil, wrap("get cart item", err)
	}
	return &item, nil
}

// Upsert writes the row, replacing quantity and price of an existing one.
func (r *CartRepo) Upsert(ctx context.Context, item domain.CartItem) error {
	start := time.Now()
	q := r.db.Rebind(`INSERT INTO cart_items (user_id, product_id, quantity, price)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			quantity = excluded.quantity,
			price = excluded.price`)
	_, err := r.db.ExecContext(ctx, q, item.UserID, item.ProductID, item.Quantity, item.Price)
	logQuery(ctx, "cart.upsert", start, err)
	return wrap("upsert cart item", err)
}

// Delete removes the row for (user, product) regardless of quantity.
func (r *CartRepo) Delete(ctx context.Context, userID, productID int64) error {
	start := time.Now()
	q := r.db.Rebind(`DELETE FROM cart_items WHERE user_id = ? AND product_id = ?`)
	_, err := r.db.ExecContext(ctx, q, userID, productID)
	logQuery(ctx, "cart.delete", start, err)
	return wrap("delete cart item", err)
}

// Clear removes every row of the user.
func (r *CartRepo) Clear(ctx context.Context, userID int64) error {
	start := time.Now()
	q := r.db.Rebind(`DELETE FROM cart_items WHERE user_id = ?`)
	_, err := r.db.ExecContext(ctx, q, userID)
	logQuery(ctx, "cart.clear", start, err)
	return wrap("clear cart", err)
}

// Count returns the total number of units in the cart.
func (r *CartRepo) Count(ctx context.Context, userID int64) (int64, error) {
	start := time.Now()
	var n int64
	q := r.db.Rebind(`SELECT COALESCE(SUM(quantity), 0) FROM cart_items WHERE user_id = ?`)
	err := r.db.GetContext(ctx, &n, q, userID)
	logQuery(ctx, "cart.count", start, err)
	return n, wrap("count cart", err)
}

type cartLineRow struct {
	ProductID int64          `db:"product_id"`
	Quantity  int64          `db:"quantity"`
	Price     int64          `db:"price"`
	PID       sql.NullInt64  `db:"p_id"`
	Name      sql.NullString `db:"p_name"`
	Size      sql.NullString `db:"p_size"`
	UnitPrice sql.NullInt64  `db:"p_price"`
	Remains   sql.NullInt64  `db:"p_remains"`
	ImageURL  sql.NullString `db:"p_image_url"`
	IsGift    sql.NullBool   `db:"p_is_gift"`
}

// Lines returns the cart joined with current products in product id order.
// Lines whose product is gone carry a nil Product.
func (r *CartRepo) Lines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	start := time.Now()
	var rows []cartLineRow
	q := r.db.Rebind(`SELECT c.product_id, c.quantity, c.price,
			p.id AS p_id, p.name AS p_name, p.size AS p_size, p.price AS p_price,
			p.remains AS p_remains, p.image_url AS p_image_url, p.is_gift AS p_is_gift
		FROM cart_items c
		LEFT JOIN products p ON p.id = c.product_id
		WHERE c.user_id = ?
		ORDER BY c.product_id`)
	err := r.db.SelectContext(ctx, &rows, q, userID)
	logQuery(ctx, "cart.lines", start, err)
	if err != nil {
		return nil, wrap("cart lines", err)
	}
	lines := make([]domain.CartLine, 0, len(rows))
	for _, row := range rows {
		line := domain.CartLine{ProductID: row.ProductID, Quantity: row.Quantity, Price: row.Price}
		if row.PID.Valid {
			p := &domain.Product{
				ID:      row.PID.Int64,
				Name:    row.Name.String,
				Size:    row.Size.String,
				Price:   row.UnitPrice.Int64,
				Remains: row.Remains.Int64,
				IsGift:  row.IsGift.Bool,
			}
			if row.ImageURL.Valid {
				img := row.ImageURL.String
				p.ImageURL = &img
			}
			line.Product = p
		}
		lines = append(lines, line)
	}
	return lines, nil
}
