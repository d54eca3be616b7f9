// Package cart manages the durable per-user cart.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/pointshop/core/logger"
	"github.com/m3rciful/pointshop/internal/domain"
)

var (
	// ErrOutOfStock rejects an add that would exceed the remaining stock.
	ErrOutOfStock = errors.New("cart: out of stock")
	// ErrCartEmpty is the explicit empty-cart state.
	ErrCartEmpty = errors.New("cart: empty")
	// ErrUnknownProduct means the product no longer exists.
	ErrUnknownProduct = errors.New("cart: unknown product")
)

// Products reads catalog rows.
type Products interface {
	Get(ctx context.Context, id int64) (*domain.Product, error)
}

// Items is the cart table.
type Items interface {
	Get(ctx context.Context, userID, productID int64) (*domain.CartItem, error)
	Upsert(ctx context.Context, item domain.CartItem) error
	Delete(ctx context.Context, userID, productID int64) error
	Clear(ctx context.Context, userID int64) error
	Count(ctx context.Context, userID int64) (int64, error)
	Lines(ctx context.Context, userID int64) ([]domain.CartLine, error)
}

// View is a rendered cart.
type View struct {
	Lines []domain.CartLine
	// Total uses current product prices and skips stale lines.
	Total int64
	// Stale is set when some line references a missing product.
	Stale bool
}

// Manager implements cart operations.
type Manager struct {
	products Products
	items    Items
}

// NewManager wires a Manager.
func NewManager(products Products, items Items) *Manager {
	return &Manager{products: products, items: items}
}

func (m *Manager) product(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := m.products.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownProduct, id)
	}
	return p, err
}

// Add puts one more unit of productID into the cart. It is rejected without
// any mutation when the cart already holds every remaining unit.
func (m *Manager) Add(ctx context.Context, userID, productID int64) (domain.CartItem, error) {
	p, err := m.product(ctx, productID)
	if err != nil {
		return domain.CartItem{}, err
	}
	var qty int64
	item, err := m.items.Get(ctx, userID, productID)
	switch {
	case err == nil:
		qty = item.Quantity
	case !errors.Is(err, domain.ErrNotFound):
		return domain.CartItem{}, err
	}
	if qty >= p.Remains {
		return domain.CartItem{}, ErrOutOfStock
	}

	// Stock may have moved since the first read.
	p, err = m.product(ctx, productID)
	if err != nil {
		return domain.CartItem{}, err
	}
	if qty >= p.Remains {
		return domain.CartItem{}, ErrOutOfStock
	}

	next := domain.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty + 1,
		Price:     (qty + 1) * p.Price,
	}
	if err := m.items.Upsert(ctx, next); err != nil {
		return domain.CartItem{}, err
	}
	logger.SVCCart.LogAttrs(ctx, slog.LevelDebug, "cart.add",
		slog.String("status", "ok"),
		slog.Int64("product_id", productID),
		slog.Int64("qty", next.Quantity),
	)
	return next, nil
}

// Remove deletes the whole line, whatever its quantity.
func (m *Manager) Remove(ctx context.Context, userID, productID int64) error {
	return m.items.Delete(ctx, userID, productID)
}

// Clear empties the cart.
func (m *Manager) Clear(ctx context.Context, userID int64) error {
	return m.items.Clear(ctx, userID)
}

// Count returns the number of units in the cart.
func (m *Manager) Count(ctx context.Context, userID int64) (int64, error) {
	return m.items.Count(ctx, userID)
}

// View returns the cart joined with current products.
func (m *Manager) View(ctx context.Context, userID int64) (View, error) {
	lines, err := m.items.Lines(ctx, userID)
	if err != nil {
		return View{}, err
	}
	if len(lines) == 0 {
		return View{}, ErrCartEmpty
	}
	v := View{Lines: lines}
	for _, l := range lines {
		if l.Product == nil {
			v.Stale = true
			continue
		}
		v.Total += l.Quantity * l.Product.Price
	}
	return v, nil
}
