// Package domain holds the storefront entities shared by storage and services.
package domain

import (
	"errors"
	"strings"
	"time"
)

// Category is a catalog partition.
type Category string

const (
	// CategoryMerch lists purchasable merchandise.
	CategoryMerch Category = "merch"
	// CategoryGifts lists reward items.
	CategoryGifts Category = "gifts"
)

// Categories lists the partitions in menu order.
var Categories = []Category{CategoryMerch, CategoryGifts}

// ParseCategory validates a category tag.
func ParseCategory(s string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryMerch, CategoryGifts:
		return c, true
	}
	return "", false
}

// IsGift reports the is_gift flag stored for products of this category.
func (c Category) IsGift() bool {
	return c == CategoryGifts
}

// Title is the button label of the category.
func (c Category) Title() string {
	switch c {
	case CategoryMerch:
		return "Merch"
	case CategoryGifts:
		return "Gifts"
	}
	return string(c)
}

// Product is a catalog item. Price is in points.
type Product struct {
	ID       int64   `db:"id" yaml:"id"`
	Name     string  `db:"name" yaml:"name"`
	Size     string  `db:"size" yaml:"size"`
	Price    int64   `db:"price" yaml:"price"`
	Remains  int64   `db:"remains" yaml:"remains"`
	ImageURL *string `db:"image_url" yaml:"image_url"`
	IsGift   bool    `db:"is_gift" yaml:"is_gift"`
}

// CartItem is a durable cart row. Price is Quantity times the unit price at add time.
type CartItem struct {
	UserID    int64 `db:"user_id"`
	ProductID int64 `db:"product_id"`
	Quantity  int64 `db:"quantity"`
	Price     int64 `db:"price"`
}

// CartLine is a cart row joined with the current product. Product is nil
// when the product row no longer exists.
type CartLine struct {
	ProductID int64
	Quantity  int64
	Price     int64
	Product   *Product
}

// Name returns the product name or a placeholder for stale lines.
func (l CartLine) Name() string {
	if l.Product == nil {
		return "unavailable item"
	}
	return l.Product.Name
}

// Identity is one entry of the external provider directory.
type Identity struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
}

// DisplayName joins the first and last name.
func (i Identity) DisplayName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// AuthorizationRecord maps a Telegram user to an external identity until ExpiresAt.
type AuthorizationRecord struct {
	ID             int64     `db:"id"`
	TelegramID     int64     `db:"telegram_id"`
	Email          string    `db:"email"`
	ExternalUserID string    `db:"external_user_id"`
	FirstName      *string   `db:"first_name"`
	LastName       *string   `db:"last_name"`
	ExpiresAt      time.Time `db:"expires_at"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// ReconciliationRecord notes a post-debit step that failed and needs a manual fix.
type ReconciliationRecord struct {
	ID             string     `db:"id"`
	OrderID        string     `db:"order_id"`
	TelegramID     int64      `db:"telegram_id"`
	ExternalUserID string     `db:"external_user_id"`
	Step           string     `db:"step"`
	ProductID      *int64     `db:"product_id"`
	Quantity       int64      `db:"quantity"`
	Amount         int64      `db:"amount"`
	Detail         string     `db:"detail"`
	CreatedAt      time.Time  `db:"created_at"`
	ResolvedAt     *time.Time `db:"resolved_at"`
}

// Reconciliation steps.
const (
	StepDebitUncertain = "debit_uncertain"
	StepStockDecrement = "stock_decrement"
	StepCartClear      = "cart_clear"
)

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a guarded update matched no rows.
	ErrConflict = errors.New("conflict")
)
