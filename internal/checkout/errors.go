package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/pointshop/internal/cart"
)

var (
	// ErrStaleCart means a cart line references a product that no longer exists.
	ErrStaleCart = errors.New("checkout: cart references removed products")
	// ErrBalanceUnavailable means the provider did not report a usable balance.
	ErrBalanceUnavailable = errors.New("checkout: balance unavailable")
	// ErrDebitFailed means the withdrawal did not go through. Nothing was changed
	// locally; if the provider outcome is uncertain a reconciliation record exists.
	ErrDebitFailed = errors.New("checkout: could not debit points")
)

// Shortage is one cart line asking for more than is in stock.
type Shortage struct {
	ProductID int64
	Name      string
	Requested int64
	Available int64
}

// ShortageError lists every short line of a rejected order.
type ShortageError struct {
	Lines []Shortage
}

func (e *ShortageError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, fmt.Sprintf("product %d (%s): requested %d, available %d", l.ProductID, l.Name, l.Requested, l.Available))
	}
	return "checkout: insufficient stock: " + strings.Join(parts, "; ")
}

// Code is used as the err_code log field.
func (e *ShortageError) Code() string { return "shortage" }

// InsufficientFundsError rejects an order the balance cannot cover.
type InsufficientFundsError struct {
	Balance int64
	Total   int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("checkout: insufficient points: balance %d, total %d", e.Balance, e.Total)
}

// Code is used as the err_code log field.
func (e *InsufficientFundsError) Code() string { return "insufficient_funds" }

// resultCode labels the orders counter.
func resultCode(err error) string {
	var (
		short *ShortageError
		funds *InsufficientFundsError
	)
	switch {
	case err == nil:
		return "placed"
	case errors.As(err, &short):
		return short.Code()
	case errors.As(err, &funds):
		return funds.Code()
	case errors.Is(err, cart.ErrCartEmpty):
		return "cart_empty"
	case errors.Is(err, ErrStaleCart):
		return "stale_cart"
	case errors.Is(err, ErrBalanceUnavailable):
		return "balance_unavailable"
	case errors.Is(err, ErrDebitFailed):
		return "debit_failed"
	}
	return "error"
}
