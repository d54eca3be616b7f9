// Package catalog implements category selection and paging through product
// cards. The snapshot of products shown to a user is taken once per category
// selection and kept in the session.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/pointshop/core/logger"
	"github.com/m3rciful/pointshop/internal/domain"
	"github.com/m3rciful/pointshop/internal/session"
)

var (
	// ErrNoProducts means the category has nothing in stock.
	ErrNoProducts = errors.New("catalog: no products available")
	// ErrSelectionChanged means the session no longer points at a product.
	ErrSelectionChanged = errors.New("catalog: selection changed")
)

// Direction is a navigation action on the product card.
type Direction string

const (
	Prev Direction = "prev"
	Next Direction = "next"
	Back Direction = "back"
)

// ParseDirection validates a callback payload.
func ParseDirection(s string) (Direction, bool) {
	switch d := Direction(s); d {
	case Prev, Next, Back:
		return d, true
	}
	return "", false
}

// Card is what the renderer needs to draw one product.
type Card struct {
	Product  domain.Product
	Category domain.Category
	Index    int
	Total    int
	// InCart is the quantity of this product in the user's cart.
	InCart int64
}

// Renderer draws product cards in a chat.
type Renderer interface {
	// ShowCard sends a new card and returns its message id.
	ShowCard(ctx context.Context, chatID int64, card Card) (int, error)
	// EditCard replaces the card in an existing message. An unchanged
	// message must be reported as success.
	EditCard(ctx context.Context, chatID int64, messageID int, card Card) error
}

// Authorizer gates category selection.
type Authorizer interface {
	Require(ctx context.Context, userID int64) (*domain.AuthorizationRecord, error)
}

// Products lists in-stock products of one partition.
type Products interface {
	ListAvailable(ctx context.Context, isGift bool) ([]domain.Product, error)
}

// CartReader reads one cart row.
type CartReader interface {
	Get(ctx context.Context, userID, productID int64) (*domain.CartItem, error)
}

// Browser is the catalog state machine over session.Store.
type Browser struct {
	sessions session.Store
	auth     Authorizer
	products Products
	cart     CartReader
	render   Renderer
}

// NewBrowser wires a Browser.
func NewBrowser(sessions session.Store, auth Authorizer, products Products, cart CartReader, render Renderer) *Browser {
	return &Browser{sessions: sessions, auth: auth, products: products, cart: cart, render: render}
}

// SelectCategory loads a fresh snapshot of category and shows its first product.
func (b *Browser) SelectCategory(ctx context.Context, userID, chatID int64, category domain.Category) error {
	if _, err := b.auth.Require(ctx, userID); err != nil {
		return err
	}
	products, err := b.products.ListAvailable(ctx, category.IsGift())
	if err != nil {
		return fmt.Errorf("catalog: list %s: %w", category, err)
	}
	if len(products) == 0 {
		return ErrNoProducts
	}

	prev, _, err := b.sessions.Get(ctx, userID)
	if err != nil {
		return err
	}
	sess := session.Session{
		Stage:    prev.Stage,
		Category: category,
		Products: products,
		ChatID:   chatID,
	}
	msgID, err := b.render.ShowCard(ctx, chatID, b.card(ctx, userID, sess))
	if err != nil {
		return err
	}
	sess.MessageID = msgID
	if err := b.sessions.Set(ctx, userID, sess); err != nil {
		return err
	}
	logger.SVCCatalog.LogAttrs(ctx, slog.LevelDebug, "catalog.select",
		slog.String("status", "ok"),
		slog.String("category", string(category)),
		slog.Int("count", len(products)),
	)
	return nil
}

// Navigate moves the cursor. Prev and Next saturate at the ends; Back leaves
// the catalog.
func (b *Browser) Navigate(ctx context.Context, userID int64, dir Direction) error {
	sess, _, err := b.sessions.Get(ctx, userID)
	if err != nil {
		return err
	}
	switch dir {
	case Back:
		sess.LeaveCatalog()
		return b.sessions.Set(ctx, userID, sess)
	case Prev:
		if sess.Index > 0 {
			sess.Index--
		}
	case Next:
		if sess.Index < len(sess.Products)-1 {
			sess.Index++
		}
	default:
		return fmt.Errorf("catalog: unknown direction %q", dir)
	}
	if err := b.sessions.Set(ctx, userID, sess); err != nil {
		return err
	}
	return b.refresh(ctx, userID, sess)
}

// Refresh re-renders the current card, e.g. after the cart changed. Without
// a card on screen it does nothing.
func (b *Browser) Refresh(ctx context.Context, userID int64) error {
	sess, _, err := b.sessions.Get(ctx, userID)
	if err != nil {
		return err
	}
	return b.refresh(ctx, userID, sess)
}

// Current returns the product under the user's cursor.
func (b *Browser) Current(ctx context.Context, userID int64) (domain.Product, error) {
	sess, _, err := b.sessions.Get(ctx, userID)
	if err != nil {
		return domain.Product{}, err
	}
	p, ok := sess.Current()
	if !ok {
		return domain.Product{}, ErrSelectionChanged
	}
	return p, nil
}

func (b *Browser) refresh(ctx context.Context, userID int64, sess session.Session) error {
	if !sess.Browsing() {
		return nil
	}
	if _, ok := sess.Current(); !ok {
		return ErrSelectionChanged
	}
	return b.render.EditCard(ctx, sess.ChatID, sess.MessageID, b.card(ctx, userID, sess))
}

// card assumes sess.Current is valid.
func (b *Browser) card(ctx context.Context, userID int64, sess session.Session) Card {
	p, _ := sess.Current()
	c := Card{
		Product:  p,
		Category: sess.Category,
		Index:    sess.Index,
		Total:    len(sess.Products),
	}
	item, err := b.cart.Get(ctx, userID, p.ID)
	switch {
	case err == nil:
		c.InCart = item.Quantity
	case !errors.Is(err, domain.ErrNotFound):
		logger.SVCCatalog.LogAttrs(ctx, slog.LevelWarn, "catalog.cart_read",
			slog.String("status", "fail"),
			slog.Int64("product_id", p.ID),
			slog.String("err", err.Error()),
		)
	}
	return c
}
