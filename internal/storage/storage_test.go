package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/pointshop/core/database"
	"github.com/m3rciful/pointshop/internal/domain"
	"github.com/m3rciful/pointshop/migrations"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := database.Config{Driver: database.DriverSQLite, Path: ":memory:"}
	require.NoError(t, cfg.Normalize())
	db, err := database.Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.RunMigrations(context.Background(), cfg, db, migrations.FS))
	return New(db)
}

func strPtr(s string) *string { return &s }

func seedProducts(t *testing.T, s *Store, products ...domain.Product) {
	t.Helper()
	for _, p := range products {
		require.NoError(t, s.Products.Upsert(context.Background(), p))
	}
}

func TestProductsListAvailable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedProducts(t, s,
		domain.Product{ID: 3, Name: "Hoodie", Size: "L", Price: 50, Remains: 2},
		domain.Product{ID: 1, Name: "Mug", Price: 10, Remains: 5, ImageURL: strPtr("https://img/mug.png")},
		domain.Product{ID: 2, Name: "Cap", Price: 20, Remains: 0},
		domain.Product{ID: 4, Name: "Day off", Price: 500, Remains: 1, IsGift: true},
	)

	merch, err := s.Products.ListAvailable(ctx, false)
	require.NoError(t, err)
	require.Len(t, merch, 2)
	assert.Equal(t, int64(1), merch[0].ID)
	assert.Equal(t, "https://img/mug.png", *merch[0].ImageURL)
	assert.Equal(t, int64(3), merch[1].ID)
	assert.Nil(t, merch[1].ImageURL)

	gifts, err := s.Products.ListAvailable(ctx, true)
	require.NoError(t, err)
	require.Len(t, gifts, 1)
	assert.True(t, gifts[0].IsGift)
}

func TestProductsDecrementStockGuard(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedProducts(t, s, domain.Product{ID: 7, Name: "Mug", Price: 10, Remains: 2})

	require.NoError(t, s.Products.DecrementStock(ctx, 7, 2))
	err := s.Products.DecrementStock(ctx, 7, 1)
	assert.ErrorIs(t, err, domain.ErrConflict)

	p, err := s.Products.Get(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, p.Remains)

	_, err = s.Products.Get(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCartUpsertKeepsOneRowPerProduct(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedProducts(t, s, domain.Product{ID: 1, Name: "Mug", Price: 10, Remains: 5})

	require.NoError(t, s.Cart.Upsert(ctx, domain.CartItem{UserID: 9, ProductID: 1, Quantity: 1, Price: 10}))
	require.NoError(t, s.Cart.Upsert(ctx, domain.CartItem{UserID: 9, ProductID: 1, Quantity: 2, Price: 20}))

	item, err := s.Cart.Get(ctx, 9, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), item.Quantity)
	assert.Equal(t, int64(20), item.Price)

	n, err := s.Cart.Count(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	lines, err := s.Cart.Lines(ctx, 9)
	require.NoError(t, err)
	require.Len(t, lines, 1)
}

func TestCartLinesKeepStaleProducts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedProducts(t, s, domain.Product{ID: 1, Name: "Mug", Price: 10, Remains: 5})
	require.NoError(t, s.Cart.Upsert(ctx, domain.CartItem{UserID: 9, ProductID: 1, Quantity: 1, Price: 10}))
	require.NoError(t, s.Cart.Upsert(ctx, domain.CartItem{UserID: 9, ProductID: 42, Quantity: 1, Price: 5}))

	lines, err := s.Cart.Lines(ctx, 9)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.NotNil(t, lines[0].Product)
	assert.Equal(t, "Mug", lines[0].Product.Name)
	assert.Nil(t, lines[1].Product)
	assert.Equal(t, int64(42), lines[1].ProductID)
}

func TestCartDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Cart.Upsert(ctx, domain.CartItem{UserID: 1, ProductID: 1, Quantity: 3, Price: 30}))
	require.NoError(t, s.Cart.Upsert(ctx, domain.CartItem{UserID: 1, ProductID: 2, Quantity: 1, Price: 5}))
	require.NoError(t, s.Cart.Upsert(ctx, domain.CartItem{UserID: 2, ProductID: 1, Quantity: 1, Price: 10}))

	require.NoError(t, s.Cart.Delete(ctx, 1, 1))
	_, err := s.Cart.Get(ctx, 1, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Cart.Clear(ctx, 1))
	n, err := s.Cart.Count(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Cart.Count(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUsersUpsertRefreshesRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	require.NoError(t, s.Users.Upsert(ctx, domain.AuthorizationRecord{
		TelegramID: 5, Email: "a@example.com", ExternalUserID: "u-1", FirstName: strPtr("Ann"), ExpiresAt: exp,
	}))
	require.NoError(t, s.Users.Upsert(ctx, domain.AuthorizationRecord{
		TelegramID: 5, Email: "b@example.com", ExternalUserID: "u-2", ExpiresAt: exp.Add(time.Hour),
	}))

	rec, err := s.Users.GetByTelegramID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", rec.Email)
	assert.Equal(t, "u-2", rec.ExternalUserID)
	assert.Nil(t, rec.FirstName)
	assert.True(t, rec.ExpiresAt.Equal(exp.Add(time.Hour)))

	require.NoError(t, s.Users.Delete(ctx, 5))
	_, err = s.Users.GetByTelegramID(ctx, 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReconciliationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	pid := int64(7)
	now := time.Now().UTC()

	require.NoError(t, s.Reconciliations.Insert(ctx, domain.ReconciliationRecord{
		ID: "r1", OrderID: "o1", TelegramID: 1, Step: domain.StepStockDecrement, ProductID: &pid, Quantity: 2, CreatedAt: now,
	}))
	require.NoError(t, s.Reconciliations.Insert(ctx, domain.ReconciliationRecord{
		ID: "r2", OrderID: "o1", TelegramID: 1, Step: domain.StepCartClear, CreatedAt: now.Add(time.Second),
	}))

	open, err := s.Reconciliations.ListOpen(ctx, 10)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "r1", open[0].ID)
	require.NotNil(t, open[0].ProductID)
	assert.Equal(t, pid, *open[0].ProductID)

	require.NoError(t, s.Reconciliations.Resolve(ctx, "r1", now))
	assert.ErrorIs(t, s.Reconciliations.Resolve(ctx, "r1", now), domain.ErrNotFound)

	open, err = s.Reconciliations.ListOpen(ctx, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "r2", open[0].ID)
}

func TestParseCatalog(t *testing.T) {
	products, err := ParseCatalog([]byte(`
products:
  - id: 1
    name: Mug
    size: "300ml"
    price: 10
    remains: 4
    image_url: https://img/mug.png
  - id: 2
    name: Day off
    price: 500
    remains: 1
    is_gift: true
`))
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.True(t, products[1].IsGift)
	assert.Equal(t, "https://img/mug.png", *products[0].ImageURL)

	_, err = ParseCatalog([]byte("products:\n  - id: 1\n    name: a\n  - id: 1\n    name: b\n"))
	assert.Error(t, err)
}

func TestCatalogSeeder(t *testing.T) {
	s := newTestStore(t)
	path := t.TempDir() + "/catalog.yaml"
	require.NoError(t, writeFile(path, "products:\n  - id: 5\n    name: Pen\n    price: 3\n    remains: 10\n"))

	require.NoError(t, CatalogSeeder(path).Seed(context.Background(), s.DB()))
	p, err := s.Products.Get(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Pen", p.Name)

	require.NoError(t, CatalogSeeder("").Seed(context.Background(), (*sqlx.DB)(nil)))
}
