package bootstrap

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Seeder writes reference data once the schema is current. Seeders run on
// every start and must be idempotent.
type Seeder interface {
	Seed(ctx context.Context, db *sqlx.DB) error
}

// SeederFunc adapts a function to Seeder.
type SeederFunc func(ctx context.Context, db *sqlx.DB) error

func (f SeederFunc) Seed(ctx context.Context, db *sqlx.DB) error { return f(ctx, db) }

// Modules groups the optional startup hooks of an application.
type Modules struct {
	Seeders []Seeder
}
