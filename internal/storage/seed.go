package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/m3rciful/pointshop/core/bootstrap"
	"github.com/m3rciful/pointshop/core/logger"
	"github.com/m3rciful/pointshop/internal/domain"
)

type catalogFile struct {
	Products []domain.Product `yaml:"products"`
}

// ParseCatalog decodes a YAML catalog and validates every entry.
func ParseCatalog(data []byte) ([]domain.Product, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[int64]struct{}, len(f.Products))
	for i, p := range f.Products {
		switch {
		case p.ID <= 0:
			return nil, fmt.Errorf("catalog entry %d: id must be positive", i)
		case strings.TrimSpace(p.Name) == "":
			return nil, fmt.Errorf("catalog entry %d: name is required", i)
		case p.Price < 0 || p.Remains < 0:
			return nil, fmt.Errorf("catalog entry %d: price and remains must not be negative", i)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate id %d", i, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return f.Products, nil
}

// CatalogSeeder upserts the products listed in the YAML file at path.
// An empty path disables seeding.
func CatalogSeeder(path string) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
		if strings.TrimSpace(path) == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read catalog: %w", err)
		}
		products, err := ParseCatalog(data)
		if err != nil {
			return err
		}
		repo := &ProductRepo{db: db}
		for _, p := range products {
			if err := repo.Upsert(ctx, p); err != nil {
				return err
			}
		}
		if err := repo.SyncSequence(ctx); err != nil {
			return err
		}
		logger.SEED.Info("catalog seeded",
			slog.String("event", "seed.catalog"),
			slog.String("path", path),
			slog.Int("count", len(products)),
		)
		return nil
	})
}
