// Package storage implements the durable repositories on top of sqlx.
// Queries are written with ? placeholders and rebound for the active driver,
// so the same code serves Postgres in production and SQLite in tests.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pointshop/core/logger"
	"github.com/m3rciful/pointshop/internal/domain"
)

// Store groups the repositories sharing one connection pool.
type Store struct {
	db *sqlx.DB

	Products        *ProductRepo
	Cart            *CartRepo
	Users           *UserRepo
	Reconciliations *ReconciliationRepo
}

// New wires all repositories around db.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:              db,
		Products:        &ProductRepo{db: db},
		Cart:            &CartRepo{db: db},
		Users:           &UserRepo{db: db},
		Reconciliations: &ReconciliationRepo{db: db},
	}
}

// DB returns the underlying pool.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func logQuery(ctx context.Context, op string, start time.Time, err error) {
	if err == nil && !logger.ShouldSampleDebug() {
		return
	}
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("op", op),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	logger.DB.LogAttrs(ctx, level, "db.query", attrs...)
}

func wrap(op string, err error) error {
	if err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
