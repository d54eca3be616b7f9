package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pointshop/core/logger"
)

// RunMigrations applies the up migrations under source/<driver>/, e.g.
// "postgres/0001_init.up.sql". Postgres migrates over its own connection;
// SQLite reuses db because an in-memory database lives in one connection.
// Cancelling ctx stops after the migration in flight.
func RunMigrations(ctx context.Context, cfg Config, db *sqlx.DB, source fs.FS) error {
	if source == nil {
		return errors.New("migrations: nil source")
	}
	files := upFiles(source, cfg.Driver)
	preview, truncated := logger.SummarizeStrings(files, 6)
	logger.MIG.LogAttrs(ctx, slog.LevelDebug, "migrations.resolve",
		slog.String("path", cfg.Driver),
		slog.Int("files_total", len(files)),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", truncated),
	)

	src, err := iofs.New(source, cfg.Driver)
	if err != nil {
		return fmt.Errorf("migrations: open source: %w", err)
	}
	m, release, err := newMigrator(cfg, db, src)
	if err != nil {
		return fmt.Errorf("migrations: init: %w", err)
	}
	defer release()
	stop := context.AfterFunc(ctx, func() {
		select {
		case m.GracefulStop <- true:
		default:
		}
	})
	defer stop()

	from, _, _ := m.Version()
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		var dirty migrate.ErrDirty
		if errors.As(err, &dirty) {
			err = fmt.Errorf("%w: repair version %d by hand, then force it", err, dirty.Version)
		}
		logger.MIG.LogAttrs(ctx, slog.LevelError, "migrations.apply",
			slog.String("status", "fail"),
			slog.Uint64("from_ver", uint64(from)),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("migrations: up: %w", err)
	}
	to, _, _ := m.Version()

	applied := appliedBetween(files, uint64(from), uint64(to))
	preview, truncated = logger.SummarizeStrings(applied, 6)
	logger.MIG.LogAttrs(ctx, slog.LevelInfo, "migrations.summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", truncated),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// newMigrator returns m and a release func. Closing an instance-backed
// migrator would close db, so SQLite releases nothing.
func newMigrator(cfg Config, db *sqlx.DB, src source.Driver) (*migrate.Migrate, func(), error) {
	if cfg.Driver != DriverSQLite {
		m, err := migrate.NewWithSourceInstance("iofs", src, cfg.DSN())
		if err != nil {
			return nil, nil, err
		}
		return m, func() { _, _ = m.Close() }, nil
	}
	if db == nil {
		return nil, nil, errors.New("sqlite3 migrations need an open database")
	}
	drv, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, nil, err
	}
	m, err := migrate.NewWithInstance("iofs", src, DriverSQLite, drv)
	if err != nil {
		return nil, nil, err
	}
	return m, func() {}, nil
}

// upFiles lists the *.up.sql names in dir, sorted.
func upFiles(source fs.FS, dir string) []string {
	entries, err := fs.ReadDir(source, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

// appliedBetween returns the files with from < version <= to.
func appliedBetween(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
