// Package bootstrap brings up the infrastructure every bot needs before
// its services can be wired: logging, the database and its schema, and
// reference data.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/pointshop/core/config"
	coredatabase "github.com/m3rciful/pointshop/core/database"
	"github.com/m3rciful/pointshop/core/logger"
)

// Options configures Run. The func fields replace the default steps in tests.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	// Migrations holds one directory of *.sql files per database driver.
	Migrations fs.FS
	Modules    Modules

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config, *sqlx.DB) error
}

// Result is the infrastructure handed to the application.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, connects, migrates and seeds, in that order.
// The database is closed again if a later step fails.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config")
	}
	opts.setDefaults()
	start := time.Now()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	db, err := opts.Connect(ctx, opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database: %w", err)
	}
	if err := prepare(ctx, opts, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.L.LogAttrs(ctx, slog.LevelInfo, "bootstrap.done",
		slog.String("status", "ok"),
		slog.Int("seeders", len(opts.Modules.Seeders)),
		slog.Duration("duration", logger.Took(start)),
	)
	return &Result{DB: db}, nil
}

func (o *Options) setDefaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		src := o.Migrations
		o.Migrate = func(ctx context.Context, cfg coredatabase.Config, db *sqlx.DB) error {
			return coredatabase.RunMigrations(ctx, cfg, db, src)
		}
	}
}

func prepare(ctx context.Context, opts Options, db *sqlx.DB) error {
	if err := opts.Migrate(ctx, opts.Database, db); err != nil {
		return fmt.Errorf("bootstrap: migrations failed: %w", err)
	}
	for i, s := range opts.Modules.Seeders {
		if s == nil {
			continue
		}
		start := time.Now()
		if err := s.Seed(ctx, db); err != nil {
			return fmt.Errorf("bootstrap: seeder %d: %w", i, err)
		}
		logger.SEED.LogAttrs(ctx, slog.LevelDebug, "seed.done",
			slog.Int("seeder", i),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return nil
}
