package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/pointshop/core/logger"
)

const connectRetryDelay = 2 * time.Second

// Connect opens and verifies the pool. Postgres is retried until
// cfg.ConnectTimeout so the bot can start alongside its database.
// SQLite gets a single connection with foreign keys on.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 || cfg.Driver == DriverSQLite {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	attempts := 0
	var (
		db  *sqlx.DB
		err error
	)
	for {
		attempts++
		if db, err = sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN()); err == nil {
			break
		}
		if cfg.Driver == DriverSQLite || !sleep(ctx, connectRetryDelay) {
			logger.DB.LogAttrs(ctx, slog.LevelError, "db.connect",
				slog.String("status", "fail"),
				slog.String("driver", cfg.Driver),
				slog.String("target", cfg.target()),
				slog.Int("attempts", attempts),
				slog.Duration("duration", logger.Took(start)),
				slog.String("err", err.Error()),
			)
			return nil, fmt.Errorf("db connect %s: %w", cfg.target(), err)
		}
	}

	pool := cfg.MaxConnections
	if cfg.Driver == DriverSQLite {
		// one writer at a time; a single connection avoids SQLITE_BUSY
		// and keeps :memory: databases alive across calls.
		pool = 1
	}
	db.SetMaxOpenConns(pool)
	db.SetMaxIdleConns(pool)
	if cfg.Driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db pragma: %w", err)
		}
	}

	logger.DB.LogAttrs(ctx, slog.LevelInfo, "db.connect",
		slog.String("status", "ok"),
		slog.String("driver", cfg.Driver),
		slog.String("target", cfg.target()),
		slog.Int("pool_open", pool),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.Took(start)),
	)
	return db, nil
}

// Ping reports database liveness; used by health checks.
func Ping(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("db: not initialized")
	}
	return db.PingContext(ctx)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
