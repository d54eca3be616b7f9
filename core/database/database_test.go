package database

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigNormalize(t *testing.T) {
	c := Config{Name: "shop"}
	require.NoError(t, c.Normalize())
	assert.Equal(t, DriverPostgres, c.Driver)
	assert.Equal(t, "localhost", c.Host)
	assert.Equal(t, "5432", c.Port)
	assert.Equal(t, 10, c.MaxConnections)
	assert.Equal(t, 30*time.Second, c.ConnectTimeout)

	c = Config{Driver: "sqlite", Path: ":memory:"}
	require.NoError(t, c.Normalize())
	assert.Equal(t, DriverSQLite, c.Driver)
	assert.Equal(t, ":memory:", c.DSN())

	assert.Error(t, (&Config{Driver: "sqlite3"}).Normalize())
	assert.Error(t, (&Config{Driver: "mysql"}).Normalize())
	assert.Error(t, (&Config{}).Normalize())
}

func TestPostgresDSNEscapesCredentials(t *testing.T) {
	c := Config{Driver: DriverPostgres, User: "shop", Password: "p@ss word", Host: "db", Port: "5432", Name: "shop", SSLMode: "disable"}
	assert.Equal(t, "postgres://shop:p%40ss%20word@db:5432/shop?sslmode=disable", c.DSN())
	assert.Equal(t, "db:5432/shop", c.target())
}

func TestRunMigrationsSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Driver: DriverSQLite, Path: ":memory:"}
	require.NoError(t, cfg.Normalize())
	db, err := Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	src := fstest.MapFS{
		"sqlite3/0001_items.up.sql":   {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY);")},
		"sqlite3/0001_items.down.sql": {Data: []byte("DROP TABLE items;")},
		"sqlite3/0002_more.up.sql":    {Data: []byte("ALTER TABLE items ADD COLUMN name TEXT;")},
		"sqlite3/0002_more.down.sql":  {Data: []byte("SELECT 1;")},
	}
	require.NoError(t, RunMigrations(ctx, cfg, db, src))
	// second run is a no-op
	require.NoError(t, RunMigrations(ctx, cfg, db, src))

	_, err = db.Exec("INSERT INTO items (id, name) VALUES (1, 'x')")
	assert.NoError(t, err)
}

func TestRunMigrationsReportsBadSQL(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Driver: DriverSQLite, Path: ":memory:"}
	require.NoError(t, cfg.Normalize())
	db, err := Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	src := fstest.MapFS{"sqlite3/0001_bad.up.sql": {Data: []byte("CREATE TABLE (;")}}
	assert.Error(t, RunMigrations(ctx, cfg, db, src))
}

func TestUpFilesAndApplied(t *testing.T) {
	src := fstest.MapFS{
		"postgres/0001_a.up.sql":   {Data: []byte("")},
		"postgres/0001_a.down.sql": {Data: []byte("")},
		"postgres/0003_c.up.sql":   {Data: []byte("")},
		"postgres/0002_b.up.sql":   {Data: []byte("")},
	}
	files := upFiles(src, "postgres")
	assert.Equal(t, []string{"0001_a.up.sql", "0002_b.up.sql", "0003_c.up.sql"}, files)
	assert.Equal(t, []string{"0002_b.up.sql", "0003_c.up.sql"}, appliedBetween(files, 1, 3))
	assert.Nil(t, appliedBetween(files, 3, 3))
}

func TestConnectSQLiteEnablesForeignKeys(t *testing.T) {
	cfg := Config{Driver: DriverSQLite, Path: ":memory:"}
	require.NoError(t, cfg.Normalize())
	db, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var on int
	require.NoError(t, db.Get(&on, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, on)
	assert.NoError(t, Ping(context.Background(), db))
	assert.Error(t, Ping(context.Background(), nil))
}
