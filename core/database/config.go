package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

const (
	// DriverPostgres selects lib/pq against a Postgres server.
	DriverPostgres = "postgres"
	// DriverSQLite selects mattn/go-sqlite3; Path names the database file.
	DriverSQLite = "sqlite3"

	defaultConnectTimeout = 30 * time.Second
	defaultMaxConnections = 10
)

// Config holds database connection settings.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	Path           string `yaml:"path" envconfig:"DB_PATH"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// ConnectTimeout bounds how long startup waits for Postgres to accept connections.
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"DB_CONNECT_TIMEOUT"`
}

// Normalize fills defaults and checks what the selected driver needs.
// "postgresql" and "sqlite" are accepted as aliases.
func (c *Config) Normalize() error {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "", "postgresql", DriverPostgres:
		c.Driver = DriverPostgres
		if strings.TrimSpace(c.Name) == "" {
			return errors.New("database.name is required for postgres")
		}
		c.Host = cmpOr(c.Host, "localhost")
		c.Port = cmpOr(c.Port, "5432")
		c.SSLMode = cmpOr(c.SSLMode, "disable")
	case "sqlite", DriverSQLite:
		c.Driver = DriverSQLite
		if strings.TrimSpace(c.Path) == "" {
			return errors.New("database.path is required for sqlite3")
		}
	default:
		return fmt.Errorf("database.driver %q: want postgres or sqlite3", c.Driver)
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = defaultMaxConnections
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	return nil
}

// DSN is the data source name for database/sql. Postgres uses the URL
// form, which lib/pq and golang-migrate both accept, so credentials with
// spaces or '@' survive.
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// target describes the database in logs without credentials.
func (c Config) target() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return net.JoinHostPort(c.Host, c.Port) + "/" + c.Name
}

func cmpOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
