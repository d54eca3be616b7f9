// Package config loads the storefront configuration: the shared bot core
// settings plus database, points provider, mail, shop, session and ops sections.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/pointshop/core/config"
	coredatabase "github.com/m3rciful/pointshop/core/database"
)

const (
	// SessionBackendMemory keeps sessions in process memory.
	SessionBackendMemory = "memory"
	// SessionBackendRedis keeps sessions in Redis with a TTL.
	SessionBackendRedis = "redis"
)

const (
	defaultPointsTimeout    = 10 * time.Second
	defaultDirectoryTTL     = 10 * time.Minute
	defaultAuthValidity     = 30 * 24 * time.Hour
	defaultIdleTimeout      = 24 * time.Hour
	defaultSweepInterval    = 10 * time.Minute
	defaultWithdrawReason   = "Telegram shop order"
	defaultMailPort         = 587
	defaultRedisKeyPrefix   = "pointshop:session:"
	defaultMailTLSPolicy    = "mandatory"
	defaultNotifyQueueSize  = 64
	defaultSessionRedisAddr = "localhost:6379"
)

// PointsConfig describes the external LMS points provider.
type PointsConfig struct {
	BaseURL      string        `yaml:"base_url" envconfig:"POINTS_BASE_URL"`
	ClientID     string        `yaml:"client_id" envconfig:"POINTS_CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" envconfig:"POINTS_CLIENT_SECRET"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"POINTS_TIMEOUT"`
	DirectoryTTL time.Duration `yaml:"directory_ttl" envconfig:"POINTS_DIRECTORY_TTL"`
}

// MailConfig configures order emails. Mail is disabled when Host is empty.
type MailConfig struct {
	Host            string `yaml:"host" envconfig:"MAIL_HOST"`
	Port            int    `yaml:"port" envconfig:"MAIL_PORT"`
	Username        string `yaml:"username" envconfig:"MAIL_USERNAME"`
	Password        string `yaml:"password" envconfig:"MAIL_PASSWORD"`
	From            string `yaml:"from" envconfig:"MAIL_FROM"`
	Operator        string `yaml:"operator" envconfig:"MAIL_OPERATOR"`
	NotifyPurchaser bool   `yaml:"notify_purchaser" envconfig:"MAIL_NOTIFY_PURCHASER"`
	// TLSPolicy is one of mandatory, opportunistic, none.
	TLSPolicy string `yaml:"tls_policy" envconfig:"MAIL_TLS_POLICY"`
}

// Enabled reports whether order emails should be sent.
func (m MailConfig) Enabled() bool {
	return strings.TrimSpace(m.Host) != ""
}

// ShopConfig holds storefront behaviour settings.
type ShopConfig struct {
	// AuthValidity is how long a matched email stays authorized.
	AuthValidity     time.Duration `yaml:"auth_validity" envconfig:"SHOP_AUTH_VALIDITY"`
	PlaceholderImage string        `yaml:"placeholder_image" envconfig:"SHOP_PLACEHOLDER_IMAGE"`
	WithdrawReason   string        `yaml:"withdraw_reason" envconfig:"SHOP_WITHDRAW_REASON"`
	// SeedFile optionally points to a YAML catalog upserted at startup.
	SeedFile        string `yaml:"seed_file" envconfig:"SHOP_SEED_FILE"`
	NotifyQueueSize int    `yaml:"notify_queue_size" envconfig:"SHOP_NOTIFY_QUEUE_SIZE"`
}

// RedisConfig locates the Redis server used by the redis session backend.
type RedisConfig struct {
	Addr      string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password  string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB        int    `yaml:"db" envconfig:"REDIS_DB"`
	KeyPrefix string `yaml:"key_prefix" envconfig:"REDIS_KEY_PREFIX"`
}

// SessionConfig selects the session backend and its eviction policy.
type SessionConfig struct {
	Backend       string        `yaml:"backend" envconfig:"SESSION_BACKEND"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" envconfig:"SESSION_IDLE_TIMEOUT"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SESSION_SWEEP_INTERVAL"`
	Redis         RedisConfig   `yaml:"redis"`
}

// OpsConfig configures the health and metrics HTTP server. Empty Listen disables it.
type OpsConfig struct {
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Points   PointsConfig        `yaml:"points"`
	Mail     MailConfig          `yaml:"mail"`
	Shop     ShopConfig          `yaml:"shop"`
	Session  SessionConfig       `yaml:"session"`
	Ops      OpsConfig           `yaml:"ops"`
}

// CoreConfig exposes the embedded core configuration to the command runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required values and fills defaults for every section.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	if err := c.Points.normalize(); err != nil {
		return err
	}
	if err := c.Mail.normalize(); err != nil {
		return err
	}
	c.Shop.normalize()
	return c.Session.normalize()
}

func (p *PointsConfig) normalize() error {
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if p.BaseURL == "" {
		return fmt.Errorf("points.base_url is required")
	}
	if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("points.base_url %q is not an absolute URL", p.BaseURL)
	}
	if strings.TrimSpace(p.ClientID) == "" || strings.TrimSpace(p.ClientSecret) == "" {
		return fmt.Errorf("points.client_id and points.client_secret are required")
	}
	if p.Timeout <= 0 {
		p.Timeout = defaultPointsTimeout
	}
	if p.DirectoryTTL <= 0 {
		p.DirectoryTTL = defaultDirectoryTTL
	}
	return nil
}

func (m *MailConfig) normalize() error {
	if !m.Enabled() {
		return nil
	}
	if strings.TrimSpace(m.From) == "" {
		return fmt.Errorf("mail.from is required when mail.host is set")
	}
	if strings.TrimSpace(m.Operator) == "" && !m.NotifyPurchaser {
		return fmt.Errorf("mail.operator is required when mail.host is set and purchaser emails are off")
	}
	if m.Port <= 0 {
		m.Port = defaultMailPort
	}
	m.TLSPolicy = strings.ToLower(strings.TrimSpace(m.TLSPolicy))
	switch m.TLSPolicy {
	case "":
		m.TLSPolicy = defaultMailTLSPolicy
	case "mandatory", "opportunistic", "none":
	default:
		return fmt.Errorf("invalid mail.tls_policy %q; allowed: mandatory, opportunistic, none", m.TLSPolicy)
	}
	return nil
}

func (s *ShopConfig) normalize() {
	if s.AuthValidity <= 0 {
		s.AuthValidity = defaultAuthValidity
	}
	if strings.TrimSpace(s.WithdrawReason) == "" {
		s.WithdrawReason = defaultWithdrawReason
	}
	if s.NotifyQueueSize <= 0 {
		s.NotifyQueueSize = defaultNotifyQueueSize
	}
}

func (s *SessionConfig) normalize() error {
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	switch s.Backend {
	case "":
		s.Backend = SessionBackendMemory
	case SessionBackendMemory:
	case SessionBackendRedis:
		if s.Redis.Addr == "" {
			s.Redis.Addr = defaultSessionRedisAddr
		}
		if s.Redis.KeyPrefix == "" {
			s.Redis.KeyPrefix = defaultRedisKeyPrefix
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis", s.Backend)
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = defaultIdleTimeout
	}
	if s.SweepInterval <= 0 {
		s.SweepInterval = defaultSweepInterval
	}
	return nil
}
