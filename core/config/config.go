// Package config holds the settings shared by every bot built on the core:
// Telegram access, the webhook listener, logging and rate limiting.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Run modes for receiving updates. "polling" is accepted as an alias of longpoll.
const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

// Update kinds accepted by rate_limit.exclude_updates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

var updateKinds = []string{UpdateCallback, UpdateMessage, UpdateInlineQuery}

// TelegramConfig identifies the bot and its administrator. AdminID is the
// chat that receives order summaries and may run admin commands.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds is the getUpdates timeout; 0 means 10s.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig is read by logger.InitLogger.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
	// KeysOrder is a comma-separated key list, or "default".
	KeysOrder string `yaml:"keys_order"`
	// DebugSample keeps one of every N debug lines: "1/50" or "50".
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	// ErrorsFile receives WARN and above only.
	ErrorsFile string `yaml:"errors_file"`
	// Profile is "dev", "debug" or "prod"; dev and debug force kv output.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig spaces out updates from one user. ExcludeUpdates lists
// update kinds that bypass the limit.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config is embedded by application configs.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads and normalizes a core-only configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadInto decodes the YAML file at path into dst, a pointer to a struct,
// then overlays environment variables from envconfig tags. Environment
// wins over the file.
func LoadInto(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("config: env overlay: %w", err)
	}
	return nil
}

// Normalize fills defaults in place and reports every invalid setting at once.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	tc := &cfg.Telegram
	if strings.TrimSpace(tc.Token) == "" {
		fail("telegram.token is required")
	}
	if tc.AdminID == 0 {
		fail("telegram.admin_id is required")
	}
	if tc.LongPollTimeoutSeconds < 0 {
		fail("telegram.longpoll_timeout_seconds must be >= 0")
	}

	switch mode := strings.ToLower(strings.TrimSpace(tc.RunMode)); mode {
	case "", "polling", RunModeLongpoll:
		tc.RunMode = RunModeLongpoll
	case RunModeWebhook:
		tc.RunMode = RunModeWebhook
		wc := cfg.Webhook
		if strings.TrimSpace(wc.URL) == "" {
			fail("webhook.url is required in webhook mode")
		}
		if strings.TrimSpace(wc.Listen) == "" {
			fail("webhook.listen is required in webhook mode")
		}
		if wc.Port <= 0 {
			fail("webhook.port must be > 0 in webhook mode")
		}
	default:
		fail("telegram.run_mode %q: want %s or %s", tc.RunMode, RunModeLongpoll, RunModeWebhook)
	}

	if cfg.RateLimit.IntervalMS < 0 {
		fail("rate_limit.interval_ms must be >= 0")
	}
	kinds := cfg.RateLimit.ExcludeUpdates[:0]
	for _, v := range cfg.RateLimit.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		switch {
		case kind == "":
		case slices.Contains(updateKinds, kind):
			kinds = append(kinds, kind)
		default:
			fail("rate_limit.exclude_updates %q: want one of %s", v, strings.Join(updateKinds, ", "))
		}
	}
	cfg.RateLimit.ExcludeUpdates = kinds

	return errors.Join(errs...)
}
