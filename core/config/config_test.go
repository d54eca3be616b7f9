package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesEnvOverlay(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: from-file
  admin_id: 10
  run_mode: polling
rate_limit:
  interval_ms: 500
  exclude_updates: [" Callback "]
`)
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, int64(10), cfg.Telegram.AdminID)
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)
}

func TestNormalizeRejectsInvalidConfig(t *testing.T) {
	cases := map[string]Config{
		"missing token": {Telegram: TelegramConfig{AdminID: 1}},
		"missing admin": {Telegram: TelegramConfig{Token: "t"}},
		"bad run mode":  {Telegram: TelegramConfig{Token: "t", AdminID: 1, RunMode: "carrier-pigeon"}},
		"webhook without url": {
			Telegram: TelegramConfig{Token: "t", AdminID: 1, RunMode: RunModeWebhook},
		},
		"bad exclude": {
			Telegram:  TelegramConfig{Token: "t", AdminID: 1},
			RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll"}},
		},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := cfg
			assert.Error(t, Normalize(&cfg))
		})
	}
}

func TestNormalizeWebhook(t *testing.T) {
	cfg := Config{
		Telegram: TelegramConfig{Token: "t", AdminID: 1, RunMode: "WEBHOOK"},
		Webhook:  WebhookConfig{URL: "https://example.org/hook", Listen: "0.0.0.0", Port: 8443},
	}
	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, RunModeWebhook, cfg.Telegram.RunMode)
}

func TestNormalizeReportsAllProblems(t *testing.T) {
	cfg := Config{
		Telegram:  TelegramConfig{RunMode: RunModeWebhook},
		RateLimit: RateLimitConfig{IntervalMS: -1, ExcludeUpdates: []string{"", "poll", "MESSAGE"}},
	}
	err := Normalize(&cfg)
	require.Error(t, err)
	for _, want := range []string{"telegram.token", "telegram.admin_id", "webhook.url", "webhook.port", "interval_ms", `"poll"`} {
		assert.Contains(t, err.Error(), want)
	}
	assert.Equal(t, []string{UpdateMessage}, cfg.RateLimit.ExcludeUpdates)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
