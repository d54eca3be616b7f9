package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/pointshop/core/buildinfo"
	coreconfig "github.com/m3rciful/pointshop/core/config"
	coretelegram "github.com/m3rciful/pointshop/core/telegram"
)

func TestResolveConfigPathPrecedence(t *testing.T) {
	assert.Equal(t, "flag.yaml", ResolveConfigPath("flag.yaml", "env.yaml", "config.yaml"))
	assert.Equal(t, "env.yaml", ResolveConfigPath("", "env.yaml", "config.yaml"))
	assert.Equal(t, "config.yaml", ResolveConfigPath("", "", "config.yaml"))
	assert.Empty(t, ResolveConfigPath("", "", ""))
}

func TestParseFlags(t *testing.T) {
	f, err := parseFlags(Options{Args: []string{"-c", "x.yaml"}})
	require.NoError(t, err)
	assert.Equal(t, "x.yaml", f.config)
	assert.False(t, f.version)

	_, err = parseFlags(Options{Args: []string{"--bogus"}})
	assert.Error(t, err)
}

func TestRunPrintsVersion(t *testing.T) {
	var out bytes.Buffer
	err := Run(Options{
		Args:       []string{"--version"},
		Stdout:     &out,
		LoadConfig: func(string) (ConfigCarrier, error) { t.Fatal("config must not load"); return nil, nil },
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { t.Fatal("must not bootstrap"); return nil, nil },
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), buildinfo.Version)
}

type stubConfig struct{ core *coreconfig.Config }

func (s stubConfig) CoreConfig() *coreconfig.Config { return s.core }

func TestRunCheckValidatesWithoutBootstrap(t *testing.T) {
	var out bytes.Buffer
	var loaded string
	err := Run(Options{
		Args:   []string{"--check", "--config", "shop.yaml"},
		Stdout: &out,
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loaded = path
			return stubConfig{core: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) { t.Fatal("must not bootstrap"); return nil, nil },
	})
	require.NoError(t, err)
	assert.Equal(t, "shop.yaml", loaded)
	assert.Equal(t, "shop.yaml: ok\n", out.String())
}

func TestRunReportsConfigErrors(t *testing.T) {
	err := Run(Options{
		Args:       []string{"--check", "-c", "shop.yaml"},
		Stdout:     &bytes.Buffer{},
		LoadConfig: func(string) (ConfigCarrier, error) { return nil, errors.New("telegram.token is required") },
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { return nil, nil },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram.token is required")

	err = Run(Options{
		Args:       []string{"--check", "-c", "shop.yaml"},
		Stdout:     &bytes.Buffer{},
		LoadConfig: func(string) (ConfigCarrier, error) { return stubConfig{}, nil },
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { return nil, nil },
	})
	assert.Error(t, err)
}

func TestLifecycleHooksWrapApp(t *testing.T) {
	var calls []string
	ro := coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { calls = append(calls, "start"); return nil },
		OnStop:  func(context.Context, coretelegram.Runtime) error { calls = append(calls, "stop"); return nil },
	}
	withLifecycleLogs(&ro, time.Now())
	require.NoError(t, ro.OnStart(context.Background(), coretelegram.Runtime{}))
	require.NoError(t, ro.OnStop(context.Background(), coretelegram.Runtime{}))
	assert.Equal(t, []string{"start", "stop"}, calls)

	failing := coretelegram.RunOptions{OnStart: func(context.Context, coretelegram.Runtime) error { return errors.New("redis down") }}
	withLifecycleLogs(&failing, time.Now())
	assert.EqualError(t, failing.OnStart(context.Background(), coretelegram.Runtime{}), "redis down")
}
