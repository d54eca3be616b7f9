// Package cmd is the shared entry point of bots built on the core: flag
// parsing, config loading, bootstrap and the Telegram run loop.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/m3rciful/pointshop/core/buildinfo"
	coreconfig "github.com/m3rciful/pointshop/core/config"
	"github.com/m3rciful/pointshop/core/logger"
	coretelegram "github.com/m3rciful/pointshop/core/telegram"
)

const defaultConfigEnv = "CONFIG_PATH"

// ConfigCarrier exposes the core part of an application config.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is a bootstrapped application ready to run.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load, bootstrap and run an application.
type Options struct {
	// Name is the flag set name in usage output.
	Name string
	// Args are the arguments without the program name; os.Args[1:] when nil.
	Args   []string
	Stdout io.Writer

	// ConfigEnvVar names the variable holding the config path; CONFIG_PATH by default.
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// Run parses flags and either prints the version, validates the config
// (--check) or bootstraps and runs the bot until SIGINT or SIGTERM.
func Run(opts Options) error {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return errors.New("cmd: LoadConfig and Bootstrap are required")
	}
	flags, err := parseFlags(opts)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cmd: %w", err)
	}
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}
	if flags.version {
		_, err := fmt.Fprintln(out, buildinfo.Current().String())
		return err
	}

	env := opts.ConfigEnvVar
	if env == "" {
		env = defaultConfigEnv
	}
	path := ResolveConfigPath(flags.config, os.Getenv(env), opts.DefaultConfigPath)
	if path == "" {
		return fmt.Errorf("cmd: no config path; use --config or %s", env)
	}
	cfg, err := loadConfig(opts, path)
	if err != nil {
		return err
	}
	if flags.check {
		_, err := fmt.Fprintf(out, "%s: ok\n", path)
		return err
	}

	app, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	shutdown := opts.ShutdownLogger
	if shutdown == nil {
		shutdown = logger.Shutdown
	}
	defer func() {
		if err := shutdown(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	withLifecycleLogs(&runOpts, time.Now())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

func loadConfig(opts Options, path string) (ConfigCarrier, error) {
	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("cmd: load config: %w", err)
	}
	if cfg == nil || cfg.CoreConfig() == nil {
		return nil, errors.New("cmd: config has no core section")
	}
	return cfg, nil
}

// withLifecycleLogs wraps the start and stop hooks with the app.ready and
// app.shutdown lines.
func withLifecycleLogs(ro *coretelegram.RunOptions, startedAt time.Time) {
	appLog := logger.Component("app")
	onStart, onStop := ro.OnStart, ro.OnStop
	ro.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		appLog.LogAttrs(ctx, slog.LevelInfo, "app.ready",
			slog.String("version", buildinfo.Version),
			slog.Duration("startup_duration", logger.Took(startedAt)),
		)
		return nil
	}
	ro.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		appLog.LogAttrs(ctx, slog.LevelInfo, "app.shutdown")
		if onStop != nil {
			return onStop(ctx, rt)
		}
		return nil
	}
}

type cliFlags struct {
	config  string
	version bool
	check   bool
}

func parseFlags(opts Options) (cliFlags, error) {
	name := opts.Name
	if name == "" {
		name = "bot"
	}
	args := opts.Args
	if args == nil && len(os.Args) > 1 {
		args = os.Args[1:]
	}

	var f cliFlags
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(&f.config, "config", "c", "", "path to the YAML config file")
	fs.BoolVar(&f.version, "version", false, "print build information and exit")
	fs.BoolVar(&f.check, "check", false, "validate the config and exit")
	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return f, nil
}

// ResolveConfigPath returns the first non-empty of flag, env and fallback.
func ResolveConfigPath(flagValue, envValue, fallback string) string {
	for _, v := range []string{flagValue, envValue, fallback} {
		if v != "" {
			return v
		}
	}
	return ""
}
