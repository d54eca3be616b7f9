// Package logger is the structured slog setup shared by every part of the bot:
// a kv or JSON handler with a fixed key order, an asynchronous writer, and
// per-component loggers carrying update metadata from context.
package logger

import (
	"cmp"
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/pointshop/core/buildinfo"
	coreconfig "github.com/m3rciful/pointshop/core/config"
)

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	closed     bool

	out      *asyncWriter
	files    []io.Closer
	levelVar slog.LevelVar

	debugSampler  = &ratioSampler{}
	traceOverride bool

	// L is the base logger. Until InitLogger runs it discards everything,
	// so packages can log from tests without setup.
	L *slog.Logger

	DB    *slog.Logger
	TG    *slog.Logger
	MIG   *slog.Logger
	TWire *slog.Logger
	SEED  *slog.Logger

	SVCAuth     *slog.Logger
	SVCCatalog  *slog.Logger
	SVCCart     *slog.Logger
	SVCCheckout *slog.Logger

	// Points logs calls to the external points provider.
	Points *slog.Logger
	// Notify logs admin chat and email notifications.
	Notify *slog.Logger
	Ops    *slog.Logger
)

var components = []struct {
	target **slog.Logger
	name   string
}{
	{&DB, "db"},
	{&TG, "tg"},
	{&MIG, "db.migrate"},
	{&TWire, "tg.wire"},
	{&SEED, "db.seed"},
	{&SVCAuth, "service.auth"},
	{&SVCCatalog, "service.catalog"},
	{&SVCCart, "service.cart"},
	{&SVCCheckout, "service.checkout"},
	{&Points, "points"},
	{&Notify, "notify"},
	{&Ops, "ops"},
}

func init() {
	L = slog.New(slog.NewTextHandler(io.Discard, nil))
	wireComponents()
}

func wireComponents() {
	for _, c := range components {
		*c.target = L.With("component", c.name)
	}
}

// settings is the resolved logging section of the config.
type settings struct {
	format   logFormat
	order    []string
	level    slog.Level
	num, den int
	profile  string
}

func settingsFrom(cfg *coreconfig.Config) settings {
	s := settings{
		format:  formatJSON,
		order:   append([]string(nil), defaultKeyOrder...),
		level:   slog.LevelInfo,
		num:     1,
		den:     50,
		profile: "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging
	s.profile = strings.ToLower(cmp.Or(strings.TrimSpace(lc.Profile), "prod"))

	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			s.order = order
		}
	}

	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}

	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		s.num, s.den = parseRatio(spec)
	}
	return s
}

// InitLogger configures the global structured logger. It may be called only once.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		s := settingsFrom(cfg)
		levelVar.Set(s.level)
		debugSampler.Set(s.num, s.den)
		traceOverride = isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))

		sinks, closers := openSinks(cfg)
		files = closers
		out = newAsyncWriter(0, sinks...)

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   out,
			format:   s.format,
			keyOrder: s.order,
		}))
		slog.SetDefault(L)
		wireComponents()

		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", s.profile),
		)
	})
	return initErr
}

// openSinks returns stdout plus the optional log files under logging.dir.
// The errors file only receives WARN and above. A file that cannot be
// opened is reported on the standard logger and skipped.
func openSinks(cfg *coreconfig.Config) ([]sink, []io.Closer) {
	sinks := []sink{newSink(os.Stdout, anyLevel)}
	if cfg == nil {
		return sinks, nil
	}
	dir := strings.TrimSpace(cfg.Logging.Dir)
	if dir == "" {
		return sinks, nil
	}
	var closers []io.Closer
	for _, f := range []struct {
		name string
		min  slog.Level
	}{
		{strings.TrimSpace(cfg.Logging.BotFile), anyLevel},
		{strings.TrimSpace(cfg.Logging.ErrorsFile), slog.LevelWarn},
	} {
		if f.name == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("logger: create log dir %s: %v", dir, err)
			return sinks, closers
		}
		path := filepath.Join(dir, f.name)
		fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Printf("logger: open log file %s: %v", path, err)
			continue
		}
		sinks = append(sinks, newSink(fh, f.min))
		closers = append(closers, fh)
	}
	return sinks, closers
}

// Shutdown flushes buffered log output and closes opened files.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	if out != nil {
		errs = append(errs, out.Close())
	}
	for _, c := range files {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// LogEvent logs attrs under the given event name. A nil logg falls back to
// the logger stored in ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns a logger tagged with the component attribute.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug event should be
// logged. TRACE=1 in the environment lets every event through.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}
