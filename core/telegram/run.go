package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/pointshop/core/config"
	"github.com/m3rciful/pointshop/core/logger"
	tghelpers "github.com/m3rciful/pointshop/core/telegram/helpers"
	tgsender "github.com/m3rciful/pointshop/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to a telebot endpoint (command, callback, tele.OnText...).
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry
	// Bot is used as-is when set; otherwise NewBot builds one from Config.
	Bot *tele.Bot

	// Dispatcher carries helper replies. One is built from
	// DispatcherOptions when nil.
	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	// KeepWebhook skips the deleteWebhook call in long-poll mode.
	KeepWebhook bool
	// InlineReplies sends helper replies synchronously.
	InlineReplies bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is what lifecycle hooks get to see.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// NewBot builds an offline bot with the poller and HTTP client derived
// from cfg, so services can hold it before RunTelegram starts it.
func NewBot(cfg *coreconfig.Config) (*tele.Bot, error) {
	if cfg == nil {
		return nil, errors.New("telegram: nil config")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  BuildPoller(cfg),
		Client:  BuildHTTPClient(LongPollTimeout(cfg)),
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: new bot: %w", err)
	}
	return bot, nil
}

// RunTelegram installs middlewares and routes, starts the bot and blocks
// until ctx is done or the poller stops. Cancellation is a clean exit.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return errors.New("telegram: nil config")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}

	start := time.Now()
	bot := opts.Bot
	if bot == nil {
		var err error
		if bot, err = NewBot(opts.Config); err != nil {
			return err
		}
	}
	if err := identify(bot); err != nil {
		return err
	}
	logMode(ctx, bot, opts, time.Since(start))

	rt := Runtime{Bot: bot, Dispatcher: opts.Dispatcher, Registry: opts.Registry}
	if rt.Dispatcher == nil {
		rt.Dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	if !opts.InlineReplies {
		tghelpers.SetDispatcher(rt.Dispatcher)
	}
	release := func() {
		rt.Dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}

	install(bot, opts)
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			release()
			return err
		}
	}

	runErr := serve(ctx, bot)

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(ctx, rt)
	}
	release()

	if stopErr != nil {
		return stopErr
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// identify fills bot.Me, which offline bots leave empty.
func identify(bot *tele.Bot) error {
	if bot.Me != nil && bot.Me.ID != 0 {
		return nil
	}
	raw, err := bot.Raw("getMe", nil)
	if err != nil {
		return fmt.Errorf("telegram: getMe: %w", err)
	}
	var resp struct {
		Result *tele.User `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("telegram: decode getMe: %w", err)
	}
	if resp.Result == nil {
		return errors.New("telegram: getMe returned no user")
	}
	bot.Me = resp.Result
	return nil
}

func logMode(ctx context.Context, bot *tele.Bot, opts RunOptions, took time.Duration) {
	attrs := []slog.Attr{
		slog.String("bot", bot.Me.Username),
		slog.Duration("duration", logger.RoundMS(took)),
	}
	if hook, ok := bot.Poller.(*tele.Webhook); ok {
		public := ""
		if hook.Endpoint != nil {
			public = hook.Endpoint.PublicURL
		}
		logger.Info(ctx, "tg", "tg.mode", append(attrs,
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", hook.Listen),
			slog.String("public_url", public),
		)...)
		return
	}

	logger.Info(ctx, "tg", "tg.mode", append(attrs,
		slog.String("mode", coreconfig.RunModeLongpoll),
		slog.Duration("timeout", LongPollTimeout(opts.Config)),
	)...)
	if opts.KeepWebhook {
		return
	}
	// A leftover webhook makes getUpdates fail with 409.
	if err := bot.RemoveWebhook(false); err != nil {
		logger.Warn(ctx, "tg", "tg.delete_webhook", slog.String("status", "fail"), slog.String("err", err.Error()))
		return
	}
	logger.Debug(ctx, "tg", "tg.delete_webhook", slog.String("status", "ok"))
}

func install(bot *tele.Bot, opts RunOptions) {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	InitBotCommands(bot, opts.Registry)
}

// serve runs the poller until it exits or ctx is done.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		bot.Stop()
		<-done
		return ctx.Err()
	}
}
