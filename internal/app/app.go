// Package app assembles the storefront: infrastructure from the bot core,
// the repositories, the points provider client, the services and the
// Telegram handlers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/pointshop/core/bootstrap"
	coreconfig "github.com/m3rciful/pointshop/core/config"
	coredatabase "github.com/m3rciful/pointshop/core/database"
	"github.com/m3rciful/pointshop/core/logger"
	coremetrics "github.com/m3rciful/pointshop/core/metrics"
	tg "github.com/m3rciful/pointshop/core/telegram"
	"github.com/m3rciful/pointshop/core/telegram/middleware"
	"github.com/m3rciful/pointshop/core/telegram/router"
	"github.com/m3rciful/pointshop/core/telegram/sender"
	"github.com/m3rciful/pointshop/internal/auth"
	shopbot "github.com/m3rciful/pointshop/internal/bot"
	"github.com/m3rciful/pointshop/internal/cart"
	"github.com/m3rciful/pointshop/internal/catalog"
	"github.com/m3rciful/pointshop/internal/checkout"
	"github.com/m3rciful/pointshop/internal/config"
	"github.com/m3rciful/pointshop/internal/notify"
	"github.com/m3rciful/pointshop/internal/points"
	"github.com/m3rciful/pointshop/internal/session"
	"github.com/m3rciful/pointshop/internal/storage"
	"github.com/m3rciful/pointshop/internal/telemetry"
	"github.com/m3rciful/pointshop/migrations"
)

const (
	shutdownTimeout = 5 * time.Second
	warmupTimeout   = 30 * time.Second
	mailTimeout     = 15 * time.Second
)

// App owns every long-lived component of the running bot.
type App struct {
	cfg *config.Config

	db       *sqlx.DB
	store    *storage.Store
	bot      *tele.Bot
	points   *points.Client
	sessions session.Store
	memory   *session.MemoryStore
	redis    *redis.Client
	locks    *middleware.UserLocks
	promReg  *prometheus.Registry
	metrics  *telemetry.Metrics
	notifyQ  *sender.Dispatcher
	handlers *shopbot.Handlers
	registry *tg.Registry
	ops      *coremetrics.Server

	stopBackground context.CancelFunc
}

// Bootstrap runs the core bootstrap pipeline (logger, database, migrations,
// catalog seed) and wires the services.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
		Modules: bootstrap.Modules{
			Seeders: []bootstrap.Seeder{storage.CatalogSeeder(cfg.Shop.SeedFile)},
		},
	})
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, db: res.DB, store: storage.New(res.DB)}
	if err := a.wire(); err != nil {
		_ = a.close()
		return nil, err
	}
	return a, nil
}

// CoreConfig implements cmd.ConfigCarrier.
func (a *App) CoreConfig() *coreconfig.Config {
	return a.cfg.CoreConfig()
}

func (a *App) wire() error {
	var err error
	a.promReg = coremetrics.NewRegistry()
	a.metrics = telemetry.New(a.promReg)

	if a.bot, err = tg.NewBot(&a.cfg.Config); err != nil {
		return err
	}

	a.points, err = points.New(points.Options{
		BaseURL:      a.cfg.Points.BaseURL,
		ClientID:     a.cfg.Points.ClientID,
		ClientSecret: a.cfg.Points.ClientSecret,
		Timeout:      a.cfg.Points.Timeout,
		DirectoryTTL: a.cfg.Points.DirectoryTTL,
		Metrics:      a.metrics,
	})
	if err != nil {
		return err
	}

	if err := a.wireSessions(); err != nil {
		return err
	}

	notifier, err := a.notifier()
	if err != nil {
		return err
	}

	authMgr := auth.NewManager(auth.Options{
		Sessions:  a.sessions,
		Users:     a.store.Users,
		Directory: a.points,
		Balances:  a.points,
		Validity:  a.cfg.Shop.AuthValidity,
	})
	renderer := shopbot.NewCardRenderer(a.bot, a.cfg.Shop.PlaceholderImage)
	browser := catalog.NewBrowser(a.sessions, authMgr, a.store.Products, a.store.Cart, renderer)
	carts := cart.NewManager(a.store.Products, a.store.Cart)
	coordinator := checkout.NewCoordinator(checkout.Options{
		Auth:            authMgr,
		Cart:            a.store.Cart,
		Stock:           a.store.Products,
		Wallet:          a.points,
		Reconciliations: a.store.Reconciliations,
		Notifier:        notifier,
		Metrics:         a.metrics,
		Reason:          a.cfg.Shop.WithdrawReason,
	})

	a.handlers = shopbot.New(shopbot.Options{
		Auth:            authMgr,
		Catalog:         browser,
		Cart:            carts,
		Checkout:        coordinator,
		Sessions:        a.sessions,
		Reconciliations: a.store.Reconciliations,
	})
	a.registry = tg.NewRegistry()
	if err := a.handlers.Register(a.registry); err != nil {
		return fmt.Errorf("app: register handlers: %w", err)
	}
	a.locks = middleware.NewUserLocks()

	if a.cfg.Ops.Listen != "" {
		a.ops = coremetrics.NewServer(coremetrics.ServerOptions{
			Addr:     a.cfg.Ops.Listen,
			Registry: a.promReg,
			Checks:   a.healthChecks(),
		})
	}
	return nil
}

func (a *App) wireSessions() error {
	sc := a.cfg.Session
	if sc.Backend != config.SessionBackendRedis {
		a.memory = session.NewMemoryStore(sc.IdleTimeout)
		a.sessions = a.memory
		return nil
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     sc.Redis.Addr,
		Password: sc.Redis.Password,
		DB:       sc.Redis.DB,
	})
	store := session.NewRedisStore(a.redis, sc.Redis.KeyPrefix, sc.IdleTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("app: redis session backend: %w", err)
	}
	a.sessions = store
	return nil
}

// notifier fans orders out to the admin chat and, when configured, email.
// Deliveries run on a dedicated dispatcher.
func (a *App) notifier() (checkout.Notifier, error) {
	a.notifyQ = sender.NewDispatcher(sender.Options{
		QueueSize:  a.cfg.Shop.NotifyQueueSize,
		Workers:    2,
		MaxRetries: 2,
	})
	if err := telemetry.RegisterQueueFailures(a.promReg, "notify", a.notifyQ.ErrorCount); err != nil {
		return nil, fmt.Errorf("app: notify queue metrics: %w", err)
	}
	fan := notify.Fanout{notify.NewChat(a.bot, a.cfg.Telegram.AdminID, a.notifyQ, a.metrics)}

	mc := a.cfg.Mail
	if !mc.Enabled() {
		logger.Notify.Info("order emails disabled", slog.String("event", "notify.mail"))
		return fan, nil
	}
	transport, err := notify.NewSMTPTransport(notify.SMTPOptions{
		Host:      mc.Host,
		Port:      mc.Port,
		Username:  mc.Username,
		Password:  mc.Password,
		TLSPolicy: mc.TLSPolicy,
		Timeout:   mailTimeout,
	})
	if err != nil {
		return nil, err
	}
	mailer := notify.NewMailer(transport, notify.MailerOptions{
		From:            mc.From,
		Operator:        mc.Operator,
		NotifyPurchaser: mc.NotifyPurchaser,
		Queue:           a.notifyQ,
		Metrics:         a.metrics,
	})
	if err := mailer.Validate(); err != nil {
		return nil, fmt.Errorf("app: mail config: %w", err)
	}
	return append(fan, mailer), nil
}

func (a *App) healthChecks() map[string]coremetrics.Check {
	checks := map[string]coremetrics.Check{
		"database": func(ctx context.Context) error { return coredatabase.Ping(ctx, a.db) },
		"points_directory": func(context.Context) error {
			if !a.points.Ready() {
				return errors.New("directory not loaded")
			}
			return nil
		},
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	return checks
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	h := a.handlers
	routes := router.All(a.registry, router.Options{
		AdminID:       a.cfg.Telegram.AdminID,
		OnAdminReject: h.OnAdminReject,
		Machine:       h.Machine(),
		Fallbacks:     h,
	})

	return tg.RunOptions{
		Config:   &a.cfg.Config,
		Registry: a.registry,
		Bot:      a.bot,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, tg.MiddlewareOptions{
			OnLimited: h.OnRateLimited,
			Locks:     a.locks,
			OnReply:   a.metrics.Reply,
		}),
		Routes:  routes,
		OnStart: a.start,
		OnStop:  a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, _ tg.Runtime) error {
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopBackground = cancel

	if a.memory != nil {
		go a.memory.Run(bg, a.cfg.Session.SweepInterval)
	}
	go a.warmDirectory(bg)
	if a.ops != nil {
		a.ops.Start()
	}
	return nil
}

// warmDirectory loads the identity directory so the first sign-in does not wait on it.
func (a *App) warmDirectory(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()
	if err := a.points.RefreshDirectory(ctx); err != nil {
		logger.Points.LogAttrs(ctx, slog.LevelWarn, "directory.warmup",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	if a.stopBackground != nil {
		a.stopBackground()
	}
	var errs []error
	if a.ops != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		errs = append(errs, a.ops.Shutdown(sctx))
		cancel()
	}
	errs = append(errs, a.close())
	return errors.Join(errs...)
}

// close releases resources in reverse dependency order. Pending
// notifications are delivered before the database goes away.
func (a *App) close() error {
	var errs []error
	if a.notifyQ != nil {
		a.notifyQ.Close()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
