package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/pointshop/core/config"
	"github.com/m3rciful/pointshop/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MiddlewareOptions customises DefaultMiddlewares.
type MiddlewareOptions struct {
	// OnLimited answers updates dropped by the rate limiter.
	OnLimited func(tele.Context) error
	// Locks enables per-user serialization of updates when set.
	Locks *middleware.UserLocks
	// OnReply is told about every reply a handler makes.
	OnReply middleware.ReplyObserver
}

// DefaultMiddlewares builds the global chain: panic recovery, rate limiting
// when configured, per-user serialization, then logging context and reply
// counting closest to the handlers.
func DefaultMiddlewares(cfg *coreconfig.Config, mo MiddlewareOptions) []Middleware {
	mws := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}

	if rl := rateLimit(cfg, mo.OnLimited); rl != nil {
		mws = append(mws, Middleware{Name: "rate_limit", Use: rl})
	}
	if mo.Locks != nil {
		mws = append(mws, Middleware{Name: "serialize", Use: middleware.SerializeMiddleware(mo.Locks)})
	}
	return append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.ReplyMetricsMiddleware(mo.OnReply)},
	)
}

func rateLimit(cfg *coreconfig.Config, onLimited func(tele.Context) error) tele.MiddlewareFunc {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return nil
	}
	exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		exclude[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	return middleware.RateLimitMiddleware(middleware.RateLimitOptions{
		Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Exclude:   exclude,
		OnLimited: onLimited,
	})
}
