package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/pointshop/core/buildinfo"
	"github.com/m3rciful/pointshop/core/logger"
)

const checkTimeout = 3 * time.Second

// Check probes one dependency for /healthz.
type Check func(ctx context.Context) error

// ServerOptions configures NewServer.
type ServerOptions struct {
	Addr     string
	Registry *prometheus.Registry
	Checks   map[string]Check
}

// Server serves /healthz, /metrics and /version.
type Server struct {
	addr   string
	echo   *echo.Echo
	checks map[string]Check
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewServer builds the ops server. It does not start listening.
func NewServer(opts ServerOptions) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Ops.Debug("request",
				slog.String("event", "http.request"),
				slog.String("op", v.Method+" "+v.URI),
				slog.Int("http_code", v.Status),
				slog.Duration("duration", logger.RoundMS(v.Latency)),
			)
			return nil
		},
	}))

	s := &Server{addr: opts.Addr, echo: e, checks: opts.Checks}

	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	e.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, buildinfo.Current())
	})
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens in the background. Listener failures are logged.
func (s *Server) Start() {
	go func() {
		logger.Ops.Info("ops server listening",
			slog.String("event", "listen"),
			slog.String("listen", s.addr),
		)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Ops.Error("ops server stopped",
				slog.String("event", "listen"),
				slog.String("listen", s.addr),
				slog.String("err", err.Error()),
			)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), checkTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	code := http.StatusOK
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "fail"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	return c.JSON(code, resp)
}
