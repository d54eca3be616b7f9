// Package points talks to the LMS identity and gamification points provider:
// client-credentials tokens, the user directory, balances and withdrawals.
package points

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/m3rciful/pointshop/core/logger"
	"github.com/m3rciful/pointshop/core/telegram/netutil"
	"github.com/m3rciful/pointshop/internal/domain"
	"github.com/m3rciful/pointshop/internal/telemetry"
)

const (
	// TokenMargin is the remaining lifetime under which a cached token is refreshed.
	TokenMargin = 60 * time.Second

	defaultTimeout      = 10 * time.Second
	defaultDirectoryTTL = 10 * time.Minute
	defaultTokenLife    = 30 * time.Minute
	maxBodyBytes        = 8 << 20
	apiPrefix           = "/api/v3"
)

// Options configures a Client.
type Options struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	// Timeout bounds every outbound call, token exchange included.
	Timeout      time.Duration
	DirectoryTTL time.Duration
	HTTPClient   *http.Client
	Metrics      *telemetry.Metrics
	Now          func() time.Time
}

// Client is safe for concurrent use. Construct one per process and share it.
type Client struct {
	base    string
	timeout time.Duration
	http    *http.Client
	creds   *clientcredentials.Config
	metrics *telemetry.Metrics
	now     func() time.Time
	flight  singleflight.Group

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time

	dirMu      sync.RWMutex
	dir        map[string]domain.Identity
	dirFetched time.Time
	dirTTL     time.Duration
}

// New builds a Client. BaseURL is the provider root, e.g. https://lms.example.com.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("points: base url is required")
	}
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, errors.New("points: client credentials are required")
	}
	c := &Client{
		base:    base,
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
		metrics: opts.Metrics,
		now:     opts.Now,
		dirTTL:  opts.DirectoryTTL,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.dirTTL <= 0 {
		c.dirTTL = defaultDirectoryTTL
	}
	if c.http == nil {
		// No transport retries: a replayed withdraw could debit twice.
		c.http = &http.Client{Timeout: c.timeout, Transport: netutil.Transport(c.timeout)}
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.creds = &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     base + apiPrefix + "/token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return c, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.base + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// get performs an idempotent XML read. Transient network errors are retried once.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	start := time.Now()
	err := c.getOnce(ctx, op, path, query, out)
	if err != nil && netutil.ShouldRetry(err) && ctx.Err() == nil {
		logger.Points.LogAttrs(ctx, slog.LevelWarn, "points.retry",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		err = c.getOnce(ctx, op, path, query, out)
	}
	c.logCall(ctx, op, start, err)
	return err
}

func (c *Client) getOnce(ctx context.Context, op, path string, query url.Values, out any) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return fmt.Errorf("points: %s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("points: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(op, resp); err != nil {
		return err
	}
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("points: %s: decode: %w", op, err)
	}
	return nil
}

func (c *Client) checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.dropToken()
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func (c *Client) logCall(ctx context.Context, op string, start time.Time, err error) {
	c.metrics.ProviderCall(op, err)
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("op", op),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("err", err.Error()))
	} else if !logger.ShouldSampleDebug() {
		return
	}
	logger.Points.LogAttrs(ctx, level, "points.call", attrs...)
}

// Points returns the balance of one provider user.
func (c *Client) Points(ctx context.Context, externalUserID string) (Balance, error) {
	var resp pointsResponse
	q := url.Values{"userIds": {externalUserID}}
	if err := c.get(ctx, "get_points", "/gamification/points", q, &resp); err != nil {
		return Balance{}, err
	}
	return balanceFor(resp, externalUserID), nil
}

// Withdraw debits amount points from the user. It is never retried. A failure
// that cannot rule out the debit having happened is an *UncertainError.
func (c *Client) Withdraw(ctx context.Context, externalUserID string, amount int64, reason string) (err error) {
	const op = "withdraw"
	start := time.Now()
	defer func() { c.logCall(ctx, op, start, err) }()

	if amount <= 0 {
		return fmt.Errorf("points: %s: amount must be positive, got %d", op, amount)
	}
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}
	body, err := xml.Marshal(withdrawRequest{UserID: externalUserID, Amount: amount, Reason: reason})
	if err != nil {
		return fmt.Errorf("points: %s: encode: %w", op, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint("/gamification/points/withdraw", nil), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("points: %s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Accept", "application/xml")

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("points: %s: %w", op, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if notSent(err) {
			return fmt.Errorf("points: %s: %w", op, err)
		}
		return &UncertainError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.dropToken()
	}
	statusErr := &StatusError{Op: op, Status: resp.StatusCode}
	if resp.StatusCode >= 500 {
		return &UncertainError{Err: statusErr}
	}
	return statusErr
}
