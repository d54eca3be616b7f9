package points

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/m3rciful/pointshop/core/logger"
)

// AccessToken returns a bearer token, refreshing it when less than
// TokenMargin of its lifetime remains. Concurrent refreshes share one exchange.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if tok, ok := c.cachedToken(); ok {
		return tok, nil
	}
	v, err, _ := c.flight.Do("token", func() (any, error) {
		if tok, ok := c.cachedToken(); ok {
			return tok, nil
		}
		// Waiters share this exchange, so one caller going away must not fail the rest.
		return c.exchangeToken(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) cachedToken() (string, bool) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token == "" || c.tokenExpiry.Sub(c.now()) <= TokenMargin {
		return "", false
	}
	return c.token, true
}

func (c *Client) dropToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.tokenMu.Unlock()
}

func (c *Client) exchangeToken(ctx context.Context) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	tok, err := c.creds.Token(ctx)
	c.logCall(ctx, "token", start, err)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = c.now().Add(defaultTokenLife)
	}
	c.tokenMu.Lock()
	c.token = tok.AccessToken
	c.tokenExpiry = expiry
	c.tokenMu.Unlock()

	logger.Points.LogAttrs(ctx, slog.LevelDebug, "points.token",
		slog.String("cache", "refresh"),
		slog.Time("expires_at", expiry),
	)
	return tok.AccessToken, nil
}
