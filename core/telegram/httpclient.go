package telegram

import (
	"net/http"
	"time"

	"github.com/m3rciful/pointshop/core/telegram/netutil"
)

const (
	apiHeaderTimeout = 5 * time.Second
	apiClientTimeout = 30 * time.Second
	apiRetries       = 3
	apiRetryBackoff  = 2 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. Timeouts are
// stretched by longPoll so getUpdates is not cut off while Telegram holds
// the request open.
func BuildHTTPClient(longPoll time.Duration) *http.Client {
	longPoll = max(longPoll, 0)
	return &http.Client{
		Timeout: apiClientTimeout + longPoll,
		Transport: &netutil.RetryTransport{
			Base:       netutil.Transport(apiHeaderTimeout + longPoll),
			MaxRetries: apiRetries,
			Backoff:    apiRetryBackoff,
		},
	}
}
