package points

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/pointshop/core/logger"
	"github.com/m3rciful/pointshop/internal/domain"
)

// ListUsers fetches the whole directory and replaces the cache with it. On
// failure, or when the provider returns no usable entries, the previous cache
// stays in place and ErrDirectoryUnavailable is returned.
func (c *Client) ListUsers(ctx context.Context) ([]domain.Identity, error) {
	v, err, _ := c.flight.Do("directory", func() (any, error) {
		return c.fetchDirectory(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Identity), nil
}

func (c *Client) fetchDirectory(ctx context.Context) ([]domain.Identity, error) {
	var resp userListResponse
	if err := c.get(ctx, "list_users", "/user", nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}

	users := make([]domain.Identity, 0, len(resp.Profiles))
	byEmail := make(map[string]domain.Identity, len(resp.Profiles))
	for _, p := range resp.Profiles {
		id, ok := p.identity()
		if !ok {
			continue
		}
		users = append(users, id)
		byEmail[id.Email] = id
	}
	if len(byEmail) == 0 {
		logger.Points.LogAttrs(ctx, slog.LevelWarn, "points.directory",
			slog.String("status", "fail"),
			slog.String("reason", "empty"),
		)
		return nil, fmt.Errorf("%w: provider returned no users", ErrDirectoryUnavailable)
	}

	c.dirMu.Lock()
	c.dir = byEmail
	c.dirFetched = c.now()
	c.dirMu.Unlock()

	logger.Points.LogAttrs(ctx, slog.LevelInfo, "points.directory",
		slog.String("cache", "refresh"),
		slog.Int("users", len(byEmail)),
	)
	return users, nil
}

// RefreshDirectory reloads the cached directory.
func (c *Client) RefreshDirectory(ctx context.Context) error {
	_, err := c.ListUsers(ctx)
	return err
}

// Ready reports whether a non-empty directory is cached.
func (c *Client) Ready() bool {
	c.dirMu.RLock()
	defer c.dirMu.RUnlock()
	return len(c.dir) > 0
}

func (c *Client) directoryStale() bool {
	c.dirMu.RLock()
	defer c.dirMu.RUnlock()
	return len(c.dir) == 0 || c.now().Sub(c.dirFetched) >= c.dirTTL
}

// LookupEmail finds an identity by exact, case-insensitive email. An empty or
// expired cache is refreshed first; if that fails while an older copy exists,
// the older copy is used.
func (c *Client) LookupEmail(ctx context.Context, email string) (domain.Identity, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if c.directoryStale() {
		if err := c.RefreshDirectory(ctx); err != nil && !c.Ready() {
			return domain.Identity{}, false, err
		}
	}
	c.dirMu.RLock()
	id, ok := c.dir[email]
	c.dirMu.RUnlock()
	return id, ok, nil
}
