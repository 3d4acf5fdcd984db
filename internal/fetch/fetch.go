// Package fetch performs single URL fetches into memory or into cache entries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"packfetch/internal/logging"
	"packfetch/internal/metacache"
	"packfetch/internal/services"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "packfetch/dev"
	// maxBodyBytes bounds in-memory fetches; metadata documents are small.
	maxBodyBytes = 16 << 20
)

// Fetcher is the primitive used by batch jobs.
type Fetcher interface {
	// FetchBytes returns the response body. For non-2xx responses the body is
	// still returned alongside an error (services.ErrNotFound for 404 and 410,
	// services.ErrTransport otherwise).
	FetchBytes(ctx context.Context, url string) ([]byte, error)
	// FetchEntry downloads url into entry unless the entry is already present.
	FetchEntry(ctx context.Context, url string, entry *metacache.Entry) error
}

// EntryStore is the subset of the cache store needed for cached fetches.
type EntryStore interface {
	Lock(ctx context.Context, entry *metacache.Entry) (func(), error)
	Refresh(entry *metacache.Entry)
	Write(ctx context.Context, entry *metacache.Entry, r io.Reader, etag string) error
}

// Client implements Fetcher over net/http.
type Client struct {
	store      EntryStore
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		if strings.TrimSpace(agent) != "" {
			c.userAgent = agent
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New constructs a client. store may be nil when only FetchBytes is used.
func New(store EntryStore, opts ...Option) *Client {
	c := &Client{
		store:      store,
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "fetch")
	return c
}

// FetchBytes performs a GET and returns the body.
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "fetch", "read body", url, err)
	}
	if err := statusError(resp, url); err != nil {
		return body, err
	}
	return body, nil
}

// FetchEntry downloads url into entry under the entry's writer lock. Entries
// that became present while waiting for the lock are left untouched.
func (c *Client) FetchEntry(ctx context.Context, url string, entry *metacache.Entry) error {
	if entry == nil {
		return services.Wrap(services.ErrValidation, "fetch", "fetch entry", "entry is nil", nil)
	}
	if !entry.Stale {
		return nil
	}
	if c.store == nil {
		return services.Wrap(services.ErrConfiguration, "fetch", "fetch entry", "no cache store configured", nil)
	}

	unlock, err := c.store.Lock(ctx, entry)
	if err != nil {
		return err
	}
	defer unlock()

	c.store.Refresh(entry)
	if !entry.Stale {
		c.logger.Debug("entry filled by another writer", logging.String("key", entry.Key))
		return nil
	}

	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := statusError(resp, url); err != nil {
		return err
	}

	if err := c.store.Write(ctx, entry, resp.Body, resp.Header.Get("ETag")); err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrAborted, "fetch", "download", url, ctx.Err())
		}
		if errors.Is(err, services.ErrFilesystem) {
			return err
		}
		return services.Wrap(services.ErrTransport, "fetch", "download", url, err)
	}
	c.logger.Debug("entry downloaded",
		logging.String("url", url),
		logging.String("namespace", entry.Namespace),
		logging.String("key", entry.Key),
		logging.Int64("size", entry.Size),
	)
	return nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "fetch", "build request", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrAborted, "fetch", "request", url, ctx.Err())
		}
		return nil, services.Wrap(services.ErrTransport, "fetch", "request", url, err)
	}
	return resp, nil
}

func statusError(resp *http.Response, url string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	marker := services.ErrTransport
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		marker = services.ErrNotFound
	}
	return services.Wrap(marker, "fetch", "request", url, fmt.Errorf("status %s", resp.Status))
}
