package csrf

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/api"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/metrics"
)

const (
	DefaultTTL          = 5 * time.Minute
	DefaultFetchTimeout = 15 * time.Second
)

var ErrEmptyToken = errors.New("csrf: server returned an empty token")

// Clock is an injectable time source for expiry tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Fetcher retrieves a fresh token from the server.
type Fetcher func(ctx context.Context) (string, error)

// Cache holds one anti-forgery token and refetches it once it expires or
// after ClearToken.
type Cache struct {
	fetch   Fetcher
	ttl     time.Duration
	timeout time.Duration
	clock   Clock
	group   singleflight.Group

	mu     sync.Mutex
	token  string
	expiry time.Time
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithFetchTimeout bounds a shared fetch. The fetch outlives any single
// caller, so it is not tied to the caller's context.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithClock(clock Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func New(fetch Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetch:   fetch,
		ttl:     DefaultTTL,
		timeout: DefaultFetchTimeout,
		clock:   realClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// FromClient fetches tokens from GET /csrf-token through client.
func FromClient(client *api.Client) Fetcher {
	return func(ctx context.Context) (string, error) {
		var resp tokenResponse
		err := client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/csrf-token"}, &resp)
		if err != nil {
			return "", err
		}
		if resp.CSRFToken == "" {
			return "", ErrEmptyToken
		}
		return resp.CSRFToken, nil
	}
}

// GetToken returns the cached token while it is valid, otherwise fetches a
// new one. Callers arriving while a fetch is in flight share its result; a
// caller whose ctx ends stops waiting without cancelling the fetch for the
// others.
func (c *Cache) GetToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.clock.Now().Before(c.expiry) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	results := c.group.DoChan("token", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		metrics.CSRFFetches.Inc()
		token, err := c.fetch(fetchCtx)
		if err != nil {
			return "", fmt.Errorf("csrf: fetch token: %w", err)
		}
		c.mu.Lock()
		c.token = token
		c.expiry = c.clock.Now().Add(c.ttl)
		c.mu.Unlock()
		return token, nil
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("csrf: fetch token: %w", ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// ClearToken forces the next GetToken to refetch.
func (c *Cache) ClearToken() {
	c.mu.Lock()
	c.token = ""
	c.expiry = time.Time{}
	c.mu.Unlock()
}
