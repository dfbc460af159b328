package csrf

import (
	"context"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/api"
)

// RetryPolicy bounds how often a mutating call is attempted when the server
// rejects its token with 403.
type RetryPolicy struct {
	MaxAttempts int
}

var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 2}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Protected is a mutating call that needs a token.
type Protected func(ctx context.Context, token string) error

// Run executes fn with a token from cache. A 403 clears the token and the
// call is retried until the policy is exhausted; the last 403 is returned.
// Token fetch failures are returned immediately.
func (p RetryPolicy) Run(ctx context.Context, cache *Cache, fn Protected) error {
	var lastErr error
	for attempt := 0; attempt < p.attempts(); attempt++ {
		token, err := cache.GetToken(ctx)
		if err != nil {
			return err
		}
		lastErr = fn(ctx, token)
		if !api.IsForbidden(lastErr) {
			return lastErr
		}
		cache.ClearToken()
	}
	return lastErr
}

// Do runs fn under the default policy (one refresh-and-retry).
func (c *Cache) Do(ctx context.Context, fn Protected) error {
	return DefaultRetryPolicy.Run(ctx, c, fn)
}
