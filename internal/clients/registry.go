package clients

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/config"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/metrics"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/visitor"
)

// touchEvery bounds how often an unchanged visitor is written back just to
// extend its expiry.
const touchEvery = time.Minute

// Registry holds the live bundles, at most cfg.VisitorCacheSize of them.
// A visitor evicted from memory is rebuilt from the visitor store on its
// next request.
type Registry struct {
	cfg   config.Config
	store visitor.Store
	opts  Options

	mu    sync.Mutex
	cache *lru.Cache[string, *Bundle]
}

func NewRegistry(cfg config.Config, store visitor.Store, opts Options) (*Registry, error) {
	size := cfg.VisitorCacheSize
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.NewWithEvict[string, *Bundle](size, func(_ string, b *Bundle) {
		b.Close()
		metrics.LiveVisitors.Dec()
	})
	if err != nil {
		return nil, fmt.Errorf("clients: visitor cache: %w", err)
	}
	return &Registry{cfg: cfg, store: store, opts: opts, cache: cache}, nil
}

// Request describes the browser asking for its bundle.
type Request struct {
	UserAgent string
	Lang      string
}

// Get returns the live bundle for id, restoring it from the store or
// creating it when needed. New bundles start a session check in the
// background; guards wait for it to resolve.
func (r *Registry) Get(ctx context.Context, id string, req Request) (*Bundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if b, ok := r.cache.Get(id); ok {
		b.Touch(now)
		return b, nil
	}

	opts := r.opts
	opts.UserAgent = firstNonEmpty(req.UserAgent, opts.UserAgent)
	opts.Lang = firstNonEmpty(req.Lang, opts.Lang)

	b, err := NewBundle(r.cfg, id, opts)
	if err != nil {
		return nil, err
	}

	rec, err := r.store.Get(ctx, id)
	switch {
	case err == nil:
		b.restore(rec)
	case errors.Is(err, visitor.ErrNotFound):
	default:
		log.Printf("visitor restore failed: %v", err)
	}

	r.cache.Add(id, b)
	metrics.LiveVisitors.Inc()

	go r.resolve(b)
	return b, nil
}

func (r *Registry) resolve(b *Bundle) {
	timeout := r.cfg.APITimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	b.Session.CheckSession(ctx)
}

// Peek returns a live bundle without touching it or creating one.
func (r *Registry) Peek(id string) (*Bundle, bool) {
	return r.cache.Peek(id)
}

// Persist writes the visitor's upstream cookies back to the store when they
// changed, and otherwise extends the record's expiry now and then.
func (r *Registry) Persist(ctx context.Context, b *Bundle) error {
	now := time.Now().UTC()
	rec, changed := b.snapshot(now, r.cfg.VisitorTTL)
	if !changed {
		if now.Sub(b.lastPersisted()) < touchEvery {
			return nil
		}
		err := r.store.Touch(ctx, b.VisitorID, now, r.cfg.VisitorTTL)
		if err == nil {
			b.markPersisted(rec)
			return nil
		}
		if !errors.Is(err, visitor.ErrNotFound) {
			return err
		}
	}
	if err := r.store.Save(ctx, &rec); err != nil {
		return err
	}
	b.markPersisted(rec)
	return nil
}

// Forget drops a visitor from memory and from the store.
func (r *Registry) Forget(ctx context.Context, id string) error {
	r.mu.Lock()
	r.cache.Remove(id)
	r.mu.Unlock()
	return r.store.Delete(ctx, id)
}

// Sweep closes bundles idle for longer than idle. Their records stay in the
// store so the visitor can come back.
func (r *Registry) Sweep(now time.Time, idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	closed := 0
	for _, id := range r.cache.Keys() {
		b, ok := r.cache.Peek(id)
		if !ok {
			continue
		}
		if now.Sub(b.LastSeen()) > idle {
			r.cache.Remove(id)
			closed++
		}
	}
	return closed
}

func (r *Registry) Len() int {
	return r.cache.Len()
}

func (r *Registry) Store() visitor.Store {
	return r.store
}

// Close tears down every live bundle.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Purge()
}
