package jobs

import (
	"context"
	"log"
	"time"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/config"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/visitor"
)

// Sweeper is the part of the client registry the sweep needs.
type Sweeper interface {
	Sweep(now time.Time, idle time.Duration) int
	Store() visitor.Store
}

// StartVisitorSweepJob periodically closes idle visitor bundles (and their
// presence channels) and purges expired visitor records.
func StartVisitorSweepJob(ctx context.Context, cfg config.Config, registry Sweeper) {
	if registry == nil {
		log.Printf("visitor sweep job disabled: registry not configured")
		return
	}
	interval := cfg.VisitorSweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	idle := cfg.VisitorIdleTimeout
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				SweepOnce(ctx, registry, time.Now().UTC(), idle, timeout)
			}
		}
	}()
}

// SweepOnce runs a single pass and reports what it removed.
func SweepOnce(ctx context.Context, registry Sweeper, now time.Time, idle, timeout time.Duration) (closed, purged int) {
	closed = registry.Sweep(now, idle)
	if closed > 0 {
		log.Printf("visitor sweep job closed %d idle visitors", closed)
	}

	tickCtx, cancel := context.WithTimeout(ctx, timeout)
	purged, err := registry.Store().Purge(tickCtx, now)
	cancel()
	if err != nil {
		log.Printf("visitor sweep job error: %v", err)
		return closed, 0
	}
	if purged > 0 {
		log.Printf("visitor sweep job purged %d expired visitors", purged)
	}
	return closed, purged
}
