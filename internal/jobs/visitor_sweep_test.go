package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/config"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/visitor"
)

type fakeRegistry struct {
	store  *visitor.MemoryStore
	sweeps int32
	idle   time.Duration
}

func (f *fakeRegistry) Sweep(_ time.Time, idle time.Duration) int {
	atomic.AddInt32(&f.sweeps, 1)
	f.idle = idle
	return 2
}

func (f *fakeRegistry) Store() visitor.Store { return f.store }

func TestSweepOncePurgesExpiredRecords(t *testing.T) {
	ctx := context.Background()
	store := visitor.NewMemoryStore()
	now := time.Now()
	_ = store.Save(ctx, &visitor.Record{ID: "old", ExpiresAt: now.Add(-time.Minute)})
	_ = store.Save(ctx, &visitor.Record{ID: "live", ExpiresAt: now.Add(time.Hour)})

	reg := &fakeRegistry{store: store}
	closed, purged := SweepOnce(ctx, reg, now, 10*time.Minute, time.Second)
	if closed != 2 || purged != 1 {
		t.Fatalf("expected 2 closed and 1 purged, got %d and %d", closed, purged)
	}
	if reg.idle != 10*time.Minute {
		t.Fatalf("expected idle timeout forwarded, got %s", reg.idle)
	}
	if _, err := store.Get(ctx, "live"); err != nil {
		t.Fatalf("live record must survive: %v", err)
	}
}

func TestStartVisitorSweepJobTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := &fakeRegistry{store: visitor.NewMemoryStore()}
	StartVisitorSweepJob(ctx, config.Config{VisitorSweepInterval: 5 * time.Millisecond}, reg)

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&reg.sweeps) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected the job to tick")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
