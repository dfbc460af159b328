package visitor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/config"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.Config{VisitorStore: "memory"})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected a memory store, got %T", store)
	}

	store, err = Open(ctx, config.Config{VisitorStore: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "v.db")})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*SQLiteStore); !ok {
		t.Fatalf("expected a sqlite store, got %T", store)
	}

	for _, cfg := range []config.Config{
		{VisitorStore: "redis"},
		{VisitorStore: "mysql"},
		{VisitorStore: "postgres"},
		{VisitorStore: "cassandra"},
	} {
		if _, err := Open(ctx, cfg); err == nil {
			t.Fatalf("expected %q without settings to fail", cfg.VisitorStore)
		}
	}
}
