package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/clients"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/config"
	internalhttp "github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/http"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/jobs"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/visitor"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := visitor.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("visitor store init failed: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("visitor store close error: %v", err)
		}
	}()

	registry, err := clients.NewRegistry(cfg, store, clients.Options{})
	if err != nil {
		log.Fatalf("client registry init failed: %v", err)
	}
	defer registry.Close()

	server := internalhttp.NewServer(cfg, registry)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	jobs.StartVisitorSweepJob(ctx, cfg, registry)

	go func() {
		log.Printf("blog frontend listening on %s (api %s, visitor store %s)", cfg.HTTPAddr, cfg.APIBaseURL, cfg.VisitorStore)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
