package config

import (
	"testing"
	"time"
)

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":18080")
	t.Setenv("API_BASE_URL", "https://blog.example.com/api/")
	t.Setenv("SOCKET_URL", "")
	t.Setenv("CSRF_TTL", "2m")
	t.Setenv("VISITOR_STORE", "Redis")
	t.Setenv("VISITOR_CACHE_SIZE", "64")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("PRESENCE_RECONNECT_ATTEMPTS", "0")
	t.Setenv("PRESENCE_RECONNECT_ON_KICK", "true")
	t.Setenv("VISITOR_IDLE_TIMEOUT_SECONDS", "90")

	cfg := Load()
	if cfg.HTTPAddr != ":18080" {
		t.Fatalf("expected HTTP_ADDR override, got %s", cfg.HTTPAddr)
	}
	if cfg.APIBaseURL != "https://blog.example.com/api" {
		t.Fatalf("expected trimmed API_BASE_URL, got %s", cfg.APIBaseURL)
	}
	if cfg.SocketURL != "wss://blog.example.com/socket" {
		t.Fatalf("expected derived socket url, got %s", cfg.SocketURL)
	}
	if cfg.CSRFTTL != 2*time.Minute {
		t.Fatalf("expected CSRF_TTL 2m, got %s", cfg.CSRFTTL)
	}
	if cfg.VisitorStore != "redis" {
		t.Fatalf("expected lowercased VISITOR_STORE, got %s", cfg.VisitorStore)
	}
	if cfg.VisitorCacheSize != 64 {
		t.Fatalf("expected VISITOR_CACHE_SIZE 64, got %d", cfg.VisitorCacheSize)
	}
	if !cfg.CookieSecure {
		t.Fatalf("expected COOKIE_SECURE true")
	}
	if cfg.PresenceReconnectAttempts != 0 {
		t.Fatalf("expected reconnect attempts 0, got %d", cfg.PresenceReconnectAttempts)
	}
	if !cfg.PresenceReconnectOnKick {
		t.Fatalf("expected PRESENCE_RECONNECT_ON_KICK true")
	}
	if cfg.VisitorIdleTimeout != 90*time.Second {
		t.Fatalf("expected VISITOR_IDLE_TIMEOUT 90s, got %s", cfg.VisitorIdleTimeout)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("SOCKET_URL", "")

	cfg := Load()
	if cfg.CSRFTTL != 5*time.Minute {
		t.Fatalf("expected default CSRF ttl of 5m, got %s", cfg.CSRFTTL)
	}
	if cfg.CSRFHeader != "X-CSRF-Token" {
		t.Fatalf("unexpected csrf header %s", cfg.CSRFHeader)
	}
	if cfg.SocketURL != "ws://127.0.0.1:5000/socket" {
		t.Fatalf("unexpected default socket url %s", cfg.SocketURL)
	}
}
