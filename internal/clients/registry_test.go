package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/config"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/content"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/presence"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/session"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/visitor"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	user := map[string]any{"id": "42", "firstName": "Ada", "lastName": "L", "email": "ada@example.com", "role": "writer"}
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/csrf-token", func(w http.ResponseWriter, _ *http.Request) {
			writeTestJSON(w, http.StatusOK, map[string]string{"csrfToken": "tok"})
		})
		r.Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie("sid"); err != nil || c.Value != "valid" {
				writeTestJSON(w, http.StatusUnauthorized, map[string]string{"message": "no session"})
				return
			}
			writeTestJSON(w, http.StatusOK, map[string]any{"user": user})
		})
		r.Post("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "valid", Path: "/"})
			writeTestJSON(w, http.StatusOK, map[string]any{"user": user})
		})
		r.Get("/posts", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("search") == "expire" {
				writeTestJSON(w, http.StatusUnauthorized, map[string]string{"message": "expired"})
				return
			}
			writeTestJSON(w, http.StatusOK, []any{})
		})
	})
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func writeTestJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type fakeConn struct {
	closed chan struct{}
	once   sync.Once
}

func (c *fakeConn) ReadJSON(interface{}) error {
	<-c.closed
	return errors.New("closed")
}

func (c *fakeConn) WriteJSON(interface{}) error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type fakeDialer struct {
	dials int32
	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) Dial(context.Context, string, http.Header) (presence.Conn, error) {
	atomic.AddInt32(&d.dials, 1)
	conn := &fakeConn{closed: make(chan struct{})}
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

func testConfig(server *httptest.Server) config.Config {
	return config.Config{
		APIBaseURL:       server.URL + "/api",
		SocketURL:        "ws://unused/socket",
		APITimeout:       2 * time.Second,
		CSRFHeader:       "X-CSRF-Token",
		CSRFTTL:          time.Minute,
		DefaultLang:      "en",
		VisitorTTL:       time.Hour,
		VisitorCacheSize: 8,
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBundleWiresPresenceToSession(t *testing.T) {
	server := fakeAPI(t)
	dialer := &fakeDialer{}
	b, err := NewBundle(testConfig(server), "v1", Options{Dialer: dialer})
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	defer b.Close()

	if state := b.Session.CheckSession(context.Background()); state.Authenticated() {
		t.Fatalf("expected anonymous visitor")
	}
	if _, err := b.Session.Login(context.Background(), "ada@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	eventually(t, "presence connect", func() bool { return b.Presence.Connected() })

	if err := b.Session.Logout(context.Background()); err == nil {
		// The fake API has no logout route, so the call fails; the local
		// session must be cleared anyway.
		t.Fatalf("expected logout error from fake api")
	}
	eventually(t, "presence close", func() bool { return b.Presence.Handle() == nil })
	if got := atomic.LoadInt32(&dialer.dials); got != 1 {
		t.Fatalf("expected exactly one dial, got %d", got)
	}
}

func TestBundleExpiresSessionOnContent401(t *testing.T) {
	server := fakeAPI(t)
	b, err := NewBundle(testConfig(server), "v1", Options{Dialer: &fakeDialer{}})
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	defer b.Close()

	if _, err := b.Session.Login(context.Background(), "ada@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	_, err = b.Posts.List(context.Background(), content.ListQuery{Search: "expire"})
	if err == nil {
		t.Fatalf("expected 401")
	}
	if state := b.Session.State(); state.Status != session.StatusAnonymous {
		t.Fatalf("expected session to expire, got %s", state.Status)
	}
}

func TestRegistryPersistsAndRestoresCookies(t *testing.T) {
	server := fakeAPI(t)
	store := visitor.NewMemoryStore()
	cfg := testConfig(server)

	first, err := NewRegistry(cfg, store, Options{Dialer: &fakeDialer{}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	b, err := first.Get(context.Background(), "v1", Request{UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0", Lang: "tr"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b.Session.WaitResolved(context.Background())
	if _, err := b.Session.Login(context.Background(), "ada@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := first.Persist(context.Background(), b); err != nil {
		t.Fatalf("persist: %v", err)
	}
	first.Close()

	rec, err := store.Get(context.Background(), "v1")
	if err != nil {
		t.Fatalf("stored record: %v", err)
	}
	if rec.Lang != "tr" || rec.DeviceType != "desktop" || len(rec.Cookies) != 1 {
		t.Fatalf("unexpected record %+v", rec)
	}

	second, err := NewRegistry(cfg, store, Options{Dialer: &fakeDialer{}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	defer second.Close()
	restored, err := second.Get(context.Background(), "v1", Request{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state := restored.Session.WaitResolved(ctx)
	if !state.Authenticated() || state.User.ID != "42" {
		t.Fatalf("expected restored session, got %+v", state)
	}
	if restored.API.Lang() != "tr" {
		t.Fatalf("expected language restored, got %s", restored.API.Lang())
	}
}

func TestRegistryReturnsSameBundle(t *testing.T) {
	server := fakeAPI(t)
	reg, err := NewRegistry(testConfig(server), visitor.NewMemoryStore(), Options{Dialer: &fakeDialer{}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	defer reg.Close()

	a, _ := reg.Get(context.Background(), "v1", Request{})
	b, _ := reg.Get(context.Background(), "v1", Request{})
	if a != b {
		t.Fatalf("expected the live bundle to be reused")
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one live visitor, got %d", reg.Len())
	}
}

func TestRegistryEvictsAndSweeps(t *testing.T) {
	server := fakeAPI(t)
	cfg := testConfig(server)
	cfg.VisitorCacheSize = 1
	dialer := &fakeDialer{}
	reg, err := NewRegistry(cfg, visitor.NewMemoryStore(), Options{Dialer: dialer})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	defer reg.Close()

	first, _ := reg.Get(context.Background(), "v1", Request{})
	_, _ = reg.Get(context.Background(), "v2", Request{})
	if _, ok := reg.Peek("v1"); ok {
		t.Fatalf("expected v1 to be evicted")
	}
	first.Presence.Observe(session.State{
		Status: session.StatusAuthenticated,
		User:   &session.User{ID: "42", Role: session.RoleUser},
	})
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&dialer.dials); got != 0 {
		t.Fatalf("evicted bundle must not open a channel, got %d dials", got)
	}

	if n := reg.Sweep(time.Now().Add(time.Hour), 30*time.Minute); n != 1 {
		t.Fatalf("expected idle bundle swept, got %d", n)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry after sweep")
	}
}
