package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/session"
)

func stateFor(role session.Role) session.State {
	if role == "" {
		return session.State{Status: session.StatusAnonymous}
	}
	return session.State{
		Status: session.StatusAuthenticated,
		User:   &session.User{ID: "1", Role: role},
	}
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name     string
		state    session.State
		rule     Rule
		location string
		want     Decision
	}{
		{"public view renders while unknown", session.State{Loading: true}, Rule{}, "/", Decision{Outcome: Render}},
		{"unknown shows loading", session.State{Loading: true}, Rule{RequireAuth: true}, "/profile", Decision{Outcome: Loading}},
		{"anonymous goes to login with origin", stateFor(""), Rule{RequireAuth: true}, "/profile", Decision{Outcome: RedirectLogin, Location: "/login?from=%2Fprofile"}},
		{"signed in renders", stateFor(session.RoleUser), Rule{RequireAuth: true}, "/profile", Decision{Outcome: Render}},
		{"user on admin view goes home", stateFor(session.RoleUser), Rule{RequiredRole: session.RoleAdmin}, "/admin/users", Decision{Outcome: RedirectHome, Location: "/"}},
		{"writer on writer view renders", stateFor(session.RoleWriter), Rule{RequiredRole: session.RoleWriter}, "/writer/posts", Decision{Outcome: Render}},
		{"admin on writer view renders", stateFor(session.RoleAdmin), Rule{RequiredRole: session.RoleWriter}, "/writer/posts", Decision{Outcome: Render}},
		{"anonymous on admin view goes to login", stateFor(""), Rule{RequiredRole: session.RoleAdmin}, "/admin/stats", Decision{Outcome: RedirectLogin, Location: "/login?from=%2Fadmin%2Fstats"}},
		{"guest view redirects signed in", stateFor(session.RoleUser), Rule{GuestOnly: true}, "/login", Decision{Outcome: RedirectHome, Location: "/"}},
		{"guest view renders for anonymous", stateFor(""), Rule{GuestOnly: true}, "/login", Decision{Outcome: Render}},
		{"guest view waits while unknown", session.State{}, Rule{GuestOnly: true}, "/login", Decision{Outcome: Loading}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.state, tc.rule, tc.location)
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestSafeReturnPath(t *testing.T) {
	cases := map[string]string{
		"":                        "/",
		"/profile":                "/profile",
		"/posts/hello?page=2":     "/posts/hello?page=2",
		"//evil.example":          "/",
		"/\\evil.example":         "/",
		"https://evil.example/x":  "/",
		"/redirect?to=http://x.y": "/",
		"profile":                 "/",
		"/./\\evil.example":       "/",
		"/\t/evil.example":        "/",
		"/\n/evil.example":        "/",
		"/%5cevil.example":        "/",
		"/%09/evil.example":       "/",
		"/%2F%2Fevil.example":     "/evil.example",
		"/%2e/x/../../profile":    "/profile",
		"/a/../profile":           "/profile",
		"/./profile/":             "/profile",
		"/a/..//evil.example":     "/evil.example",
	}
	for in, want := range cases {
		if got := SafeReturnPath(in); got != want {
			t.Fatalf("SafeReturnPath(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestLoginURLOmitsHome(t *testing.T) {
	if got := LoginURL("/"); got != "/login" {
		t.Fatalf("expected bare login url, got %s", got)
	}
	if got := LoginURL("//evil"); got != "/login" {
		t.Fatalf("expected unsafe origin dropped, got %s", got)
	}
}

type fakeSource struct {
	state    session.State
	resolved session.State
	delay    time.Duration
}

func (f fakeSource) State() session.State { return f.state }

func (f fakeSource) WaitResolved(ctx context.Context) session.State {
	select {
	case <-time.After(f.delay):
		return f.resolved
	case <-ctx.Done():
		return f.state
	}
}

func serve(g *Guard, rule Rule, target string) *httptest.ResponseRecorder {
	handler := g.Require(rule)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRequireRedirectsAnonymousToLogin(t *testing.T) {
	g := New(func(*http.Request) StateSource { return fakeSource{state: stateFor("")} })
	rec := serve(g, Rule{RequireAuth: true}, "/profile")
	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?from=%2Fprofile" {
		t.Fatalf("unexpected location %s", loc)
	}
}

func TestRequireWaitsForResolution(t *testing.T) {
	src := fakeSource{state: session.State{Loading: true}, resolved: stateFor(session.RoleUser), delay: 10 * time.Millisecond}
	g := New(func(*http.Request) StateSource { return src }, WithWaitTimeout(time.Second))
	rec := serve(g, Rule{RequireAuth: true}, "/profile")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected content after resolution, got %d", rec.Code)
	}
}

func TestRequireServesPlaceholderWhenStillLoading(t *testing.T) {
	src := fakeSource{state: session.State{Loading: true}, delay: time.Second}
	g := New(func(*http.Request) StateSource { return src }, WithWaitTimeout(10*time.Millisecond))
	rec := serve(g, Rule{RequireAuth: true}, "/profile")
	if rec.Code != http.StatusAccepted || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected loading placeholder, got %d", rec.Code)
	}
}

func TestRequireWithoutSessionIsAnonymous(t *testing.T) {
	g := New(func(*http.Request) StateSource { return nil })
	rec := serve(g, Rule{RequiredRole: session.RoleAdmin}, "/admin/users")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login?from=%2Fadmin%2Fusers" {
		t.Fatalf("expected login redirect without a session, got %d %s", rec.Code, rec.Header().Get("Location"))
	}
}
