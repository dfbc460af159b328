package guard

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/metrics"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/session"
)

const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Rule describes what a view requires. GuestOnly views (login, register)
// send signed-in visitors home.
type Rule struct {
	RequireAuth  bool
	RequiredRole session.Role
	GuestOnly    bool
}

func (r Rule) needsAuth() bool {
	return r.RequireAuth || r.RequiredRole != ""
}

type Outcome int

const (
	Render Outcome = iota
	Loading
	RedirectLogin
	RedirectHome
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	default:
		return "render"
	}
}

type Decision struct {
	Outcome Outcome
	// Location is the redirect target for redirect outcomes.
	Location string
}

// Decide never renders protected content and never redirects while the
// session is still unresolved.
func Decide(state session.State, rule Rule, location string) Decision {
	if !rule.needsAuth() && !rule.GuestOnly {
		return Decision{Outcome: Render}
	}
	if !state.Resolved() {
		return Decision{Outcome: Loading}
	}

	if rule.GuestOnly {
		if state.Authenticated() {
			return Decision{Outcome: RedirectHome, Location: HomePath}
		}
		return Decision{Outcome: Render}
	}

	if !state.Authenticated() {
		return Decision{Outcome: RedirectLogin, Location: LoginURL(location)}
	}
	if rule.RequiredRole != "" && !state.User.Role.Satisfies(rule.RequiredRole) {
		return Decision{Outcome: RedirectHome, Location: HomePath}
	}
	return Decision{Outcome: Render}
}

// LoginURL builds the login location carrying the attempted path so the
// visitor can be sent back after signing in.
func LoginURL(from string) string {
	from = SafeReturnPath(from)
	if from == HomePath {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{"from": []string{from}}.Encode()
}

// SafeReturnPath accepts local absolute paths only; anything else falls back
// to the home page. The returned path is cleaned so what the browser is sent
// is exactly what was checked.
func SafeReturnPath(from string) string {
	from = strings.TrimSpace(from)
	if from == "" || !strings.HasPrefix(from, "/") {
		return HomePath
	}
	if hasUnsafeByte(from) || strings.Contains(from, "://") {
		return HomePath
	}
	u, err := url.Parse(from)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" {
		return HomePath
	}
	cleaned := path.Clean(u.Path)
	if !strings.HasPrefix(cleaned, "/") || strings.HasPrefix(cleaned, "//") || hasUnsafeByte(cleaned) {
		return HomePath
	}
	return (&url.URL{Path: cleaned, RawQuery: u.RawQuery}).String()
}

// hasUnsafeByte reports control characters and backslashes; browsers read \
// as / and drop tabs and newlines.
func hasUnsafeByte(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < 0x20 || c == 0x7f || c == '\\' {
			return true
		}
	}
	return false
}

// StateSource yields the session of the visitor behind a request.
type StateSource interface {
	State() session.State
	WaitResolved(ctx context.Context) session.State
}

// Resolver finds the session for a request, or nil when none is attached.
type Resolver func(r *http.Request) StateSource

type Guard struct {
	resolve Resolver
	wait    time.Duration
	onBlock func(w http.ResponseWriter, r *http.Request, d Decision)
}

type Option func(*Guard)

// WithWaitTimeout bounds how long a request waits for the session to
// resolve before the loading placeholder is served.
func WithWaitTimeout(d time.Duration) Option {
	return func(g *Guard) { g.wait = d }
}

// WithBlockedHandler replaces the default redirect and placeholder writer.
func WithBlockedHandler(fn func(w http.ResponseWriter, r *http.Request, d Decision)) Option {
	return func(g *Guard) { g.onBlock = fn }
}

func New(resolve Resolver, opts ...Option) *Guard {
	g := &Guard{
		resolve: resolve,
		wait:    2 * time.Second,
		onBlock: writeBlocked,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Require returns middleware enforcing rule.
func (g *Guard) Require(rule Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := session.State{Status: session.StatusAnonymous}
			if src := g.resolve(r); src != nil {
				state = src.State()
				if !state.Resolved() && g.wait > 0 {
					ctx, cancel := context.WithTimeout(r.Context(), g.wait)
					state = src.WaitResolved(ctx)
					cancel()
				}
			}

			d := Decide(state, rule, r.URL.RequestURI())
			metrics.GuardDecisions.WithLabelValues(d.Outcome.String()).Inc()
			if d.Outcome == Render {
				next.ServeHTTP(w, r)
				return
			}
			g.onBlock(w, r, d)
		})
	}
}

func writeBlocked(w http.ResponseWriter, r *http.Request, d Decision) {
	switch d.Outcome {
	case Loading:
		w.Header().Set("Retry-After", "1")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"loading":true}`))
	default:
		http.Redirect(w, r, d.Location, http.StatusFound)
	}
}
