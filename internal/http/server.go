package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/api"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/auth"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/clients"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/config"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/content"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/guard"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/session"
)

const maxBodyBytes = 1 << 20

type Server struct {
	cfg      config.Config
	registry *clients.Registry
	guard    *guard.Guard
}

func NewServer(cfg config.Config, registry *clients.Registry) *Server {
	s := &Server{cfg: cfg, registry: registry}
	s.guard = guard.New(s.stateSource,
		guard.WithWaitTimeout(cfg.GuardWaitTimeout),
		guard.WithBlockedHandler(s.blocked),
	)
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	guest := s.guard.Require(guard.Rule{GuestOnly: true})
	signedIn := s.guard.Require(guard.Rule{RequireAuth: true})
	writer := s.guard.Require(guard.Rule{RequiredRole: session.RoleWriter})
	admin := s.guard.Require(guard.Rule{RequiredRole: session.RoleAdmin})

	r.Group(func(r chi.Router) {
		r.Use(s.visitorMiddleware)

		r.With(guest).Get("/login", s.handleLoginView)
		r.With(guest).Post("/login", s.handleLogin)
		r.With(guest).Get("/register", s.handleRegisterView)
		r.With(guest).Post("/register", s.handleRegister)

		r.Get("/", s.handleHome)
		r.Get("/session", s.handleSession)
		r.Get("/posts", s.handleListPosts)
		r.Get("/posts/{slug}", s.handleGetPost)
		r.Get("/posts/{slug}/comments", s.handleListComments)
		r.Get("/gallery", s.handleListGallery)
		r.Get("/announcements", s.handleListAnnouncements)
		r.Get("/categories", s.handleListCategories)

		r.With(signedIn).Get("/profile", s.handleGetProfile)
		r.With(signedIn).Put("/profile", s.handleUpdateProfile)
		r.With(signedIn).Put("/profile/password", s.handleChangePassword)
		r.With(signedIn).Post("/posts/{slug}/comments", s.handleCreateComment)
		r.With(signedIn).Post("/logout", s.handleLogout)
		r.With(signedIn).Get("/presence", s.handlePresence)

		r.With(writer).Get("/writer/posts", s.handleListMyPosts)
		r.With(writer).Post("/writer/posts", s.handleCreatePost)
		r.With(writer).Put("/writer/posts/{id}", s.handleUpdatePost)
		r.With(writer).Delete("/writer/posts/{id}", s.handleDeletePost)

		r.With(admin).Get("/admin/users", s.handleListUsers)
		r.With(admin).Put("/admin/users/{id}/role", s.handleUpdateUserRole)
		r.With(admin).Delete("/admin/users/{id}", s.handleDeleteUser)
		r.With(admin).Post("/admin/announcements", s.handleCreateAnnouncement)
		r.With(admin).Delete("/admin/announcements/{id}", s.handleDeleteAnnouncement)
		r.With(admin).Post("/admin/gallery", s.handleUploadGallery)
		r.With(admin).Delete("/admin/gallery/{id}", s.handleDeleteGallery)
		r.With(admin).Delete("/admin/comments/{id}", s.handleDeleteComment)
		r.With(admin).Get("/admin/stats", s.handleStats)
	})

	return r
}

// Visitor

type bundleKey struct{}

// visitorMiddleware attaches the caller's client bundle, issuing a visitor
// cookie on first contact, and saves rotated upstream cookies afterwards.
func (s *Server) visitorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := s.visitorID(r)
		if id == "" {
			id = auth.NewVisitorID()
			token, err := auth.NewVisitorToken(s.cfg.VisitorSecret, s.cfg.VisitorIssuer, s.cfg.VisitorTTL, id)
			if err != nil {
				log.Printf("visitor token error: %v", err)
				writeError(w, http.StatusInternalServerError, "server_error")
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     s.cfg.VisitorCookie,
				Value:    token,
				Path:     "/",
				MaxAge:   int(s.cfg.VisitorTTL.Seconds()),
				HttpOnly: true,
				Secure:   s.cfg.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		lang := api.PreferredLang(r.Header.Get("Accept-Language"), s.cfg.DefaultLang)
		bundle, err := s.registry.Get(r.Context(), id, clients.Request{
			UserAgent: r.UserAgent(),
			Lang:      lang,
		})
		if err != nil {
			log.Printf("visitor bundle error: %v", err)
			writeError(w, http.StatusInternalServerError, "visitor_unavailable")
			return
		}
		if r.Header.Get("Accept-Language") != "" {
			bundle.API.SetLang(lang)
		}

		ctx := context.WithValue(r.Context(), bundleKey{}, bundle)
		next.ServeHTTP(w, r.WithContext(ctx))

		persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.registry.Persist(persistCtx, bundle); err != nil {
			log.Printf("visitor persist error: %v", err)
		}
	})
}

func (s *Server) visitorID(r *http.Request) string {
	cookie, err := r.Cookie(s.cfg.VisitorCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}
	claims, err := auth.ParseVisitorToken(s.cfg.VisitorSecret, s.cfg.VisitorIssuer, cookie.Value)
	if err != nil {
		return ""
	}
	return claims.VisitorID
}

func bundleFromContext(ctx context.Context) *clients.Bundle {
	value := ctx.Value(bundleKey{})
	bundle, _ := value.(*clients.Bundle)
	return bundle
}

func (s *Server) stateSource(r *http.Request) guard.StateSource {
	bundle := bundleFromContext(r.Context())
	if bundle == nil {
		return nil
	}
	return bundle.Session
}

// blocked redirects page loads and answers other methods with a status the
// caller can act on.
func (s *Server) blocked(w http.ResponseWriter, r *http.Request, d guard.Decision) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		switch d.Outcome {
		case guard.Loading:
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusAccepted, map[string]bool{"loading": true})
		default:
			http.Redirect(w, r, d.Location, http.StatusFound)
		}
		return
	}
	switch d.Outcome {
	case guard.Loading:
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "session_loading")
	case guard.RedirectLogin:
		w.Header().Set("Location", d.Location)
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	default:
		writeError(w, http.StatusForbidden, "forbidden")
	}
}

// Helpers

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

// decodeInput accepts JSON bodies and classic form posts.
func decodeInput(r *http.Request, out interface{}) error {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		r.Body = io.NopCloser(io.LimitReader(r.Body, maxBodyBytes))
		if err := r.ParseForm(); err != nil {
			return err
		}
		fields := make(map[string]string, len(r.PostForm))
		for key, values := range r.PostForm {
			if len(values) > 0 {
				fields[key] = values[0]
			}
		}
		raw, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, out)
	}
	return decodeJSON(r, out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// writeAPIError maps local validation errors and upstream failures to a
// status and a message already localized for the visitor.
func writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	lang := api.PreferredLang(r.Header.Get("Accept-Language"), "en")
	if bundle := bundleFromContext(r.Context()); bundle != nil {
		lang = bundle.API.Lang()
	}

	switch {
	case errors.Is(err, session.ErrMissingCredentials):
		writeErrorMessage(w, http.StatusBadRequest, "missing_credentials", api.Localize(api.KindValidation, lang))
		return
	case errors.Is(err, session.ErrInvalidInput), errors.Is(err, content.ErrInvalidInput):
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", api.Localize(api.KindValidation, lang))
		return
	case errors.Is(err, content.ErrMissingID):
		writeErrorMessage(w, http.StatusBadRequest, "missing_id", api.Localize(api.KindValidation, lang))
		return
	case errors.Is(err, session.ErrNotAuthenticated):
		writeErrorMessage(w, http.StatusUnauthorized, "unauthenticated", api.Localize(api.KindUnauthorized, lang))
		return
	case errors.Is(err, context.Canceled):
		return
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		code := apiErr.Code
		if code == "" {
			code = apiErr.Kind.String()
		}
		writeErrorMessage(w, api.StatusOf(err), code, apiErr.Message)
		return
	}
	log.Printf("request failed: %v", err)
	writeErrorMessage(w, http.StatusInternalServerError, "server_error", api.Localize(api.KindServer, lang))
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func listQuery(r *http.Request) content.ListQuery {
	limit := queryInt(r, "limit", 10)
	if limit > 100 {
		limit = 100
	}
	return content.ListQuery{
		Page:     queryInt(r, "page", 1),
		Limit:    limit,
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Search:   strings.TrimSpace(r.URL.Query().Get("search")),
	}
}
