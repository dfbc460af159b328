package http

import (
	"log"
	"net/http"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/api"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/guard"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/session"
)

type sessionResponse struct {
	Session  session.State    `json:"session"`
	Presence presenceResponse `json:"presence"`
}

type presenceResponse struct {
	Connected   bool `json:"connected"`
	ActiveUsers int  `json:"activeUsers"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{
		Session: bundle.Session.State(),
		Presence: presenceResponse{
			Connected:   bundle.Presence.Connected(),
			ActiveUsers: bundle.Presence.Count(),
		},
	})
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	writeJSON(w, http.StatusOK, presenceResponse{
		Connected:   bundle.Presence.Connected(),
		ActiveUsers: bundle.Presence.Count(),
	})
}

// Login

type loginView struct {
	View string `json:"view"`
	From string `json:"from"`
}

func (s *Server) handleLoginView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, loginView{
		View: "login",
		From: guard.SafeReturnPath(r.URL.Query().Get("from")),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	From     string `json:"from"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeInput(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	from := req.From
	if from == "" {
		from = r.URL.Query().Get("from")
	}

	bundle := bundleFromContext(r.Context())
	if _, err := bundle.Session.Login(r.Context(), req.Email, req.Password); err != nil {
		writeAPIError(w, r, err)
		return
	}
	http.Redirect(w, r, guard.SafeReturnPath(from), http.StatusSeeOther)
}

func (s *Server) handleRegisterView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"view": "register"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req session.RegisterInput
	if err := decodeInput(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	bundle := bundleFromContext(r.Context())
	if err := bundle.Session.Register(r.Context(), req); err != nil {
		writeAPIError(w, r, err)
		return
	}
	// Registration never signs the visitor in.
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

type logoutResponse struct {
	Status  string `json:"status"`
	Warning string `json:"warning,omitempty"`
}

// handleLogout always reports the visitor as signed out; a failed upstream
// call is passed along as a warning.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	resp := logoutResponse{Status: "logged_out"}
	if err := bundle.Session.Logout(r.Context()); err != nil {
		log.Printf("logout error: %v", err)
		resp.Warning = api.Localize(api.KindServer, bundle.API.Lang())
		if kind, ok := api.KindOf(err); ok {
			resp.Warning = api.Localize(kind, bundle.API.Lang())
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Profile

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": bundle.Session.User()})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req session.ProfileInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	bundle := bundleFromContext(r.Context())
	user, err := bundle.Session.UpdateProfile(r.Context(), req)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	bundle := bundleFromContext(r.Context())
	if err := bundle.Session.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		writeAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
