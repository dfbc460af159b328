package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	user := map[string]any{"id": "7", "firstName": "Grace", "lastName": "Hopper", "email": "grace@example.com", "role": "admin"}
	write := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	r := chi.NewRouter()
	r.Get("/api/csrf-token", func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusOK, map[string]string{"csrfToken": "tok"})
	})
	r.Get("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err != nil || c.Value != "grace" {
			write(w, http.StatusUnauthorized, map[string]string{"message": "no session"})
			return
		}
		write(w, http.StatusOK, map[string]any{"user": user})
	})
	r.Post("/api/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "grace", Path: "/"})
		write(w, http.StatusOK, map[string]any{"user": user})
	})
	r.Get("/api/posts", func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, map[string]any{
			"posts":      []any{map[string]any{"id": "1", "slug": "compilers", "title": "On Compilers", "createdAt": "2024-01-01T00:00:00Z"}},
			"pagination": map[string]int{"page": 1, "limit": 10, "total": 1, "totalPages": 1},
		})
	})
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func TestLoginPersistsAcrossRuns(t *testing.T) {
	server := fakeAPI(t)
	db := filepath.Join(t.TempDir(), "state", "visitors.db")
	base := []string{"-api", server.URL + "/api", "-db", db}

	var out strings.Builder
	if err := run(context.Background(), append(base, "whoami"), &out); err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out.String(), "not signed in") {
		t.Fatalf("expected anonymous whoami, got %q", out.String())
	}

	out.Reset()
	if err := run(context.Background(), append(base, "-email", "grace@example.com", "-password", "pw", "login"), &out); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out.String(), "signed in as Grace Hopper (admin)") {
		t.Fatalf("unexpected login output %q", out.String())
	}

	out.Reset()
	if err := run(context.Background(), append(base, "whoami"), &out); err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out.String(), "grace@example.com") {
		t.Fatalf("expected the stored session to be restored, got %q", out.String())
	}
}

func TestPostsJSON(t *testing.T) {
	server := fakeAPI(t)
	var out strings.Builder
	args := []string{"-api", server.URL + "/api", "-store", "memory", "-json", "posts"}
	if err := run(context.Background(), args, &out); err != nil {
		t.Fatalf("posts: %v", err)
	}
	var page struct {
		Items []struct {
			Slug string `json:"slug"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(out.String()), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Slug != "compilers" {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestUnknownCommand(t *testing.T) {
	server := fakeAPI(t)
	var out strings.Builder
	if err := run(context.Background(), []string{"-api", server.URL + "/api", "-store", "memory", "fly"}, &out); err == nil {
		t.Fatalf("expected an error for an unknown command")
	}
}
