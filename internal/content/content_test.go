package content

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/api"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/csrf"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/session"
)

type upstream struct {
	mu          sync.Mutex
	tokenCalls  int
	rejectFirst bool
	rejected    bool
	lastQuery   string
	lastBody    map[string]any
	roles       map[string]string
}

func (u *upstream) handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/csrf-token", func(w http.ResponseWriter, _ *http.Request) {
			u.mu.Lock()
			u.tokenCalls++
			n := u.tokenCalls
			u.mu.Unlock()
			writeTestJSON(w, http.StatusOK, map[string]string{"csrfToken": "t" + string(rune('0'+n))})
		})
		r.Get("/posts", func(w http.ResponseWriter, r *http.Request) {
			u.mu.Lock()
			u.lastQuery = r.URL.RawQuery
			u.mu.Unlock()
			writeTestJSON(w, http.StatusOK, map[string]any{
				"posts": []map[string]any{
					{"id": "p1", "title": "Hello", "slug": "hello", "content": "x", "createdAt": "2026-01-02T10:00:00Z"},
				},
				"pagination": map[string]int{"page": 2, "limit": 1, "total": 5, "totalPages": 5},
			})
		})
		r.Get("/posts/{slug}", func(w http.ResponseWriter, r *http.Request) {
			switch chi.URLParam(r, "slug") {
			case "gone":
				writeTestJSON(w, http.StatusOK, map[string]any{"post": nil})
				return
			case "void":
				writeTestJSON(w, http.StatusOK, nil)
				return
			}
			if chi.URLParam(r, "slug") != "hello" {
				writeTestJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
				return
			}
			writeTestJSON(w, http.StatusOK, map[string]any{"post": map[string]any{"id": "p1", "slug": "hello", "title": "Hello"}})
		})
		r.Post("/posts", u.protected(func(w http.ResponseWriter, body map[string]any) {
			writeTestJSON(w, http.StatusCreated, map[string]any{"id": "p2", "title": body["title"], "slug": "new"})
		}))
		r.Get("/comments/post/{id}", func(w http.ResponseWriter, _ *http.Request) {
			writeTestJSON(w, http.StatusOK, []map[string]any{{"id": "c1", "postId": "p1", "content": "nice"}})
		})
		r.Get("/categories", func(w http.ResponseWriter, _ *http.Request) {
			writeTestJSON(w, http.StatusOK, map[string]any{"categories": []map[string]string{{"id": "1", "name": "Go"}}})
		})
		r.Put("/admin/users/{id}/role", u.protected(func(w http.ResponseWriter, body map[string]any) {
			w.WriteHeader(http.StatusNoContent)
		}))
		r.Get("/admin/stats", func(w http.ResponseWriter, _ *http.Request) {
			writeTestJSON(w, http.StatusOK, map[string]int{"users": 3, "posts": 10})
		})
	})
	return r
}

func (u *upstream) protected(next func(http.ResponseWriter, map[string]any)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CSRF-Token") == "" {
			writeTestJSON(w, http.StatusForbidden, map[string]string{"message": "missing csrf"})
			return
		}
		u.mu.Lock()
		if u.rejectFirst && !u.rejected {
			u.rejected = true
			u.mu.Unlock()
			writeTestJSON(w, http.StatusForbidden, map[string]string{"message": "stale csrf"})
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		u.lastBody = body
		u.mu.Unlock()
		next(w, body)
	}
}

func writeTestJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func newTestClient(t *testing.T, up *upstream) (*api.Client, *csrf.Cache) {
	t.Helper()
	server := httptest.NewServer(up.handler())
	t.Cleanup(server.Close)
	client, err := api.New(api.Options{BaseURL: server.URL + "/api"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return client, csrf.New(csrf.FromClient(client))
}

func TestPostsListDecodesEnvelope(t *testing.T) {
	up := &upstream{}
	client, tokens := newTestClient(t, up)
	posts := NewPosts(client, tokens)

	page, err := posts.List(context.Background(), ListQuery{Page: 2, Limit: 1, Search: "go"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Slug != "hello" {
		t.Fatalf("unexpected items %+v", page.Items)
	}
	if page.Pagination.TotalPages != 5 || page.Pagination.Page != 2 {
		t.Fatalf("unexpected pagination %+v", page.Pagination)
	}
	if page.Items[0].CreatedAt.IsZero() {
		t.Fatalf("expected created time to be parsed")
	}
	up.mu.Lock()
	defer up.mu.Unlock()
	if up.lastQuery != "limit=1&page=2&search=go" {
		t.Fatalf("unexpected query %q", up.lastQuery)
	}
	if up.tokenCalls != 0 {
		t.Fatalf("reads must not fetch csrf tokens")
	}
}

func TestPostsGetUnwrapsAndMapsNotFound(t *testing.T) {
	client, tokens := newTestClient(t, &upstream{})
	posts := NewPosts(client, tokens)

	post, err := posts.Get(context.Background(), "hello")
	if err != nil || post == nil || post.ID != "p1" {
		t.Fatalf("expected post p1, got %+v (%v)", post, err)
	}
	if _, err := posts.Get(context.Background(), "missing"); api.StatusOf(err) != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
	if _, err := posts.Get(context.Background(), " "); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected missing id, got %v", err)
	}
}

func TestPostsGetNullPayloadIsNil(t *testing.T) {
	client, tokens := newTestClient(t, &upstream{})
	posts := NewPosts(client, tokens)

	for _, slug := range []string{"gone", "void"} {
		post, err := posts.Get(context.Background(), slug)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", slug, err)
		}
		if post != nil {
			t.Fatalf("%s: expected nil post, got %+v", slug, post)
		}
	}
}

func TestDecodeOneNull(t *testing.T) {
	cases := map[string]bool{
		``:                     true,
		`null`:                 true,
		` null `:               true,
		`{"post":null}`:        true,
		`{"post":{"id":"p1"}}`: false,
		`{"id":"p1"}`:          false,
	}
	for raw, wantNil := range cases {
		got, err := decodeOne[Post](json.RawMessage(raw), "post")
		if err != nil {
			t.Fatalf("%q: %v", raw, err)
		}
		if (got == nil) != wantNil {
			t.Fatalf("%q: expected nil=%v, got %+v", raw, wantNil, got)
		}
		if got != nil && got.ID != "p1" {
			t.Fatalf("%q: expected id p1, got %+v", raw, got)
		}
	}
}

func TestCreatePostRetriesOnStaleToken(t *testing.T) {
	up := &upstream{rejectFirst: true}
	client, tokens := newTestClient(t, up)
	posts := NewPosts(client, tokens)

	post, err := posts.Create(context.Background(), PostInput{Title: " New ", Content: "body"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if post.ID != "p2" || post.Title != "New" {
		t.Fatalf("unexpected post %+v", post)
	}
	up.mu.Lock()
	defer up.mu.Unlock()
	if up.tokenCalls != 2 {
		t.Fatalf("expected a fresh token after 403, got %d fetches", up.tokenCalls)
	}
}

func TestCreatePostValidates(t *testing.T) {
	up := &upstream{}
	client, tokens := newTestClient(t, up)
	if _, err := NewPosts(client, tokens).Create(context.Background(), PostInput{Title: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if up.tokenCalls != 0 {
		t.Fatalf("expected no network call for invalid input")
	}
}

func TestCommentsAndCategoriesAcceptBareArrays(t *testing.T) {
	client, tokens := newTestClient(t, &upstream{})

	comments, err := NewComments(client, tokens).ListForPost(context.Background(), "p1")
	if err != nil || len(comments) != 1 || comments[0].Content != "nice" {
		t.Fatalf("unexpected comments %+v (%v)", comments, err)
	}
	categories, err := NewCategories(client).List(context.Background())
	if err != nil || len(categories) != 1 || categories[0].Name != "Go" {
		t.Fatalf("unexpected categories %+v (%v)", categories, err)
	}
}

func TestUpdateRoleSendsRole(t *testing.T) {
	up := &upstream{}
	client, tokens := newTestClient(t, up)
	users := NewUsers(client, tokens)

	if err := users.UpdateRole(context.Background(), "7", session.RoleWriter); err != nil {
		t.Fatalf("update role: %v", err)
	}
	up.mu.Lock()
	role := up.lastBody["role"]
	up.mu.Unlock()
	if role != "writer" {
		t.Fatalf("expected writer role in body, got %v", role)
	}
	if err := users.UpdateRole(context.Background(), "7", "owner"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected unknown role to be rejected, got %v", err)
	}
}

func TestDashboardStats(t *testing.T) {
	client, _ := newTestClient(t, &upstream{})
	stats, err := NewDashboard(client).Stats(context.Background())
	if err != nil || stats.Users != 3 || stats.Posts != 10 {
		t.Fatalf("unexpected stats %+v (%v)", stats, err)
	}
}

func TestGalleryUploadRejectsNonHTTPImage(t *testing.T) {
	client, tokens := newTestClient(t, &upstream{})
	_, err := NewGallery(client, tokens).Upload(context.Background(), GalleryInput{Title: "x", ImageURL: "javascript:alert(1)"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
