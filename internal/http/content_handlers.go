package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/content"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/session"
)

type homeResponse struct {
	Session       session.State          `json:"session"`
	Posts         []content.Post         `json:"posts"`
	Announcements []content.Announcement `json:"announcements"`
	Categories    []content.Category     `json:"categories"`
}

// handleHome loads the landing page sections in parallel.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	resp := homeResponse{Session: bundle.Session.State()}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		page, err := bundle.Posts.List(ctx, content.ListQuery{Page: 1, Limit: 6})
		resp.Posts = page.Items
		return err
	})
	g.Go(func() error {
		items, err := bundle.Announcements.List(ctx)
		resp.Announcements = items
		return err
	})
	g.Go(func() error {
		items, err := bundle.Categories.List(ctx)
		resp.Categories = items
		return err
	})
	if err := g.Wait(); err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Posts

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	page, err := bundle.Posts.List(r.Context(), listQuery(r))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	post, err := bundle.Posts.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if post == nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"post": post})
}

// postID resolves the slug in the URL to the post's ID.
func (s *Server) postID(r *http.Request) (string, error) {
	bundle := bundleFromContext(r.Context())
	post, err := bundle.Posts.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		return "", err
	}
	if post == nil || post.ID == "" {
		return "", content.ErrMissingID
	}
	return post.ID, nil
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	id, err := s.postID(r)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	bundle := bundleFromContext(r.Context())
	comments, err := bundle.Comments.ListForPost(r.Context(), id)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"comments": comments})
}

type commentRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeInput(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	id, err := s.postID(r)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	bundle := bundleFromContext(r.Context())
	comment, err := bundle.Comments.Create(r.Context(), id, req.Content)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"comment": comment})
}

func (s *Server) handleListGallery(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	page, err := bundle.Gallery.List(r.Context(), listQuery(r))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	items, err := bundle.Announcements.List(r.Context())
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"announcements": items})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	items, err := bundle.Categories.List(r.Context())
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": items})
}

// Writer

func (s *Server) handleListMyPosts(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	page, err := bundle.Posts.ListMine(r.Context(), listQuery(r))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req content.PostInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	bundle := bundleFromContext(r.Context())
	post, err := bundle.Posts.Create(r.Context(), req)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"post": post})
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var req content.PostInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	bundle := bundleFromContext(r.Context())
	post, err := bundle.Posts.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"post": post})
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	if err := bundle.Posts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Admin

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	page, err := bundle.Users.List(r.Context(), listQuery(r))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	bundle := bundleFromContext(r.Context())
	role := session.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if err := bundle.Users.UpdateRole(r.Context(), chi.URLParam(r, "id"), role); err != nil {
		writeAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if user := bundle.Session.User(); user != nil && user.ID == id {
		writeError(w, http.StatusBadRequest, "cannot_delete_self")
		return
	}
	if err := bundle.Users.Delete(r.Context(), id); err != nil {
		writeAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req content.AnnouncementInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	bundle := bundleFromContext(r.Context())
	item, err := bundle.Announcements.Create(r.Context(), req)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"announcement": item})
}

func (s *Server) handleDeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	if err := bundle.Announcements.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadGallery(w http.ResponseWriter, r *http.Request) {
	var req content.GalleryInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	bundle := bundleFromContext(r.Context())
	item, err := bundle.Gallery.Upload(r.Context(), req)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"item": item})
}

func (s *Server) handleDeleteGallery(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	if err := bundle.Gallery.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	if err := bundle.Comments.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	bundle := bundleFromContext(r.Context())
	stats, err := bundle.Stats.Stats(r.Context())
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}
