package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/api"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/csrf"
)

type GalleryItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

type GalleryInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl"`
}

type Gallery struct{ service }

func NewGallery(client *api.Client, tokens *csrf.Cache) *Gallery {
	return &Gallery{service{client: client, tokens: tokens}}
}

func (g *Gallery) List(ctx context.Context, q ListQuery) (Page[GalleryItem], error) {
	var raw json.RawMessage
	if err := g.get(ctx, "/gallery", q.values(), &raw); err != nil {
		return Page[GalleryItem]{}, err
	}
	return decodeList[GalleryItem](raw, "items")
}

// Upload registers an already hosted image in the gallery.
func (g *Gallery) Upload(ctx context.Context, in GalleryInput) (*GalleryItem, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.Title == "" || in.ImageURL == "" {
		return nil, ErrInvalidInput
	}
	if u, err := url.Parse(in.ImageURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, ErrInvalidInput
	}
	var raw json.RawMessage
	if err := g.mutate(ctx, http.MethodPost, "/gallery", in, &raw); err != nil {
		return nil, err
	}
	return decodeOne[GalleryItem](raw, "item")
}

func (g *Gallery) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	return g.mutate(ctx, http.MethodDelete, pathFor("gallery", id), nil, nil)
}
