package content

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/api"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/csrf"
)

type Author struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type Post struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Slug       string     `json:"slug"`
	Content    string     `json:"content"`
	Excerpt    string     `json:"excerpt,omitempty"`
	ImageURL   string     `json:"imageUrl,omitempty"`
	CategoryID string     `json:"categoryId,omitempty"`
	Category   *Category  `json:"category,omitempty"`
	Author     *Author    `json:"author,omitempty"`
	Published  bool       `json:"published"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

type PostInput struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Excerpt    string `json:"excerpt,omitempty"`
	ImageURL   string `json:"imageUrl,omitempty"`
	CategoryID string `json:"categoryId,omitempty"`
	Published  bool   `json:"published"`
}

func (in *PostInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" || in.Content == "" {
		return ErrInvalidInput
	}
	return nil
}

type Posts struct{ service }

func NewPosts(client *api.Client, tokens *csrf.Cache) *Posts {
	return &Posts{service{client: client, tokens: tokens}}
}

func (p *Posts) List(ctx context.Context, q ListQuery) (Page[Post], error) {
	var raw json.RawMessage
	if err := p.get(ctx, "/posts", q.values(), &raw); err != nil {
		return Page[Post]{}, err
	}
	return decodeList[Post](raw, "posts")
}

// ListMine returns the signed-in writer's own posts, drafts included.
func (p *Posts) ListMine(ctx context.Context, q ListQuery) (Page[Post], error) {
	var raw json.RawMessage
	if err := p.get(ctx, "/posts/mine", q.values(), &raw); err != nil {
		return Page[Post]{}, err
	}
	return decodeList[Post](raw, "posts")
}

func (p *Posts) Get(ctx context.Context, slugOrID string) (*Post, error) {
	slugOrID = strings.TrimSpace(slugOrID)
	if slugOrID == "" {
		return nil, ErrMissingID
	}
	var raw json.RawMessage
	if err := p.get(ctx, pathFor("posts", slugOrID), nil, &raw); err != nil {
		return nil, err
	}
	return decodeOne[Post](raw, "post")
}

func (p *Posts) Create(ctx context.Context, in PostInput) (*Post, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := p.mutate(ctx, http.MethodPost, "/posts", in, &raw); err != nil {
		return nil, err
	}
	return decodeOne[Post](raw, "post")
}

func (p *Posts) Update(ctx context.Context, id string, in PostInput) (*Post, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingID
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := p.mutate(ctx, http.MethodPut, pathFor("posts", id), in, &raw); err != nil {
		return nil, err
	}
	return decodeOne[Post](raw, "post")
}

func (p *Posts) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	return p.mutate(ctx, http.MethodDelete, pathFor("posts", id), nil, nil)
}
