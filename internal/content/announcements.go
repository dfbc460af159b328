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

type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type AnnouncementInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Announcements struct{ service }

func NewAnnouncements(client *api.Client, tokens *csrf.Cache) *Announcements {
	return &Announcements{service{client: client, tokens: tokens}}
}

func (a *Announcements) List(ctx context.Context) ([]Announcement, error) {
	var raw json.RawMessage
	if err := a.get(ctx, "/announcements", nil, &raw); err != nil {
		return nil, err
	}
	page, err := decodeList[Announcement](raw, "announcements")
	return page.Items, err
}

func (a *Announcements) Create(ctx context.Context, in AnnouncementInput) (*Announcement, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" || in.Content == "" {
		return nil, ErrInvalidInput
	}
	var raw json.RawMessage
	if err := a.mutate(ctx, http.MethodPost, "/announcements", in, &raw); err != nil {
		return nil, err
	}
	return decodeOne[Announcement](raw, "announcement")
}

func (a *Announcements) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	return a.mutate(ctx, http.MethodDelete, pathFor("announcements", id), nil, nil)
}
