package content

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/api"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/csrf"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/session"
)

// Users backs the admin user management panel.
type Users struct{ service }

func NewUsers(client *api.Client, tokens *csrf.Cache) *Users {
	return &Users{service{client: client, tokens: tokens}}
}

func (u *Users) List(ctx context.Context, q ListQuery) (Page[session.User], error) {
	var raw json.RawMessage
	if err := u.get(ctx, "/admin/users", q.values(), &raw); err != nil {
		return Page[session.User]{}, err
	}
	return decodeList[session.User](raw, "users")
}

type roleInput struct {
	Role session.Role `json:"role"`
}

func (u *Users) UpdateRole(ctx context.Context, id string, role session.Role) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	if !role.Valid() {
		return ErrInvalidInput
	}
	return u.mutate(ctx, http.MethodPut, pathFor("admin", "users", id, "role"), roleInput{Role: role}, nil)
}

func (u *Users) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	return u.mutate(ctx, http.MethodDelete, pathFor("admin", "users", id), nil, nil)
}

type Stats struct {
	Users         int `json:"users"`
	Posts         int `json:"posts"`
	Comments      int `json:"comments"`
	Announcements int `json:"announcements"`
	GalleryItems  int `json:"galleryItems"`
}

type Dashboard struct{ service }

func NewDashboard(client *api.Client) *Dashboard {
	return &Dashboard{service{client: client}}
}

func (d *Dashboard) Stats(ctx context.Context) (*Stats, error) {
	var raw json.RawMessage
	if err := d.get(ctx, "/admin/stats", nil, &raw); err != nil {
		return nil, err
	}
	stats, err := decodeOne[Stats](raw, "stats")
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = &Stats{}
	}
	return stats, nil
}
