package content

import (
	"context"
	"encoding/json"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/api"
)

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// Categories is read-only; nothing here needs a CSRF token.
type Categories struct{ service }

func NewCategories(client *api.Client) *Categories {
	return &Categories{service{client: client}}
}

func (c *Categories) List(ctx context.Context) ([]Category, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/categories", nil, &raw); err != nil {
		return nil, err
	}
	page, err := decodeList[Category](raw, "categories")
	return page.Items, err
}
