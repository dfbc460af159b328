package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/api"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/csrf"
)

var (
	ErrInvalidInput = errors.New("content: invalid input")
	ErrMissingID    = errors.New("content: missing id")
)

// service is embedded by every resource module. Reads go straight to the
// API; writes fetch a CSRF token first and retry once on 403.
type service struct {
	client *api.Client
	tokens *csrf.Cache
}

func (s service) get(ctx context.Context, path string, query url.Values, out any) error {
	return s.client.Get(ctx, path, query, out)
}

func (s service) mutate(ctx context.Context, method, path string, body, out any) error {
	return s.tokens.Do(ctx, func(ctx context.Context, token string) error {
		return s.client.Do(ctx, api.Request{
			Method:    method,
			Path:      path,
			Body:      body,
			CSRFToken: token,
		}, out)
	})
}

func pathFor(parts ...string) string {
	out := ""
	for _, p := range parts {
		out += "/" + url.PathEscape(p)
	}
	return out
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

type ListQuery struct {
	Page     int
	Limit    int
	Category string
	Search   string
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// decodeList reads either a bare JSON array or an object carrying the items
// under key, with optional pagination.
func decodeList[T any](raw json.RawMessage, key string) (Page[T], error) {
	var page Page[T]
	if len(raw) == 0 {
		return page, nil
	}
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &page.Items); err != nil {
			return page, err
		}
		page.Pagination.Total = len(page.Items)
		return page, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return page, err
	}
	for _, k := range []string{key, "items", "data"} {
		if items, ok := envelope[k]; ok {
			if err := json.Unmarshal(items, &page.Items); err != nil {
				return page, err
			}
			break
		}
	}
	if p, ok := envelope["pagination"]; ok {
		_ = json.Unmarshal(p, &page.Pagination)
	}
	if page.Pagination.Total == 0 {
		page.Pagination.Total = len(page.Items)
	}
	return page, nil
}

// decodeOne reads an object either bare or wrapped under key. A null payload,
// bare or wrapped, yields nil.
func decodeOne[T any](raw json.RawMessage, key string) (*T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	if inner, ok := envelope[key]; ok {
		inner = bytes.TrimSpace(inner)
		if len(inner) == 0 || bytes.Equal(inner, []byte("null")) {
			return nil, nil
		}
		if inner[0] == '{' {
			raw = inner
		}
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
