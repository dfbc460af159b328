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

const maxCommentLength = 2000

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	Content   string    `json:"content"`
	Author    *Author   `json:"author,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Comments struct{ service }

func NewComments(client *api.Client, tokens *csrf.Cache) *Comments {
	return &Comments{service{client: client, tokens: tokens}}
}

func (c *Comments) ListForPost(ctx context.Context, postID string) ([]Comment, error) {
	if strings.TrimSpace(postID) == "" {
		return nil, ErrMissingID
	}
	var raw json.RawMessage
	if err := c.get(ctx, pathFor("comments", "post", postID), nil, &raw); err != nil {
		return nil, err
	}
	page, err := decodeList[Comment](raw, "comments")
	return page.Items, err
}

type commentInput struct {
	PostID  string `json:"postId"`
	Content string `json:"content"`
}

func (c *Comments) Create(ctx context.Context, postID, text string) (*Comment, error) {
	text = strings.TrimSpace(text)
	if strings.TrimSpace(postID) == "" {
		return nil, ErrMissingID
	}
	if text == "" || len([]rune(text)) > maxCommentLength {
		return nil, ErrInvalidInput
	}
	var raw json.RawMessage
	if err := c.mutate(ctx, http.MethodPost, "/comments", commentInput{PostID: postID, Content: text}, &raw); err != nil {
		return nil, err
	}
	return decodeOne[Comment](raw, "comment")
}

func (c *Comments) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	return c.mutate(ctx, http.MethodDelete, pathFor("comments", id), nil, nil)
}
