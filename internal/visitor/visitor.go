package visitor

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var ErrNotFound = errors.New("visitor: not found")

// Cookie is one upstream credential held for a visitor. The API session
// cookie lives here, never in the browser.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record is what survives a process restart for one browser. The signed-in
// user and the CSRF token are not stored; both are re-derived from the API.
type Record struct {
	ID        string   `json:"id"`
	Cookies   []Cookie `json:"cookies"`
	Lang      string   `json:"lang,omitempty"`
	UserAgent string   `json:"userAgent,omitempty"`
	Device
	CreatedAt time.Time `json:"createdAt"`
	LastSeen  time.Time `json:"lastSeen"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

func (r *Record) SetCookies(cookies []*http.Cookie) {
	r.Cookies = r.Cookies[:0]
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		r.Cookies = append(r.Cookies, Cookie{Name: c.Name, Value: c.Value})
	}
}

func (r *Record) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(r.Cookies))
	for _, c := range r.Cookies {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

type Store interface {
	Save(ctx context.Context, rec *Record) error
	// Get returns ErrNotFound for missing and expired records.
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	// Touch marks the record as seen at seen and pushes its expiry to seen+ttl.
	Touch(ctx context.Context, id string, seen time.Time, ttl time.Duration) error
	// Purge removes records expired at now and reports how many went.
	Purge(ctx context.Context, now time.Time) (int, error)
	Close() error
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
