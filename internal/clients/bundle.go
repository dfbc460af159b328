package clients

import (
	"net/http"
	"sync"
	"time"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/api"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/config"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/content"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/csrf"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/presence"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/session"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/visitor"
)

type Options struct {
	UserAgent string
	Lang      string
	// Transport and Dialer override the network, mostly for tests.
	Transport http.RoundTripper
	Dialer    presence.Dialer
}

// Bundle is everything one visitor talks to the API through. Each visitor
// gets its own cookie jar, token cache, session and presence channel.
type Bundle struct {
	VisitorID string

	API      *api.Client
	CSRF     *csrf.Cache
	Session  *session.Store
	Presence *presence.Channel

	Posts         *content.Posts
	Comments      *content.Comments
	Gallery       *content.Gallery
	Announcements *content.Announcements
	Categories    *content.Categories
	Users         *content.Users
	Stats         *content.Dashboard

	unsubscribe func()
	closeOnce   sync.Once

	mu          sync.Mutex
	record      visitor.Record
	lastSeen    time.Time
	persisted   []visitor.Cookie
	persistedAt time.Time
}

func NewBundle(cfg config.Config, visitorID string, opts Options) (*Bundle, error) {
	client, err := api.New(api.Options{
		BaseURL:    cfg.APIBaseURL,
		Timeout:    cfg.APITimeout,
		CSRFHeader: cfg.CSRFHeader,
		UserAgent:  opts.UserAgent,
		Lang:       firstNonEmpty(opts.Lang, cfg.DefaultLang),
		Transport:  opts.Transport,
	})
	if err != nil {
		return nil, err
	}

	tokens := csrf.New(csrf.FromClient(client), csrf.WithTTL(cfg.CSRFTTL), csrf.WithFetchTimeout(cfg.APITimeout))
	store := session.NewStore(client, tokens)
	channel := presence.New(cfg.SocketURL, presence.Options{
		Dialer: opts.Dialer,
		Header: client.CookieHeader,
		Policy: presence.ReconnectPolicy{
			MaxAttempts:           cfg.PresenceReconnectAttempts,
			InitialBackoff:        cfg.PresenceBackoffInitial,
			MaxBackoff:            cfg.PresenceBackoffMax,
			ReconnectOnDisconnect: cfg.PresenceReconnectOnKick,
		},
	})

	// A 401 on any content call means the API session is gone.
	client.OnUnauthorized(store)

	now := time.Now().UTC()
	b := &Bundle{
		VisitorID:     visitorID,
		API:           client,
		CSRF:          tokens,
		Session:       store,
		Presence:      channel,
		Posts:         content.NewPosts(client, tokens),
		Comments:      content.NewComments(client, tokens),
		Gallery:       content.NewGallery(client, tokens),
		Announcements: content.NewAnnouncements(client, tokens),
		Categories:    content.NewCategories(client),
		Users:         content.NewUsers(client, tokens),
		Stats:         content.NewDashboard(client),
		unsubscribe:   store.Subscribe(channel.Observe),
		lastSeen:      now,
		record: visitor.Record{
			ID:        visitorID,
			Lang:      client.Lang(),
			UserAgent: opts.UserAgent,
			Device:    visitor.Describe(opts.UserAgent),
			CreatedAt: now,
			LastSeen:  now,
		},
	}
	return b, nil
}

// restore loads persisted credentials into a fresh bundle.
func (b *Bundle) restore(rec *visitor.Record) {
	b.API.SetCookies(rec.HTTPCookies())
	b.API.SetLang(rec.Lang)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.record.CreatedAt = rec.CreatedAt
	if b.record.UserAgent == "" {
		b.record.UserAgent = rec.UserAgent
		b.record.Device = rec.Device
	}
	b.persisted = append([]visitor.Cookie(nil), rec.Cookies...)
	b.persistedAt = rec.LastSeen
}

func (b *Bundle) Touch(now time.Time) {
	b.mu.Lock()
	b.lastSeen = now
	b.mu.Unlock()
}

func (b *Bundle) LastSeen() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSeen
}

// Device reports the labels derived from the visitor's User-Agent.
func (b *Bundle) Device() visitor.Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record.Device
}

// snapshot returns the record to persist and whether the cookies changed
// since the last save.
func (b *Bundle) snapshot(now time.Time, ttl time.Duration) (visitor.Record, bool) {
	rec := visitor.Record{}
	rec.SetCookies(b.API.Cookies())

	b.mu.Lock()
	defer b.mu.Unlock()
	changed := !sameCookies(rec.Cookies, b.persisted)
	out := b.record
	out.Cookies = rec.Cookies
	out.Lang = b.API.Lang()
	out.LastSeen = now
	out.ExpiresAt = now.Add(ttl)
	return out, changed
}

func (b *Bundle) markPersisted(rec visitor.Record) {
	b.mu.Lock()
	b.persisted = append([]visitor.Cookie(nil), rec.Cookies...)
	b.persistedAt = rec.LastSeen
	b.mu.Unlock()
}

func (b *Bundle) lastPersisted() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.persistedAt
}

// Close tears down the presence channel. It is safe to call more than once.
func (b *Bundle) Close() {
	if b == nil {
		return
	}
	b.closeOnce.Do(func() {
		if b.unsubscribe != nil {
			b.unsubscribe()
		}
		if b.Presence != nil {
			b.Presence.Close()
		}
	})
}

func sameCookies(a, b []visitor.Cookie) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[visitor.Cookie]int, len(a))
	for _, c := range a {
		seen[c]++
	}
	for _, c := range b {
		if seen[c] == 0 {
			return false
		}
		seen[c]--
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
