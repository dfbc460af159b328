package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/api"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/csrf"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/metrics"
)

var (
	ErrMissingCredentials = errors.New("session: email and password are required")
	ErrInvalidInput       = errors.New("session: invalid input")
	ErrNotAuthenticated   = errors.New("session: not authenticated")
)

// Store is the single source of truth for who is signed in. Operations that
// change the session are serialized; listeners observe changes in the order
// they were applied.
type Store struct {
	client *api.Client
	tokens *csrf.Cache

	opMu  sync.Mutex
	check singleflight.Group

	mu          sync.RWMutex
	status      Status
	user        *User
	epoch       uint64
	pending     int
	resolved    chan struct{}
	resolveOnce sync.Once

	subMu     sync.Mutex
	listeners map[int]func(State)
	nextSub   int
}

func NewStore(client *api.Client, tokens *csrf.Cache) *Store {
	return &Store{
		client:    client,
		tokens:    tokens,
		status:    StatusUnknown,
		resolved:  make(chan struct{}),
		listeners: make(map[int]func(State)),
	}
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	state := State{
		Status:  s.status,
		Loading: s.pending > 0 || s.status == StatusUnknown,
	}
	if s.user != nil {
		u := *s.user
		state.User = &u
	}
	return state
}

func (s *Store) User() *User {
	return s.State().User
}

func (s *Store) IsAuthenticated() bool {
	return s.State().Authenticated()
}

func (s *Store) Loading() bool {
	return s.State().Loading
}

// Resolved is closed once the first session check (or any other transition)
// has moved the store out of the Unknown state.
func (s *Store) Resolved() <-chan struct{} {
	return s.resolved
}

// WaitResolved blocks until the store leaves Unknown or ctx is done, and
// returns the state observed at that point.
func (s *Store) WaitResolved(ctx context.Context) State {
	select {
	case <-s.resolved:
	case <-ctx.Done():
	}
	return s.State()
}

// Subscribe registers fn for every state change. The returned func removes it.
// fn runs while the mutation lock is held and must not call back into
// mutating operations.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.listeners, id)
		s.subMu.Unlock()
	}
}

// CheckSession asks the API who is signed in. Failure is never reported:
// any error simply leaves the store Anonymous. Concurrent checks share one
// request.
func (s *Store) CheckSession(ctx context.Context) State {
	value, _, _ := s.check.Do("me", func() (interface{}, error) {
		s.checkSession(ctx)
		return s.State(), nil
	})
	state, _ := value.(State)
	return state
}

func (s *Store) checkSession(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.beginLoading()
	defer s.endLoading()

	user, err := s.fetchMe(ctx)
	if err != nil {
		if !api.IsUnauthorized(err) {
			log.Printf("session check failed: %v", err)
		}
		s.transition(StatusAnonymous, nil)
		return
	}
	s.transition(StatusAuthenticated, user)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login posts credentials and stores the returned user. Errors go back to the
// caller untouched so the form can show them; the state does not change.
func (s *Store) Login(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.beginLoading()
	defer s.endLoading()

	var raw json.RawMessage
	err := s.tokens.Do(ctx, func(ctx context.Context, token string) error {
		return s.client.Do(ctx, api.Request{
			Method:               http.MethodPost,
			Path:                 "/auth/login",
			Body:                 credentials{Email: email, Password: password},
			CSRFToken:            token,
			SkipUnauthorizedHook: true,
		}, &raw)
	})
	if err != nil {
		return nil, err
	}

	user := decodeUser(raw)
	if user == nil {
		// Some deployments answer login with a bare status; ask who we are.
		user, err = s.fetchMe(ctx)
		if err != nil {
			return nil, err
		}
	}
	s.transition(StatusAuthenticated, user)
	u := *user
	return &u, nil
}

// Register creates an account. It never signs the user in; callers send the
// user to the login view afterwards.
func (s *Store) Register(ctx context.Context, in RegisterInput) error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	if in.FirstName == "" || in.LastName == "" || in.Password == "" {
		return ErrInvalidInput
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return ErrInvalidInput
	}

	s.beginLoading()
	defer s.endLoading()

	return s.tokens.Do(ctx, func(ctx context.Context, token string) error {
		return s.client.Do(ctx, api.Request{
			Method:               http.MethodPost,
			Path:                 "/auth/register",
			Body:                 in,
			CSRFToken:            token,
			SkipUnauthorizedHook: true,
		}, nil)
	})
}

// Logout clears the local session whatever the server says. A server error
// is still returned after the cleanup.
func (s *Store) Logout(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.beginLoading()
	defer s.endLoading()

	err := s.tokens.Do(ctx, func(ctx context.Context, token string) error {
		return s.client.Do(ctx, api.Request{
			Method:               http.MethodPost,
			Path:                 "/auth/logout",
			CSRFToken:            token,
			SkipUnauthorizedHook: true,
		}, nil)
	})

	s.transition(StatusAnonymous, nil)
	s.tokens.ClearToken()

	if err != nil {
		return fmt.Errorf("session: logout: %w", err)
	}
	return nil
}

// UpdateProfile changes the signed-in user's name or email.
func (s *Store) UpdateProfile(ctx context.Context, in ProfileInput) (*User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	if in.FirstName == "" && in.LastName == "" && in.Email == "" {
		return nil, ErrInvalidInput
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return nil, ErrInvalidInput
		}
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	current := s.User()
	if current == nil || !s.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	s.beginLoading()
	defer s.endLoading()

	var raw json.RawMessage
	err := s.tokens.Do(ctx, func(ctx context.Context, token string) error {
		return s.client.Do(ctx, api.Request{
			Method:               http.MethodPut,
			Path:                 "/auth/update-profile",
			Body:                 in,
			CSRFToken:            token,
			SkipUnauthorizedHook: true,
		}, &raw)
	})
	if err != nil {
		if api.IsUnauthorized(err) {
			s.transition(StatusAnonymous, nil)
		}
		return nil, err
	}

	updated := decodeUser(raw)
	if updated == nil {
		updated = current
		if in.FirstName != "" {
			updated.FirstName = in.FirstName
		}
		if in.LastName != "" {
			updated.LastName = in.LastName
		}
		if in.Email != "" {
			updated.Email = in.Email
		}
	}
	s.transition(StatusAuthenticated, updated)
	u := *updated
	return &u, nil
}

type passwordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Store) ChangePassword(ctx context.Context, current, next string) error {
	if current == "" || next == "" || current == next {
		return ErrInvalidInput
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if !s.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	s.beginLoading()
	defer s.endLoading()

	err := s.tokens.Do(ctx, func(ctx context.Context, token string) error {
		return s.client.Do(ctx, api.Request{
			Method:               http.MethodPut,
			Path:                 "/auth/change-password",
			Body:                 passwordChange{CurrentPassword: current, NewPassword: next},
			CSRFToken:            token,
			SkipUnauthorizedHook: true,
		}, nil)
	})
	if api.IsUnauthorized(err) {
		s.transition(StatusAnonymous, nil)
	}
	return err
}

// Epoch counts session transitions. Requests carry the value read when they
// were sent so a late 401 can be matched to the session it was sent under.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Expire drops an authenticated session after the API answered 401 to a
// request sent at epoch sentAt. A 401 for a request that predates the latest
// transition (a login that finished meanwhile) is ignored.
func (s *Store) Expire(sentAt uint64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.RLock()
	stale := s.epoch != sentAt
	status := s.status
	s.mu.RUnlock()
	if stale || status != StatusAuthenticated {
		return
	}
	s.transition(StatusAnonymous, nil)
}

func (s *Store) fetchMe(ctx context.Context) (*User, error) {
	var raw json.RawMessage
	err := s.client.Do(ctx, api.Request{
		Method:               http.MethodGet,
		Path:                 "/auth/me",
		SkipUnauthorizedHook: true,
	}, &raw)
	if err != nil {
		return nil, err
	}
	user := decodeUser(raw)
	if user == nil {
		return nil, fmt.Errorf("session: /auth/me returned no user")
	}
	return user, nil
}

// transition must be called with opMu held.
func (s *Store) transition(status Status, user *User) {
	s.mu.Lock()
	changed := s.status != status
	s.status = status
	s.epoch++
	if user != nil {
		u := *user
		s.user = &u
	} else {
		s.user = nil
	}
	state := s.snapshotLocked()
	s.mu.Unlock()
	// Subscribers see the settled result; the caller's own pending count
	// drops only after transition returns.
	state.Loading = status == StatusUnknown

	if status != StatusUnknown {
		s.resolveOnce.Do(func() { close(s.resolved) })
	}
	if changed {
		metrics.SessionTransitions.WithLabelValues(status.String()).Inc()
	}
	s.notify(state)
}

func (s *Store) notify(state State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func (s *Store) beginLoading() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

func (s *Store) endLoading() {
	s.mu.Lock()
	if s.pending > 0 {
		s.pending--
	}
	s.mu.Unlock()
}

func decodeUser(raw json.RawMessage) *User {
	if len(raw) == 0 {
		return nil
	}
	var envelope struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.User != nil && envelope.User.ID != "" {
		return envelope.User
	}
	var user User
	if err := json.Unmarshal(raw, &user); err == nil && user.ID != "" {
		return &user
	}
	return nil
}
