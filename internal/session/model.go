package session

import (
	"encoding/json"
	"strings"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleWriter Role = "writer"
	RoleAdmin  Role = "admin"
)

func (r Role) rank() int {
	switch Role(strings.ToLower(string(r))) {
	case RoleAdmin:
		return 3
	case RoleWriter:
		return 2
	case RoleUser:
		return 1
	default:
		return 0
	}
}

func (r Role) Valid() bool {
	return r.rank() > 0
}

// Satisfies reports whether r grants access to views requiring required.
// An empty requirement is satisfied by any known role.
func (r Role) Satisfies(required Role) bool {
	if required == "" {
		return r.Valid()
	}
	return r.rank() >= required.rank()
}

type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UnmarshalJSON accepts both "id" and the "userId"/"_id" spellings the API
// has used for the identifier.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var aux struct {
		plain
		UserID  string `json:"userId"`
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*u = User(aux.plain)
	if u.ID == "" {
		u.ID = aux.UserID
	}
	if u.ID == "" {
		u.ID = aux.MongoID
	}
	return nil
}

type Status int

const (
	StatusUnknown Status = iota
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// State is a snapshot of the store. User is a copy; mutating it has no
// effect on the store.
type State struct {
	Status  Status `json:"-"`
	User    *User  `json:"user"`
	Loading bool   `json:"loading"`
}

func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

func (s State) Resolved() bool {
	return s.Status != StatusUnknown
}

func (s State) MarshalJSON() ([]byte, error) {
	type plain State
	return json.Marshal(struct {
		plain
		Status string `json:"status"`
	}{plain: plain(s), Status: s.Status.String()})
}

type RegisterInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type ProfileInput struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
}
