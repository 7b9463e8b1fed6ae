package network

import (
	"time"

	"github.com/bealive/bealive-api/internal/app/domain/profile"
)

// Status is the state of a connection edge.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusBlocked  Status = "blocked"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusBlocked:
		return true
	}
	return false
}

// Connection is a directed edge requester -> addressee.
type Connection struct {
	ID          int64     `json:"id" db:"id"`
	RequesterID string    `json:"requester_id" db:"requester_id"`
	AddresseeID string    `json:"addressee_id" db:"addressee_id"`
	Status      Status    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Filter selects edges. Empty fields do not constrain.
type Filter struct {
	RequesterID string
	AddresseeID string
	Status      Status
}

// Counts summarizes a user's edges.
type Counts struct {
	Followers int `json:"followers"`
	Following int `json:"following"`
}

// Listing is a user's hydrated network.
type Listing struct {
	Followers []profile.Profile `json:"followers"`
	Following []profile.Profile `json:"following"`
	Counts    Counts            `json:"counts"`
}

// ContactMatch is a known user matched from an imported contact.
type ContactMatch struct {
	UserID    string  `json:"user_id" db:"user_id"`
	Username  *string `json:"username" db:"username"`
	FullName  *string `json:"full_name" db:"full_name"`
	AvatarURL *string `json:"avatar_url" db:"avatar_url"`
	PhoneE164 *string `json:"phone_e164,omitempty" db:"phone_e164"`
	Email     *string `json:"email,omitempty" db:"email"`
}

// ContactQuery is the normalized lookup sent to the store.
type ContactQuery struct {
	Phones   []string
	Suffixes []string
	Emails   []string
}

// Empty reports whether the query has nothing to match.
func (q ContactQuery) Empty() bool {
	return len(q.Phones) == 0 && len(q.Suffixes) == 0 && len(q.Emails) == 0
}
