package commitment

import (
	"fmt"
	"strings"
	"time"
)

// Side is the position a user takes on a challenge.
type Side string

const (
	SideFor     Side = "for"
	SideAgainst Side = "against"
)

// ParseSide accepts "for"/"against" in any case.
func ParseSide(raw string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(raw))) {
	case SideFor:
		return SideFor, nil
	case SideAgainst:
		return SideAgainst, nil
	default:
		return "", fmt.Errorf("invalid side %q", raw)
	}
}

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideFor || s == SideAgainst
}

// Commitment records a user's one-time pick of a side on a challenge.
type Commitment struct {
	ID          int64     `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	ChallengeID int64     `json:"challenge_id" db:"challenge_id"`
	Side        Side      `json:"side" db:"side"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
