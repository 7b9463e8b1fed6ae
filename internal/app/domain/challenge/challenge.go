package challenge

import (
	"strings"
	"time"

	apperrors "github.com/bealive/bealive-api/internal/errors"
)

// Challenge is a staked proposition owned by a single user.
type Challenge struct {
	ID          int64      `json:"id" db:"id"`
	OwnerID     string     `json:"owner_id" db:"owner_id"`
	Title       string     `json:"title" db:"title"`
	Description *string    `json:"description" db:"description"`
	AmountCents int64      `json:"amount_cents" db:"amount_cents"`
	StartsAt    *time.Time `json:"starts_at" db:"starts_at"`
	EndsAt      *time.Time `json:"ends_at" db:"ends_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// ActiveAt reports whether at falls within [StartsAt, EndsAt]. Nil bounds
// are unbounded on their side.
func (c Challenge) ActiveAt(at time.Time) bool {
	if c.StartsAt != nil && at.Before(*c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && at.After(*c.EndsAt) {
		return false
	}
	return true
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	AmountCents *int64     `json:"amount_cents,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.AmountCents == nil &&
		p.StartsAt == nil && p.EndsAt == nil
}

// Apply returns c with the patch fields merged in.
func (p Patch) Apply(c Challenge) Challenge {
	if p.Title != nil {
		c.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		c.Description = p.Description
	}
	if p.AmountCents != nil {
		c.AmountCents = *p.AmountCents
	}
	if p.StartsAt != nil {
		c.StartsAt = p.StartsAt
	}
	if p.EndsAt != nil {
		c.EndsAt = p.EndsAt
	}
	return c
}

// Filter selects challenges for listing. Before is an exclusive created_at
// cursor.
type Filter struct {
	OwnerID string
	Before  *time.Time
	Limit   int
}

// ValidateDraft checks the fields required to create a challenge.
func ValidateDraft(title string, amountCents int64, startsAt, endsAt *time.Time) error {
	if strings.TrimSpace(title) == "" {
		return apperrors.Validation("title is required")
	}
	if amountCents <= 0 {
		return apperrors.Validation("amount_cents must be positive")
	}
	return ValidateWindow(startsAt, endsAt)
}

// ValidateWindow rejects an end before the start when both are set.
func ValidateWindow(startsAt, endsAt *time.Time) error {
	if startsAt != nil && endsAt != nil && endsAt.Before(*startsAt) {
		return apperrors.Validation("ends_at must not be before starts_at")
	}
	return nil
}
