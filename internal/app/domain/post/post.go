package post

import (
	"time"

	"github.com/bealive/bealive-api/internal/app/domain/challenge"
	"github.com/bealive/bealive-api/internal/app/domain/profile"
)

// Post is an update published under a challenge.
type Post struct {
	ID          int64     `json:"id" db:"id"`
	ChallengeID int64     `json:"challenge_id" db:"challenge_id"`
	AuthorID    string    `json:"author_id" db:"author_id"`
	Caption     *string   `json:"caption" db:"caption"`
	MediaURL    *string   `json:"media_url" db:"media_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// WithCounts is a post plus the commitment breakdown of its challenge.
type WithCounts struct {
	Post
	ForCount           int64 `json:"for_count" db:"for_count"`
	AgainstCount       int64 `json:"against_count" db:"against_count"`
	ForAmountCents     int64 `json:"for_amount_cents" db:"for_amount_cents"`
	AgainstAmountCents int64 `json:"against_amount_cents" db:"against_amount_cents"`
}

// NewWithCounts merges a post with its challenge stats.
func NewWithCounts(p Post, s challenge.Stats) WithCounts {
	return WithCounts{
		Post:               p,
		ForCount:           s.ForCount,
		AgainstCount:       s.AgainstCount,
		ForAmountCents:     s.ForAmountCents,
		AgainstAmountCents: s.AgainstAmountCents,
	}
}

// Full is a post with counts and the author's profile, if any.
type Full struct {
	WithCounts
	AuthorProfile *profile.Profile `json:"author_profile"`
}

// NewChallenge describes a challenge created together with a post.
type NewChallenge struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	AmountCents int64      `json:"amount_cents"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

// CreateParams is the resolved input of the atomic create operation. Exactly
// one of ChallengeID or NewChallenge is set.
type CreateParams struct {
	AuthorID     string
	ChallengeID  *int64
	NewChallenge *NewChallenge
	Caption      *string
}

// Filter selects posts for listing. Before is an exclusive created_at cursor.
type Filter struct {
	ChallengeID *int64
	AuthorID    string
	Before      *time.Time
	Limit       int
}

// FeedPage is a page of the global feed.
type FeedPage struct {
	Items      []WithCounts `json:"items"`
	NextCursor *time.Time   `json:"next_cursor"`
}
