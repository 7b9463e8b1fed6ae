package challenges

import (
	"context"
	"strings"
	"time"

	"github.com/bealive/bealive-api/internal/app/domain/challenge"
	"github.com/bealive/bealive-api/internal/app/domain/post"
	"github.com/bealive/bealive-api/internal/app/storage"
	apperrors "github.com/bealive/bealive-api/internal/errors"
	"github.com/bealive/bealive-api/pkg/logger"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// ListFilter selects challenges. Active nil means no activity filter.
type ListFilter struct {
	OwnerID string
	Active  *bool
	Before  *time.Time
	Limit   int
}

// Service manages the challenge lifecycle. A challenge is open until its
// first commitment and locked from then on.
type Service struct {
	store       storage.ChallengeStore
	commitments storage.CommitmentStore
	stats       storage.StatsStore
	posts       storage.PostStore
	log         *logger.Logger
	now         func() time.Time
}

// New constructs a challenge service.
func New(store storage.ChallengeStore, commitments storage.CommitmentStore, stats storage.StatsStore, posts storage.PostStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("challenges")
	}
	return &Service{
		store:       store,
		commitments: commitments,
		stats:       stats,
		posts:       posts,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and persists a new challenge owned by c.OwnerID.
func (s *Service) Create(ctx context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	if strings.TrimSpace(c.OwnerID) == "" {
		return challenge.Challenge{}, apperrors.Validation("owner_id is required")
	}
	if err := challenge.ValidateDraft(c.Title, c.AmountCents, c.StartsAt, c.EndsAt); err != nil {
		return challenge.Challenge{}, err
	}
	c.ID = 0
	c.Title = strings.TrimSpace(c.Title)

	created, err := s.store.CreateChallenge(ctx, c)
	if err != nil {
		return challenge.Challenge{}, err
	}
	s.log.WithField("challenge_id", created.ID).
		WithField("owner_id", created.OwnerID).
		Info("challenge created")
	return created, nil
}

// GetDetail returns the challenge with its current stats. Challenges nobody
// committed to get zero counters.
func (s *Service) GetDetail(ctx context.Context, id int64) (challenge.Detail, error) {
	c, err := s.store.GetChallenge(ctx, id)
	if err != nil {
		return challenge.Detail{}, err
	}
	stats, err := s.stats.ChallengeStats(ctx, id)
	switch {
	case apperrors.IsNotFound(err):
		stats = challenge.ZeroStats(c)
	case err != nil:
		return challenge.Detail{}, err
	}
	return challenge.NewDetail(c, stats), nil
}

// Update applies patch when callerID owns the challenge and nobody has
// committed to it yet.
func (s *Service) Update(ctx context.Context, callerID string, id int64, patch challenge.Patch) (challenge.Challenge, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return challenge.Challenge{}, apperrors.Validation("title must not be empty")
	}
	if patch.AmountCents != nil && *patch.AmountCents <= 0 {
		return challenge.Challenge{}, apperrors.Validation("amount_cents must be positive")
	}

	current, err := s.store.GetChallenge(ctx, id)
	if err != nil {
		return challenge.Challenge{}, err
	}
	if current.OwnerID != callerID {
		return challenge.Challenge{}, apperrors.Forbidden("only the owner can edit challenge %d", id)
	}
	count, err := s.commitments.CountCommitments(ctx, id)
	if err != nil {
		return challenge.Challenge{}, err
	}
	if count > 0 {
		return challenge.Challenge{}, apperrors.Conflict("challenge %d is locked by %d commitment(s)", id, count)
	}
	if patch.Empty() {
		return current, nil
	}
	merged := patch.Apply(current)
	if err := challenge.ValidateWindow(merged.StartsAt, merged.EndsAt); err != nil {
		return challenge.Challenge{}, err
	}

	updated, err := s.store.UpdateChallenge(ctx, id, patch)
	if err != nil {
		return challenge.Challenge{}, err
	}
	s.log.WithField("challenge_id", id).Info("challenge updated")
	return updated, nil
}

// List returns challenges newest first. The activity filter runs after the
// fetch, so a page may hold fewer than Limit rows.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]challenge.Challenge, error) {
	items, err := s.store.ListChallenges(ctx, challenge.Filter{
		OwnerID: filter.OwnerID,
		Before:  filter.Before,
		Limit:   clampLimit(filter.Limit, defaultLimit, maxLimit),
	})
	if err != nil {
		return nil, err
	}
	if filter.Active == nil {
		return items, nil
	}
	now := s.now()
	out := make([]challenge.Challenge, 0, len(items))
	for _, c := range items {
		if c.ActiveAt(now) == *filter.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListPosts returns the posts under a challenge, newest first.
func (s *Service) ListPosts(ctx context.Context, challengeID int64, before *time.Time, limit int) ([]post.WithCounts, error) {
	if _, err := s.store.GetChallenge(ctx, challengeID); err != nil {
		return nil, err
	}
	id := challengeID
	return s.posts.ListPosts(ctx, post.Filter{
		ChallengeID: &id,
		Before:      before,
		Limit:       clampLimit(limit, defaultLimit, maxLimit),
	})
}

// Search matches q case-insensitively against titles and descriptions.
func (s *Service) Search(ctx context.Context, q string, limit int) ([]challenge.Challenge, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperrors.Validation("q is required")
	}
	return s.store.SearchChallenges(ctx, q, clampLimit(limit, defaultLimit, maxLimit))
}

// clampLimit returns def for non-positive limits and caps the rest at max.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
