package aggregates

import (
	"context"

	"github.com/bealive/bealive-api/internal/app/domain/aggregate"
	"github.com/bealive/bealive-api/internal/app/domain/challenge"
	"github.com/bealive/bealive-api/internal/app/domain/commitment"
	"github.com/bealive/bealive-api/internal/app/domain/network"
	"github.com/bealive/bealive-api/internal/app/storage"
	apperrors "github.com/bealive/bealive-api/internal/errors"
	"github.com/bealive/bealive-api/pkg/logger"
)

const (
	defaultTrendingLimit = 10
	maxTrendingLimit     = 50
)

// Stores groups the stores the aggregation engine reads from.
type Stores struct {
	Challenges  storage.ChallengeStore
	Commitments storage.CommitmentStore
	Stats       storage.StatsStore
	Posts       storage.PostStore
	Connections storage.ConnectionStore
}

// Service computes derived views. Nothing is cached; every call reads the
// current rows.
type Service struct {
	stores Stores
	log    *logger.Logger
}

// New constructs an aggregation service.
func New(stores Stores, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("aggregates")
	}
	return &Service{stores: stores, log: log}
}

// ChallengeStats returns the commitment breakdown of a challenge, synthesizing
// zeros when nobody has committed yet.
func (s *Service) ChallengeStats(ctx context.Context, challengeID int64) (challenge.Stats, error) {
	c, err := s.stores.Challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		return challenge.Stats{}, err
	}
	stats, err := s.stores.Stats.ChallengeStats(ctx, challengeID)
	if apperrors.IsNotFound(err) {
		return challenge.ZeroStats(c), nil
	}
	return stats, err
}

// UserSummary collects a user's social and staking counters.
func (s *Service) UserSummary(ctx context.Context, userID string) (aggregate.UserSummary, error) {
	summary := aggregate.UserSummary{UserID: userID}

	followers, err := s.stores.Connections.CountConnections(ctx, network.Filter{AddresseeID: userID, Status: network.StatusAccepted})
	if err != nil {
		return aggregate.UserSummary{}, err
	}
	following, err := s.stores.Connections.CountConnections(ctx, network.Filter{RequesterID: userID, Status: network.StatusAccepted})
	if err != nil {
		return aggregate.UserSummary{}, err
	}
	challenges, err := s.stores.Challenges.CountChallengesByOwner(ctx, userID)
	if err != nil {
		return aggregate.UserSummary{}, err
	}
	posts, err := s.stores.Posts.CountPostsByAuthor(ctx, userID)
	if err != nil {
		return aggregate.UserSummary{}, err
	}
	summary.Followers = followers
	summary.Following = following
	summary.ChallengesCount = challenges
	summary.PostsCount = posts

	commitments, err := s.stores.Commitments.ListCommitmentsByUser(ctx, userID, 0)
	if err != nil {
		return aggregate.UserSummary{}, err
	}
	if len(commitments) == 0 {
		return summary, nil
	}

	ids := make([]int64, 0, len(commitments))
	seen := make(map[int64]struct{}, len(commitments))
	for _, c := range commitments {
		if _, ok := seen[c.ChallengeID]; ok {
			continue
		}
		seen[c.ChallengeID] = struct{}{}
		ids = append(ids, c.ChallengeID)
	}
	rows, err := s.stores.Challenges.GetChallengesByIDs(ctx, ids)
	if err != nil {
		return aggregate.UserSummary{}, err
	}
	amounts := make(map[int64]int64, len(rows))
	for _, c := range rows {
		amounts[c.ID] = c.AmountCents
	}

	for _, c := range commitments {
		amount, ok := amounts[c.ChallengeID]
		if !ok {
			s.log.WithField("challenge_id", c.ChallengeID).Warn("commitment references a missing challenge")
		}
		switch c.Side {
		case commitment.SideFor:
			summary.CommitmentsForCount++
			summary.ForAmountCents += amount
		case commitment.SideAgainst:
			summary.CommitmentsAgainstCount++
			summary.AgainstAmountCents += amount
		}
	}
	return summary, nil
}

// TrendingChallenges returns the challenges with the most commitments.
func (s *Service) TrendingChallenges(ctx context.Context, limit int) ([]challenge.Detail, error) {
	if limit <= 0 {
		limit = defaultTrendingLimit
	}
	if limit > maxTrendingLimit {
		limit = maxTrendingLimit
	}
	top, err := s.stores.Stats.TopChallengeStats(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return []challenge.Detail{}, nil
	}
	ids := make([]int64, len(top))
	for i, st := range top {
		ids[i] = st.ChallengeID
	}
	rows, err := s.stores.Challenges.GetChallengesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]challenge.Challenge, len(rows))
	for _, c := range rows {
		byID[c.ID] = c
	}

	out := make([]challenge.Detail, 0, len(top))
	for _, st := range top {
		c, ok := byID[st.ChallengeID]
		if !ok {
			continue
		}
		out = append(out, challenge.NewDetail(c, st))
	}
	return out, nil
}
