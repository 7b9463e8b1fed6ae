package commitments

import (
	"context"
	"fmt"

	"github.com/bealive/bealive-api/internal/app/domain/commitment"
	"github.com/bealive/bealive-api/internal/app/metrics"
	"github.com/bealive/bealive-api/internal/app/storage"
	apperrors "github.com/bealive/bealive-api/internal/errors"
	"github.com/bealive/bealive-api/pkg/logger"
)

const (
	defaultLimit = 50
	maxLimit     = 100

	// maxAttempts bounds the lookup/insert/re-query loop in getOrCreate.
	maxAttempts = 3
)

// Outcomes reported to metrics.
const (
	OutcomeCreated  = "created"
	OutcomeExisting = "existing"
	OutcomeRace     = "race"
)

// Service creates and reads commitments. One user holds at most one
// commitment per challenge and the first side chosen wins.
type Service struct {
	challenges storage.ChallengeStore
	store      storage.CommitmentStore
	log        *logger.Logger
	record     func(outcome string)
}

// New constructs a commitment service.
func New(challenges storage.ChallengeStore, store storage.CommitmentStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("commitments")
	}
	return &Service{challenges: challenges, store: store, log: log, record: metrics.RecordCommitment}
}

// Create returns the caller's commitment on the challenge, inserting it when
// absent. created reports whether this call inserted the row. The
// idempotency key is only logged.
func (s *Service) Create(ctx context.Context, userID string, challengeID int64, side, idempotencyKey string) (commitment.Commitment, bool, error) {
	parsed, err := commitment.ParseSide(side)
	if err != nil {
		return commitment.Commitment{}, false, apperrors.Validation("%s", err.Error())
	}
	if _, err := s.challenges.GetChallenge(ctx, challengeID); err != nil {
		return commitment.Commitment{}, false, err
	}

	c, outcome, err := s.getOrCreate(ctx, commitment.Commitment{UserID: userID, ChallengeID: challengeID, Side: parsed})
	if err != nil {
		return commitment.Commitment{}, false, err
	}
	s.record(outcome)

	entry := s.log.WithField("challenge_id", challengeID).
		WithField("user_id", userID).
		WithField("side", c.Side).
		WithField("outcome", outcome)
	if idempotencyKey != "" {
		entry = entry.WithField("idempotency_key", idempotencyKey)
	}
	entry.Info("commitment resolved")
	return c, outcome == OutcomeCreated, nil
}

// getOrCreate looks the pair up, inserts when missing and re-queries after a
// uniqueness conflict so a concurrent winner is returned instead of an error.
func (s *Service) getOrCreate(ctx context.Context, c commitment.Commitment) (commitment.Commitment, string, error) {
	raced := false
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		existing, err := s.store.GetCommitment(ctx, c.UserID, c.ChallengeID)
		if err == nil {
			if raced {
				return existing, OutcomeRace, nil
			}
			return existing, OutcomeExisting, nil
		}
		if !apperrors.IsNotFound(err) {
			return commitment.Commitment{}, "", err
		}

		created, err := s.store.CreateCommitment(ctx, c)
		if err == nil {
			return created, OutcomeCreated, nil
		}
		if !apperrors.IsConflict(err) {
			return commitment.Commitment{}, "", err
		}
		raced = true
		s.log.WithField("challenge_id", c.ChallengeID).
			WithField("attempt", attempt).
			Debug("commitment insert lost a race, re-querying")
	}
	return commitment.Commitment{}, "", apperrors.Internal(
		fmt.Errorf("gave up after %d attempts", maxAttempts),
		"commitment could not be resolved",
	)
}

// GetMine returns the caller's commitment on a challenge.
func (s *Service) GetMine(ctx context.Context, userID string, challengeID int64) (commitment.Commitment, error) {
	return s.store.GetCommitment(ctx, userID, challengeID)
}

// ListForChallenge returns a challenge's commitments, newest first.
func (s *Service) ListForChallenge(ctx context.Context, challengeID int64, limit int) ([]commitment.Commitment, error) {
	if _, err := s.challenges.GetChallenge(ctx, challengeID); err != nil {
		return nil, err
	}
	return s.store.ListCommitmentsByChallenge(ctx, challengeID, clampLimit(limit))
}

// ListMine returns the caller's commitments, newest first.
func (s *Service) ListMine(ctx context.Context, userID string, limit int) ([]commitment.Commitment, error) {
	return s.store.ListCommitmentsByUser(ctx, userID, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
