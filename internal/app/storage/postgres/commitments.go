package postgres

import (
	"context"
	"fmt"

	"github.com/bealive/bealive-api/internal/app/domain/challenge"
	"github.com/bealive/bealive-api/internal/app/domain/commitment"
	apperrors "github.com/bealive/bealive-api/internal/errors"
)

const commitmentColumns = `id, user_id, challenge_id, side, created_at`

func (s *Store) CreateCommitment(ctx context.Context, c commitment.Commitment) (commitment.Commitment, error) {
	var out commitment.Commitment
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO commitments (user_id, challenge_id, side)
		VALUES ($1, $2, $3)
		RETURNING `+commitmentColumns,
		c.UserID, c.ChallengeID, string(c.Side))
	if err != nil {
		return commitment.Commitment{}, mapError(err, "commitment")
	}
	return out, validSide(out)
}

func (s *Store) GetCommitment(ctx context.Context, userID string, challengeID int64) (commitment.Commitment, error) {
	var out commitment.Commitment
	err := s.db.GetContext(ctx, &out, `
		SELECT `+commitmentColumns+`
		FROM commitments
		WHERE user_id = $1 AND challenge_id = $2`, userID, challengeID)
	if err != nil {
		return commitment.Commitment{}, mapError(err, "commitment")
	}
	return out, validSide(out)
}

func (s *Store) ListCommitmentsByChallenge(ctx context.Context, challengeID int64, limit int) ([]commitment.Commitment, error) {
	var out []commitment.Commitment
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+commitmentColumns+`
		FROM commitments
		WHERE challenge_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, challengeID, limit)
	if err != nil {
		return nil, mapError(err, "commitments")
	}
	return out, validSides(out)
}

func (s *Store) ListCommitmentsByUser(ctx context.Context, userID string, limit int) ([]commitment.Commitment, error) {
	var out []commitment.Commitment
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+commitmentColumns+`
		FROM commitments
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limitOrAll(limit))
	if err != nil {
		return nil, mapError(err, "commitments")
	}
	return out, validSides(out)
}

func (s *Store) CountCommitments(ctx context.Context, challengeID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM commitments WHERE challenge_id = $1`, challengeID)
	return n, mapError(err, "commitments")
}

const statsColumns = `challenge_id, amount_cents, for_count, against_count, for_amount_cents, against_amount_cents`

func (s *Store) ChallengeStats(ctx context.Context, challengeID int64) (challenge.Stats, error) {
	var out challenge.Stats
	err := s.db.GetContext(ctx, &out, `SELECT `+statsColumns+` FROM challenge_stats WHERE challenge_id = $1`, challengeID)
	return out, mapError(err, "challenge stats")
}

func (s *Store) TopChallengeStats(ctx context.Context, limit int) ([]challenge.Stats, error) {
	var out []challenge.Stats
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+statsColumns+`
		FROM challenge_stats
		WHERE for_count + against_count > 0
		ORDER BY for_count DESC, against_count DESC, challenge_id DESC
		LIMIT $1`, limit)
	return out, mapError(err, "challenge stats")
}

func validSide(c commitment.Commitment) error {
	if !c.Side.Valid() {
		return apperrors.BadGateway(fmt.Errorf("unknown side %q", c.Side), fmt.Sprintf("malformed commitment %d", c.ID))
	}
	return nil
}

func validSides(items []commitment.Commitment) error {
	for _, c := range items {
		if err := validSide(c); err != nil {
			return err
		}
	}
	return nil
}
