package supabase

import (
	"context"
	"fmt"

	"github.com/bealive/bealive-api/infra/supabase"
	"github.com/bealive/bealive-api/internal/app/domain/challenge"
	"github.com/bealive/bealive-api/internal/app/domain/commitment"
	apperrors "github.com/bealive/bealive-api/internal/errors"
)

const (
	tableCommitments   = "commitments"
	viewChallengeStats = "challenge_stats"
)

func (s *Store) CreateCommitment(ctx context.Context, c commitment.Commitment) (commitment.Commitment, error) {
	payload := map[string]any{
		"user_id":      c.UserID,
		"challenge_id": c.ChallengeID,
		"side":         c.Side,
	}
	resp, err := s.db(ctx).From(tableCommitments).ExecuteInsert(ctx, payload)
	if err != nil {
		return commitment.Commitment{}, mapError(err, "commitment")
	}
	row, err := firstRow[commitment.Commitment](resp, "commitment")
	if err != nil {
		return commitment.Commitment{}, err
	}
	return row, validCommitment(row)
}

func (s *Store) GetCommitment(ctx context.Context, userID string, challengeID int64) (commitment.Commitment, error) {
	resp, err := s.db(ctx).From(tableCommitments).
		Select("*").
		Eq("user_id", userID).
		Eq("challenge_id", challengeID).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return commitment.Commitment{}, mapError(err, "commitment")
	}
	row, err := firstRow[commitment.Commitment](resp, "commitment")
	if err != nil {
		return commitment.Commitment{}, err
	}
	return row, validCommitment(row)
}

func (s *Store) ListCommitmentsByChallenge(ctx context.Context, challengeID int64, limit int) ([]commitment.Commitment, error) {
	resp, err := s.db(ctx).From(tableCommitments).
		Select("*").
		Eq("challenge_id", challengeID).
		Order("created_at", false).
		Limit(limit).
		Execute(ctx)
	if err != nil {
		return nil, mapError(err, "commitments")
	}
	return decodeCommitments(resp)
}

func (s *Store) ListCommitmentsByUser(ctx context.Context, userID string, limit int) ([]commitment.Commitment, error) {
	q := s.db(ctx).From(tableCommitments).Select("*").Eq("user_id", userID).Order("created_at", false)
	if limit > 0 {
		q = q.Limit(limit)
	}
	resp, err := q.Execute(ctx)
	if err != nil {
		return nil, mapError(err, "commitments")
	}
	return decodeCommitments(resp)
}

func (s *Store) CountCommitments(ctx context.Context, challengeID int64) (int, error) {
	resp, err := s.db(ctx).From(tableCommitments).Select("id").Eq("challenge_id", challengeID).Count("exact").Limit(1).Execute(ctx)
	if err != nil {
		return 0, mapError(err, "commitments")
	}
	return countOf(resp, "commitments")
}

func (s *Store) ChallengeStats(ctx context.Context, challengeID int64) (challenge.Stats, error) {
	resp, err := s.db(ctx).From(viewChallengeStats).Select("*").Eq("challenge_id", challengeID).Limit(1).Execute(ctx)
	if err != nil {
		return challenge.Stats{}, mapError(err, "challenge stats")
	}
	return firstRow[challenge.Stats](resp, "challenge stats")
}

func (s *Store) TopChallengeStats(ctx context.Context, limit int) ([]challenge.Stats, error) {
	resp, err := s.db(ctx).From(viewChallengeStats).
		Select("*").
		Or("for_count.gt.0,against_count.gt.0").
		Order("for_count", false).
		Order("against_count", false).
		Order("challenge_id", false).
		Limit(limit).
		Execute(ctx)
	if err != nil {
		return nil, mapError(err, "challenge stats")
	}
	return decodeRows[challenge.Stats](resp, "challenge stats")
}

func decodeCommitments(resp *supabase.Response) ([]commitment.Commitment, error) {
	rows, err := decodeRows[commitment.Commitment](resp, "commitment")
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := validCommitment(row); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func validCommitment(c commitment.Commitment) error {
	if !c.Side.Valid() {
		return apperrors.BadGateway(fmt.Errorf("unknown side %q", c.Side), fmt.Sprintf("malformed commitment %d", c.ID))
	}
	return nil
}
