package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/bealive/bealive-api/internal/app/domain/challenge"
	apperrors "github.com/bealive/bealive-api/internal/errors"
)

const challengeColumns = `id, owner_id, title, description, amount_cents, starts_at, ends_at, created_at`

func (s *Store) CreateChallenge(ctx context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	var out challenge.Challenge
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO challenges (owner_id, title, description, amount_cents, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+challengeColumns,
		c.OwnerID, c.Title, c.Description, c.AmountCents, c.StartsAt, c.EndsAt)
	return out, mapError(err, "challenge")
}

func (s *Store) GetChallenge(ctx context.Context, id int64) (challenge.Challenge, error) {
	var out challenge.Challenge
	err := s.db.GetContext(ctx, &out, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id)
	return out, mapError(err, "challenge")
}

// UpdateChallenge locks the challenge row FOR UPDATE before writing. That
// lock conflicts with the key-share lock a commitment insert takes through
// its foreign key, so the commitment check in the UPDATE cannot go stale.
func (s *Store) UpdateChallenge(ctx context.Context, id int64, patch challenge.Patch) (out challenge.Challenge, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return challenge.Challenge{}, mapError(err, "challenge")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.WithError(rbErr).Warn("rollback update challenge")
			}
		}
	}()

	var lockedID int64
	if err = tx.GetContext(ctx, &lockedID, `SELECT id FROM challenges WHERE id = $1 FOR UPDATE`, id); err != nil {
		return challenge.Challenge{}, mapError(err, "challenge")
	}

	var title *string
	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		title = &trimmed
	}
	err = tx.GetContext(ctx, &out, `
		UPDATE challenges
		SET title        = COALESCE($2, title),
		    description  = COALESCE($3, description),
		    amount_cents = COALESCE($4, amount_cents),
		    starts_at    = COALESCE($5, starts_at),
		    ends_at      = COALESCE($6, ends_at)
		WHERE id = $1
		  AND NOT EXISTS (SELECT 1 FROM commitments WHERE challenge_id = $1)
		RETURNING `+challengeColumns,
		id, title, patch.Description, patch.AmountCents, patch.StartsAt, patch.EndsAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = apperrors.Conflict("challenge %d is locked", id)
		return challenge.Challenge{}, err
	}
	if err != nil {
		return challenge.Challenge{}, mapError(err, "challenge")
	}
	if err = tx.Commit(); err != nil {
		return challenge.Challenge{}, mapError(err, "challenge")
	}
	return out, nil
}

func (s *Store) ListChallenges(ctx context.Context, filter challenge.Filter) ([]challenge.Challenge, error) {
	var out []challenge.Challenge
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+challengeColumns+`
		FROM challenges
		WHERE ($1 = '' OR owner_id::text = $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`,
		filter.OwnerID, filter.Before, limitOrAll(filter.Limit))
	return out, mapError(err, "challenges")
}

func (s *Store) GetChallengesByIDs(ctx context.Context, ids []int64) ([]challenge.Challenge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []challenge.Challenge
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = ANY($1)`, pq.Array(ids))
	return out, mapError(err, "challenges")
}

func (s *Store) SearchChallenges(ctx context.Context, query string, limit int) ([]challenge.Challenge, error) {
	pattern := "%" + escapeLike(query) + "%"
	var out []challenge.Challenge
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+challengeColumns+`
		FROM challenges
		WHERE title ILIKE $1 OR description ILIKE $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, pattern, limit)
	return out, mapError(err, "challenges")
}

func (s *Store) CountChallengesByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM challenges WHERE owner_id = $1`, ownerID)
	return n, mapError(err, "challenges")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
