package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bealive/bealive-api/internal/app/domain/challenge"
	apperrors "github.com/bealive/bealive-api/internal/errors"
)

const (
	tableChallenges    = "challenges"
	rpcUpdateChallenge = "update_challenge_if_open"
)

func (s *Store) CreateChallenge(ctx context.Context, c challenge.Challenge) (challenge.Challenge, error) {
	payload := map[string]any{
		"owner_id":     c.OwnerID,
		"title":        c.Title,
		"description":  c.Description,
		"amount_cents": c.AmountCents,
		"starts_at":    c.StartsAt,
		"ends_at":      c.EndsAt,
	}
	resp, err := s.db(ctx).From(tableChallenges).ExecuteInsert(ctx, payload)
	if err != nil {
		return challenge.Challenge{}, mapError(err, "challenge")
	}
	return firstRow[challenge.Challenge](resp, "challenge")
}

func (s *Store) GetChallenge(ctx context.Context, id int64) (challenge.Challenge, error) {
	resp, err := s.db(ctx).From(tableChallenges).Select("*").Eq("id", id).Limit(1).Execute(ctx)
	if err != nil {
		return challenge.Challenge{}, mapError(err, "challenge")
	}
	return firstRow[challenge.Challenge](resp, "challenge")
}

// UpdateChallenge delegates to a database function that locks the row and
// refuses the write once a commitment exists.
func (s *Store) UpdateChallenge(ctx context.Context, id int64, patch challenge.Patch) (challenge.Challenge, error) {
	args := map[string]any{
		"p_id":           id,
		"p_title":        nil,
		"p_description":  patch.Description,
		"p_amount_cents": patch.AmountCents,
		"p_starts_at":    patch.StartsAt,
		"p_ends_at":      patch.EndsAt,
	}
	if patch.Title != nil {
		args["p_title"] = strings.TrimSpace(*patch.Title)
	}
	resp, err := s.db(ctx).RPC(ctx, rpcUpdateChallenge, args)
	if err != nil {
		return challenge.Challenge{}, mapError(err, "challenge")
	}
	rows := rpcRows(resp.Body, "")
	if len(rows) == 0 {
		return challenge.Challenge{}, apperrors.BadGateway(fmt.Errorf("empty result"), rpcUpdateChallenge+" returned no row")
	}
	var out challenge.Challenge
	if err := json.Unmarshal([]byte(rows[0]), &out); err != nil {
		return challenge.Challenge{}, apperrors.BadGateway(err, "malformed challenge row")
	}
	return out, nil
}

func (s *Store) ListChallenges(ctx context.Context, filter challenge.Filter) ([]challenge.Challenge, error) {
	q := s.db(ctx).From(tableChallenges).Select("*")
	if filter.OwnerID != "" {
		q = q.Eq("owner_id", filter.OwnerID)
	}
	if filter.Before != nil {
		q = q.Lt("created_at", *filter.Before)
	}
	resp, err := q.Order("created_at", false).Order("id", false).Limit(filter.Limit).Execute(ctx)
	if err != nil {
		return nil, mapError(err, "challenges")
	}
	return decodeRows[challenge.Challenge](resp, "challenge")
}

func (s *Store) GetChallengesByIDs(ctx context.Context, ids []int64) ([]challenge.Challenge, error) {
	keys := idStrings(ids)
	if len(keys) == 0 {
		return nil, nil
	}
	resp, err := s.db(ctx).From(tableChallenges).Select("*").In("id", keys).Execute(ctx)
	if err != nil {
		return nil, mapError(err, "challenges")
	}
	return decodeRows[challenge.Challenge](resp, "challenge")
}

func (s *Store) SearchChallenges(ctx context.Context, query string, limit int) ([]challenge.Challenge, error) {
	pattern := "*" + likeSafe(query) + "*"
	resp, err := s.db(ctx).From(tableChallenges).
		Select("*").
		Or("title.ilike." + pattern + ",description.ilike." + pattern).
		Order("created_at", false).
		Limit(limit).
		Execute(ctx)
	if err != nil {
		return nil, mapError(err, "challenges")
	}
	return decodeRows[challenge.Challenge](resp, "challenge")
}

func (s *Store) CountChallengesByOwner(ctx context.Context, ownerID string) (int, error) {
	resp, err := s.db(ctx).From(tableChallenges).Select("id").Eq("owner_id", ownerID).Count("exact").Limit(1).Execute(ctx)
	if err != nil {
		return 0, mapError(err, "challenges")
	}
	return countOf(resp, "challenges")
}

// likeSafe strips characters that delimit or quote PostgREST logic trees,
// along with the * and % wildcards.
func likeSafe(q string) string {
	return likeReplacer.Replace(q)
}

var likeReplacer = strings.NewReplacer(
	",", " ", "(", " ", ")", " ",
	`"`, " ", `\`, " ",
	"*", " ", "%", " ",
)
