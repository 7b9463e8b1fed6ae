package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bealive/bealive-api/internal/app/domain/post"
	apperrors "github.com/bealive/bealive-api/internal/errors"
)

const (
	tablePosts          = "posts"
	viewPostsWithCounts = "posts_with_counts"

	rpcCreatePost = "create_post_with_optional_challenge"
	rpcFeed       = "get_feed"
)

// CreatePost delegates to a database function so a new challenge and its
// first post commit or roll back together.
func (s *Store) CreatePost(ctx context.Context, params post.CreateParams) (post.WithCounts, error) {
	args := map[string]any{
		"p_actor_id":     params.AuthorID,
		"p_challenge_id": params.ChallengeID,
		"p_title":        nil,
		"p_description":  nil,
		"p_amount_cents": nil,
		"p_starts_at":    nil,
		"p_ends_at":      nil,
		"p_caption":      params.Caption,
		"p_media_url":    nil,
	}
	if nc := params.NewChallenge; nc != nil && params.ChallengeID == nil {
		args["p_title"] = nc.Title
		args["p_description"] = nc.Description
		args["p_amount_cents"] = nc.AmountCents
		args["p_starts_at"] = nc.StartsAt
		args["p_ends_at"] = nc.EndsAt
	}

	resp, err := s.db(ctx).RPC(ctx, rpcCreatePost, args)
	if err != nil {
		return post.WithCounts{}, mapError(err, "post")
	}
	rows, err := decodeRPCPosts(resp.Body, "")
	if err != nil {
		return post.WithCounts{}, err
	}
	if len(rows) == 0 {
		return post.WithCounts{}, apperrors.BadGateway(fmt.Errorf("empty result"), rpcCreatePost+" returned no row")
	}
	s.log.WithField("post_id", rows[0].ID).WithField("challenge_id", rows[0].ChallengeID).Debug("post created")
	return rows[0], nil
}

func (s *Store) GetPost(ctx context.Context, id int64) (post.Post, error) {
	resp, err := s.db(ctx).From(tablePosts).Select("*").Eq("id", id).Limit(1).Execute(ctx)
	if err != nil {
		return post.Post{}, mapError(err, "post")
	}
	return firstRow[post.Post](resp, "post")
}

func (s *Store) GetPostWithCounts(ctx context.Context, id int64) (post.WithCounts, error) {
	resp, err := s.db(ctx).From(viewPostsWithCounts).Select("*").Eq("id", id).Limit(1).Execute(ctx)
	if err != nil {
		return post.WithCounts{}, mapError(err, "post")
	}
	return firstRow[post.WithCounts](resp, "post")
}

func (s *Store) ListPosts(ctx context.Context, filter post.Filter) ([]post.WithCounts, error) {
	q := s.db(ctx).From(viewPostsWithCounts).Select("*")
	if filter.ChallengeID != nil {
		q = q.Eq("challenge_id", *filter.ChallengeID)
	}
	if filter.AuthorID != "" {
		q = q.Eq("author_id", filter.AuthorID)
	}
	if filter.Before != nil {
		q = q.Lt("created_at", *filter.Before)
	}
	resp, err := q.Order("created_at", false).Order("id", false).Limit(filter.Limit).Execute(ctx)
	if err != nil {
		return nil, mapError(err, "posts")
	}
	return decodeRows[post.WithCounts](resp, "post")
}

func (s *Store) Feed(ctx context.Context, before *time.Time, limit int) ([]post.WithCounts, error) {
	args := map[string]any{"p_after": nil, "p_limit": limit}
	if before != nil {
		args["p_after"] = before.UTC().Format(time.RFC3339Nano)
	}
	resp, err := s.db(ctx).RPC(ctx, rpcFeed, args)
	if err != nil {
		return nil, mapError(err, "feed")
	}
	return decodeRPCPosts(resp.Body, "items")
}

func (s *Store) UpdatePostMedia(ctx context.Context, id int64, mediaURL string) (post.Post, error) {
	resp, err := s.db(ctx).From(tablePosts).Eq("id", id).ExecuteUpdate(ctx, map[string]any{"media_url": mediaURL})
	if err != nil {
		return post.Post{}, mapError(err, "post")
	}
	return firstRow[post.Post](resp, "post")
}

func (s *Store) DeletePost(ctx context.Context, id int64) error {
	resp, err := s.db(ctx).From(tablePosts).Eq("id", id).ExecuteDelete(ctx)
	if err != nil {
		return mapError(err, "post")
	}
	_, err = firstRow[post.Post](resp, "post")
	return err
}

func (s *Store) CountPostsByAuthor(ctx context.Context, authorID string) (int, error) {
	resp, err := s.db(ctx).From(tablePosts).Select("id").Eq("author_id", authorID).Count("exact").Limit(1).Execute(ctx)
	if err != nil {
		return 0, mapError(err, "posts")
	}
	return countOf(resp, "posts")
}

func decodeRPCPosts(body []byte, key string) ([]post.WithCounts, error) {
	raws := rpcRows(body, key)
	out := make([]post.WithCounts, 0, len(raws))
	for _, raw := range raws {
		var row post.WithCounts
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			return nil, apperrors.BadGateway(err, "malformed post row")
		}
		out = append(out, row)
	}
	return out, nil
}
