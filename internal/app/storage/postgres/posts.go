package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bealive/bealive-api/internal/app/domain/post"
	apperrors "github.com/bealive/bealive-api/internal/errors"
)

const (
	postColumns       = `id, challenge_id, author_id, caption, media_url, created_at`
	postCountsColumns = postColumns + `, for_count, against_count, for_amount_cents, against_amount_cents`
)

// CreatePost inserts the optional challenge and the post in one transaction.
func (s *Store) CreatePost(ctx context.Context, params post.CreateParams) (out post.WithCounts, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return post.WithCounts{}, mapError(err, "post")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.WithError(rbErr).Warn("rollback create post")
			}
		}
	}()

	challengeID, err := s.resolveChallenge(ctx, tx, params)
	if err != nil {
		return post.WithCounts{}, err
	}

	var postID int64
	if err = tx.GetContext(ctx, &postID, `
		INSERT INTO posts (challenge_id, author_id, caption)
		VALUES ($1, $2, $3)
		RETURNING id`, challengeID, params.AuthorID, params.Caption); err != nil {
		return post.WithCounts{}, mapError(err, "post")
	}

	if err = tx.GetContext(ctx, &out, `SELECT `+postCountsColumns+` FROM posts_with_counts WHERE id = $1`, postID); err != nil {
		return post.WithCounts{}, mapError(err, "post")
	}
	if err = tx.Commit(); err != nil {
		return post.WithCounts{}, mapError(err, "post")
	}
	return out, nil
}

func (s *Store) resolveChallenge(ctx context.Context, tx *sqlx.Tx, params post.CreateParams) (int64, error) {
	switch {
	case params.ChallengeID != nil:
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM challenges WHERE id = $1)`, *params.ChallengeID); err != nil {
			return 0, mapError(err, "challenge")
		}
		if !exists {
			return 0, apperrors.NotFound("challenge %d not found", *params.ChallengeID)
		}
		return *params.ChallengeID, nil
	case params.NewChallenge != nil:
		nc := params.NewChallenge
		var id int64
		err := tx.GetContext(ctx, &id, `
			INSERT INTO challenges (owner_id, title, description, amount_cents, starts_at, ends_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			params.AuthorID, nc.Title, nc.Description, nc.AmountCents, nc.StartsAt, nc.EndsAt)
		return id, mapError(err, "challenge")
	default:
		return 0, apperrors.Validation("challenge_id or new_challenge is required")
	}
}

func (s *Store) GetPost(ctx context.Context, id int64) (post.Post, error) {
	var out post.Post
	err := s.db.GetContext(ctx, &out, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	return out, mapError(err, "post")
}

func (s *Store) GetPostWithCounts(ctx context.Context, id int64) (post.WithCounts, error) {
	var out post.WithCounts
	err := s.db.GetContext(ctx, &out, `SELECT `+postCountsColumns+` FROM posts_with_counts WHERE id = $1`, id)
	return out, mapError(err, "post")
}

func (s *Store) ListPosts(ctx context.Context, filter post.Filter) ([]post.WithCounts, error) {
	var out []post.WithCounts
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+postCountsColumns+`
		FROM posts_with_counts
		WHERE ($1::bigint IS NULL OR challenge_id = $1)
		  AND ($2 = '' OR author_id::text = $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`,
		filter.ChallengeID, filter.AuthorID, filter.Before, limitOrAll(filter.Limit))
	return out, mapError(err, "posts")
}

func (s *Store) Feed(ctx context.Context, before *time.Time, limit int) ([]post.WithCounts, error) {
	var out []post.WithCounts
	err := s.db.SelectContext(ctx, &out, `SELECT `+postCountsColumns+` FROM get_feed($1, $2)`, before, limit)
	return out, mapError(err, "feed")
}

func (s *Store) UpdatePostMedia(ctx context.Context, id int64, mediaURL string) (post.Post, error) {
	var out post.Post
	err := s.db.GetContext(ctx, &out, `
		UPDATE posts SET media_url = $2 WHERE id = $1
		RETURNING `+postColumns, id, mediaURL)
	return out, mapError(err, "post")
}

func (s *Store) DeletePost(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "post")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NotFound("post %d not found", id)
	}
	return nil
}

func (s *Store) CountPostsByAuthor(ctx context.Context, authorID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM posts WHERE author_id = $1`, authorID)
	return n, mapError(err, "posts")
}
