package posts

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

// CreateRequest is the caller's input for CreatePost.
type CreateRequest struct {
	ChallengeID  *int64             `json:"challenge_id,omitempty"`
	NewChallenge *post.NewChallenge `json:"new_challenge,omitempty"`
	Caption      *string            `json:"caption,omitempty"`
}

// Service manages posts and the feed.
type Service struct {
	store    storage.PostStore
	profiles storage.ProfileStore
	log      *logger.Logger
}

// New constructs a post service.
func New(store storage.PostStore, profiles storage.ProfileStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("posts")
	}
	return &Service{store: store, profiles: profiles, log: log}
}

// CreatePost publishes a post under an existing challenge or, atomically,
// under a new challenge owned by the author. An explicit challenge id wins
// over a new challenge.
func (s *Service) CreatePost(ctx context.Context, authorID string, req CreateRequest) (post.WithCounts, error) {
	params := post.CreateParams{AuthorID: authorID, Caption: trimmed(req.Caption)}

	switch {
	case req.ChallengeID != nil:
		if *req.ChallengeID <= 0 {
			return post.WithCounts{}, apperrors.Validation("challenge_id must be positive")
		}
		if req.NewChallenge != nil {
			s.log.WithField("challenge_id", *req.ChallengeID).
				WithField("author_id", authorID).
				Warn("both challenge_id and new_challenge supplied, using challenge_id")
		}
		params.ChallengeID = req.ChallengeID
	case req.NewChallenge != nil:
		nc := *req.NewChallenge
		if err := challenge.ValidateDraft(nc.Title, nc.AmountCents, nc.StartsAt, nc.EndsAt); err != nil {
			return post.WithCounts{}, err
		}
		nc.Title = strings.TrimSpace(nc.Title)
		params.NewChallenge = &nc
	default:
		return post.WithCounts{}, apperrors.Validation("challenge_id or new_challenge is required")
	}

	created, err := s.store.CreatePost(ctx, params)
	if err != nil {
		return post.WithCounts{}, err
	}
	s.log.WithField("post_id", created.ID).
		WithField("challenge_id", created.ChallengeID).
		WithField("new_challenge", params.NewChallenge != nil).
		Info("post created")
	return created, nil
}

// UpdateMedia attaches an uploaded object path to the author's post.
func (s *Service) UpdateMedia(ctx context.Context, authorID string, postID int64, mediaRef string) (post.WithCounts, error) {
	mediaRef = strings.TrimSpace(mediaRef)
	if mediaRef == "" {
		return post.WithCounts{}, apperrors.Validation("media_url is required")
	}
	if _, err := s.authored(ctx, authorID, postID); err != nil {
		return post.WithCounts{}, err
	}
	if _, err := s.store.UpdatePostMedia(ctx, postID, mediaRef); err != nil {
		return post.WithCounts{}, err
	}
	return s.store.GetPostWithCounts(ctx, postID)
}

// Get returns a post with counts and its author's profile when one exists.
func (s *Service) Get(ctx context.Context, postID int64) (post.Full, error) {
	p, err := s.store.GetPostWithCounts(ctx, postID)
	if err != nil {
		return post.Full{}, err
	}
	full := post.Full{WithCounts: p}
	author, err := s.profiles.GetProfile(ctx, p.AuthorID)
	switch {
	case err == nil:
		full.AuthorProfile = &author
	case !apperrors.IsNotFound(err):
		return post.Full{}, err
	}
	return full, nil
}

// Delete removes the author's post.
func (s *Service) Delete(ctx context.Context, authorID string, postID int64) error {
	if _, err := s.authored(ctx, authorID, postID); err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, postID); err != nil {
		return err
	}
	s.log.WithField("post_id", postID).Info("post deleted")
	return nil
}

// ListByUser returns a user's posts, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string, before *time.Time, limit int) ([]post.WithCounts, error) {
	return s.store.ListPosts(ctx, post.Filter{AuthorID: userID, Before: before, Limit: clampLimit(limit)})
}

// Feed returns one page of the global feed. NextCursor is the created_at of
// the last item, or nil on an empty page.
func (s *Service) Feed(ctx context.Context, before *time.Time, limit int) (post.FeedPage, error) {
	items, err := s.store.Feed(ctx, before, clampLimit(limit))
	if err != nil {
		return post.FeedPage{}, err
	}
	page := post.FeedPage{Items: items}
	if page.Items == nil {
		page.Items = []post.WithCounts{}
	}
	if n := len(items); n > 0 {
		cursor := items[n-1].CreatedAt
		page.NextCursor = &cursor
	}
	return page, nil
}

// authored returns the post when authorID wrote it.
func (s *Service) authored(ctx context.Context, authorID string, postID int64) (post.Post, error) {
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return post.Post{}, err
	}
	if p.AuthorID != authorID {
		return post.Post{}, apperrors.Forbidden("only the author can modify post %d", postID)
	}
	return p, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
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
