package posts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bealive/bealive-api/internal/app/domain/challenge"
	"github.com/bealive/bealive-api/internal/app/domain/post"
	"github.com/bealive/bealive-api/internal/app/domain/profile"
	"github.com/bealive/bealive-api/internal/app/storage/memory"
	apperrors "github.com/bealive/bealive-api/internal/errors"
)

const (
	author   = "a0a0a0a0-0000-4000-8000-000000000001"
	stranger = "c0c0c0c0-0000-4000-8000-000000000003"
)

func strPtr(s string) *string { return &s }

func TestCreatePostWithNewChallenge(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	created, err := svc.CreatePost(ctx, author, CreateRequest{
		NewChallenge: &post.NewChallenge{Title: "  No sugar  ", AmountCents: 1200},
		Caption:      strPtr("  day one "),
	})
	require.NoError(t, err)
	require.NotNil(t, created.Caption)
	assert.Equal(t, "day one", *created.Caption)
	assert.Nil(t, created.MediaURL, "media is never set at create time")

	c, err := store.GetChallenge(ctx, created.ChallengeID)
	require.NoError(t, err)
	assert.Equal(t, author, c.OwnerID, "owner is forced to the author")
	assert.Equal(t, "No sugar", c.Title)
}

func TestCreatePostRollsBackChallenge(t *testing.T) {
	boom := errors.New("insert failed")
	store := memory.New(memory.WithPostInsertHook(func(p post.Post) error {
		assert.Equal(t, author, p.AuthorID)
		return boom
	}))
	svc := New(store, store, nil)
	ctx := context.Background()

	_, err := svc.CreatePost(ctx, author, CreateRequest{
		NewChallenge: &post.NewChallenge{Title: "Atomic", AmountCents: 100},
	})
	require.ErrorIs(t, err, boom)

	count, err := store.CountChallengesByOwner(ctx, author)
	require.NoError(t, err)
	assert.Zero(t, count, "the challenge must not survive a failed post insert")
}

func TestCreatePostPrecedenceAndValidation(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	existing, err := store.CreateChallenge(ctx, challenge.Challenge{OwnerID: stranger, Title: "Theirs", AmountCents: 100})
	require.NoError(t, err)

	created, err := svc.CreatePost(ctx, author, CreateRequest{
		ChallengeID:  &existing.ID,
		NewChallenge: &post.NewChallenge{Title: "Ignored", AmountCents: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, created.ChallengeID)
	count, err := store.CountChallengesByOwner(ctx, author)
	require.NoError(t, err)
	assert.Zero(t, count, "new_challenge is ignored when challenge_id is set")

	_, err = svc.CreatePost(ctx, author, CreateRequest{})
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.CreatePost(ctx, author, CreateRequest{NewChallenge: &post.NewChallenge{Title: "x", AmountCents: 0}})
	assert.True(t, apperrors.IsValidation(err))

	missing := existing.ID + 100
	_, err = svc.CreatePost(ctx, author, CreateRequest{ChallengeID: &missing})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateMediaAndDelete(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	created, err := svc.CreatePost(ctx, author, CreateRequest{NewChallenge: &post.NewChallenge{Title: "Gym", AmountCents: 100}})
	require.NoError(t, err)

	_, err = svc.UpdateMedia(ctx, author, created.ID, "   ")
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.UpdateMedia(ctx, stranger, created.ID, "posts/x.jpg")
	assert.True(t, apperrors.IsForbidden(err))

	_, err = svc.UpdateMedia(ctx, author, created.ID+50, "posts/x.jpg")
	assert.True(t, apperrors.IsNotFound(err))

	updated, err := svc.UpdateMedia(ctx, author, created.ID, "posts/x.jpg")
	require.NoError(t, err)
	require.NotNil(t, updated.MediaURL)
	assert.Equal(t, "posts/x.jpg", *updated.MediaURL)

	assert.True(t, apperrors.IsForbidden(svc.Delete(ctx, stranger, created.ID)))
	require.NoError(t, svc.Delete(ctx, author, created.ID))
	assert.True(t, apperrors.IsNotFound(svc.Delete(ctx, author, created.ID)))
}

func TestGetAttachesAuthorProfile(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	created, err := svc.CreatePost(ctx, author, CreateRequest{NewChallenge: &post.NewChallenge{Title: "Read", AmountCents: 100}})
	require.NoError(t, err)

	full, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, full.AuthorProfile)

	_, err = store.UpsertProfile(ctx, author, profile.Patch{Username: strPtr("ada")})
	require.NoError(t, err)

	full, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, full.AuthorProfile)
	assert.Equal(t, "ada", *full.AuthorProfile.Username)
}

func TestFeedPaging(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	empty, err := svc.Feed(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
	assert.Nil(t, empty.NextCursor)

	var ids []int64
	for i := 0; i < 5; i++ {
		p, err := svc.CreatePost(ctx, author, CreateRequest{NewChallenge: &post.NewChallenge{Title: "Step", AmountCents: 100}})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	first, err := svc.Feed(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, ids[4], first.Items[0].ID)
	require.NotNil(t, first.NextCursor)

	second, err := svc.Feed(ctx, first.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.Equal(t, ids[2], second.Items[0].ID)

	mine, err := svc.ListByUser(ctx, author, nil, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 5)
}
