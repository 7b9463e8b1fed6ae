package uploads

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bealive/bealive-api/internal/app/domain/post"
	"github.com/bealive/bealive-api/internal/app/storage/memory"
	apperrors "github.com/bealive/bealive-api/internal/errors"
)

const (
	author   = "a0a0a0a0-0000-4000-8000-000000000001"
	stranger = "c0c0c0c0-0000-4000-8000-000000000003"
)

func setup(t *testing.T) (*Service, *memory.Objects, post.WithCounts) {
	t.Helper()
	store := memory.New()
	objects := memory.NewObjects()
	created, err := store.CreatePost(context.Background(), post.CreateParams{
		AuthorID:     author,
		NewChallenge: &post.NewChallenge{Title: "Climb", AmountCents: 100},
	})
	require.NoError(t, err)

	svc := New(store, objects, "", nil)
	svc.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	svc.newID = func() string { return "deadbeef" }
	return svc, objects, created
}

func TestPresign(t *testing.T) {
	svc, _, created := setup(t)
	ctx := context.Background()

	grant, err := svc.Presign(ctx, author, PresignRequest{PostID: created.ID, FileExt: ".JPG", ContentType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, "posts/"+author+"/"+itoa(created.ID)+"/1700000000_deadbeef.jpg", grant.Path)
	assert.Equal(t, "POST", grant.Method)
	assert.Equal(t, "true", grant.Headers["x-upsert"])
	assert.Equal(t, "image/jpeg", grant.Headers["Content-Type"])
	assert.Contains(t, grant.Headers["Authorization"], "Bearer ")
	assert.Contains(t, grant.UploadURL, grant.Path)

	_, err = svc.Presign(ctx, stranger, PresignRequest{PostID: created.ID, FileExt: "jpg"})
	assert.True(t, apperrors.IsForbidden(err))

	_, err = svc.Presign(ctx, author, PresignRequest{PostID: created.ID + 40, FileExt: "jpg"})
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.Presign(ctx, author, PresignRequest{PostID: created.ID})
	assert.True(t, apperrors.IsValidation(err))
}

func TestDirectUpload(t *testing.T) {
	svc, objects, created := setup(t)
	ctx := context.Background()

	path, err := svc.Direct(ctx, author, created.ID, "", "image/png", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, "posts/"+author+"/"+itoa(created.ID)+"/1700000000_deadbeef.png", path)

	obj, ok := objects.Get(DefaultBucket, path)
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)

	_, err = svc.Direct(ctx, stranger, created.ID, "a.png", "", []byte("x"))
	assert.True(t, apperrors.IsForbidden(err))

	_, err = svc.Direct(ctx, author, created.ID, "a.png", "", nil)
	assert.True(t, apperrors.IsValidation(err))
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, "mp4", ExtensionFor("clip.MP4", "video/mp4"))
	assert.Equal(t, "jpg", ExtensionFor("photo", "image/jpeg"))
	assert.Equal(t, "png", ExtensionFor("", "image/png"))
	assert.Equal(t, "bin", ExtensionFor("", "application/pdf"))
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
