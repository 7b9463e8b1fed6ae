package supabase

import (
	"context"

	"github.com/bealive/bealive-api/infra/supabase"
	"github.com/bealive/bealive-api/internal/app/storage"
)

// Objects adapts Supabase Storage to storage.ObjectStore. It always uses the
// service credentials so server-side uploads bypass storage policies.
type Objects struct {
	client *supabase.Client
}

var _ storage.ObjectStore = (*Objects)(nil)

// NewObjects wraps client.
func NewObjects(client *supabase.Client) *Objects {
	return &Objects{client: client}
}

func (o *Objects) CreateSignedUpload(ctx context.Context, bucket, path string) (storage.SignedUpload, error) {
	signed, err := o.client.CreateSignedUploadURL(ctx, bucket, path)
	if err != nil {
		return storage.SignedUpload{}, mapError(err, "signed upload")
	}
	return storage.SignedUpload{URL: signed.URL, Token: signed.Token, Path: signed.Path}, nil
}

func (o *Objects) Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error {
	return mapError(o.client.Upload(ctx, bucket, path, data, contentType, upsert), "object")
}
