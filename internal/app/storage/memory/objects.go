package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/bealive/bealive-api/internal/app/storage"
	apperrors "github.com/bealive/bealive-api/internal/errors"
)

// Object is a stored media blob.
type Object struct {
	Data        []byte
	ContentType string
}

// Objects is an in-memory object store used when no storage backend is
// configured.
type Objects struct {
	mu      sync.RWMutex
	objects map[string]Object
}

var _ storage.ObjectStore = (*Objects)(nil)

// NewObjects creates an empty object store.
func NewObjects() *Objects {
	return &Objects{objects: make(map[string]Object)}
}

func (o *Objects) CreateSignedUpload(_ context.Context, bucket, path string) (storage.SignedUpload, error) {
	token := uuid.NewString()
	return storage.SignedUpload{
		URL:   fmt.Sprintf("memory://%s/%s?token=%s", bucket, path, token),
		Token: token,
		Path:  path,
	}, nil
}

func (o *Objects) Upload(_ context.Context, bucket, path string, data []byte, contentType string, upsert bool) error {
	key := bucket + "/" + path
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.objects[key]; exists && !upsert {
		return apperrors.Conflict("object %s already exists", key)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	o.objects[key] = Object{Data: buf, ContentType: contentType}
	return nil
}

// Get returns a stored object.
func (o *Objects) Get(bucket, path string) (Object, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	obj, ok := o.objects[bucket+"/"+path]
	return obj, ok
}
