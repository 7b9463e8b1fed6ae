package uploads

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bealive/bealive-api/internal/app/storage"
	apperrors "github.com/bealive/bealive-api/internal/errors"
	"github.com/bealive/bealive-api/pkg/logger"
)

const (
	// DefaultBucket holds post media.
	DefaultBucket = "posts"

	// grantLifetime is advertised to clients; the store enforces the real expiry.
	grantLifetime = 2 * time.Minute

	defaultContentType = "application/octet-stream"
)

// PresignRequest asks for a signed upload grant for a post's media.
type PresignRequest struct {
	PostID      int64  `json:"post_id"`
	FileExt     string `json:"file_ext"`
	ContentType string `json:"content_type,omitempty"`
	Upsert      *bool  `json:"upsert,omitempty"`
}

// Grant tells the client how to upload the object and which path to attach
// to the post afterwards.
type Grant struct {
	UploadURL string            `json:"upload_url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Path      string            `json:"path"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Service issues upload grants and performs server-side uploads.
type Service struct {
	posts   storage.PostStore
	objects storage.ObjectStore
	bucket  string
	log     *logger.Logger
	now     func() time.Time
	newID   func() string
}

// New constructs an upload service writing into bucket.
func New(posts storage.PostStore, objects storage.ObjectStore, bucket string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("uploads")
	}
	if strings.TrimSpace(bucket) == "" {
		bucket = DefaultBucket
	}
	return &Service{
		posts:   posts,
		objects: objects,
		bucket:  bucket,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// Presign returns a signed upload grant for a post the caller authored.
func (s *Service) Presign(ctx context.Context, userID string, req PresignRequest) (Grant, error) {
	ext := cleanExt(req.FileExt)
	if ext == "" {
		return Grant{}, apperrors.Validation("file_ext is required")
	}
	if err := s.checkAuthor(ctx, userID, req.PostID); err != nil {
		return Grant{}, err
	}

	objectPath := s.objectPath(userID, req.PostID, ext)
	signed, err := s.objects.CreateSignedUpload(ctx, s.bucket, objectPath)
	if err != nil {
		return Grant{}, err
	}

	upsert := req.Upsert == nil || *req.Upsert
	headers := map[string]string{"x-upsert": fmt.Sprintf("%t", upsert)}
	if ct := strings.TrimSpace(req.ContentType); ct != "" {
		headers["Content-Type"] = ct
	}
	if signed.Token != "" {
		headers["Authorization"] = "Bearer " + signed.Token
	}

	s.log.WithField("post_id", req.PostID).WithField("path", objectPath).Info("upload grant issued")
	return Grant{
		UploadURL: signed.URL,
		Method:    "POST",
		Headers:   headers,
		Path:      objectPath,
		ExpiresAt: s.now().Add(grantLifetime),
	}, nil
}

// Direct uploads data on the caller's behalf and returns the object path.
// The post's media reference is left for the caller to set.
func (s *Service) Direct(ctx context.Context, userID string, postID int64, filename, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperrors.Validation("file is empty")
	}
	if err := s.checkAuthor(ctx, userID, postID); err != nil {
		return "", err
	}

	ext := ExtensionFor(filename, contentType)
	objectPath := s.objectPath(userID, postID, ext)
	if strings.TrimSpace(contentType) == "" {
		contentType = defaultContentType
	}
	if err := s.objects.Upload(ctx, s.bucket, objectPath, data, contentType, true); err != nil {
		return "", err
	}
	s.log.WithField("post_id", postID).
		WithField("path", objectPath).
		WithField("bytes", len(data)).
		Info("media uploaded")
	return objectPath, nil
}

func (s *Service) checkAuthor(ctx context.Context, userID string, postID int64) error {
	if postID <= 0 {
		return apperrors.Validation("post_id must be positive")
	}
	p, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if p.AuthorID != userID {
		return apperrors.Forbidden("not the author of post %d", postID)
	}
	return nil
}

// objectPath builds posts/<owner>/<post>/<unix>_<hex>.<ext>.
func (s *Service) objectPath(userID string, postID int64, ext string) string {
	name := fmt.Sprintf("%d_%s.%s", s.now().Unix(), s.newID(), ext)
	return path.Join("posts", userID, fmt.Sprintf("%d", postID), name)
}

// ExtensionFor derives the object extension from the file name, falling back
// to the content type and finally to "bin".
func ExtensionFor(filename, contentType string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		if ext := cleanExt(filename[i+1:]); ext != "" {
			return ext
		}
	}
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	}
	return "bin"
}

func cleanExt(ext string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(ext), "."))
}
